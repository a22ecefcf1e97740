package geoip

import (
	"errors"
	"testing"
)

func TestOpenEmptyPath(t *testing.T) {
	r, err := Open("  ")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil resolver for empty path")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close nil resolver: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Fatalf("expected error for missing database")
	}
}

func TestLookupWithoutDatabase(t *testing.T) {
	var r *Resolver
	cases := []struct {
		ip      string
		want    string
		wantErr error
		anyErr  bool
	}{
		{ip: "127.0.0.1"},
		{ip: "10.1.2.3"},
		{ip: "::1"},
		{ip: "41.74.179.200", wantErr: ErrUnavailable},
		{ip: "not-an-ip", anyErr: true},
	}
	for _, tc := range cases {
		got, err := r.Lookup(tc.ip)
		switch {
		case tc.wantErr != nil:
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tc.ip, tc.wantErr, err)
			}
		case tc.anyErr:
			if err == nil {
				t.Fatalf("%s: expected error", tc.ip)
			}
		default:
			if err != nil || got != tc.want {
				t.Fatalf("%s: got %q, %v", tc.ip, got, err)
			}
		}
	}
}
