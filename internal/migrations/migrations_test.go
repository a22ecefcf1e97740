package migrations

import (
	"strings"
	"testing"
)

func TestNamesSorted(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("Names error: %v", err)
	}
	if len(names) == 0 || names[0] != "0001_init.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}
}

func TestInitDeclaresIdempotencyConstraints(t *testing.T) {
	body, err := files.ReadFile("0001_init.sql")
	if err != nil {
		t.Fatalf("read init: %v", err)
	}
	for _, want := range []string{
		"unique (payment_provider, payment_ref)",
		"unique (dream_board_id, payout_type)",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("init migration missing %q", want)
		}
	}
}
