package main

import (
	"strings"
	"testing"
)

func TestLintFile(t *testing.T) {
	src := "package q\n\n" +
		"const QOK = `--sql 11111111-2222-4333-8444-555555555555\nselect 1;`\n\n" +
		"const QMissing = `select id from payouts;`\n\n" +
		"const QDup = `--sql 11111111-2222-4333-8444-555555555555\nupdate payouts set status = 'failed';`\n\n" +
		"const notSQL = \"selected payouts\"\n\n" +
		"var QBadMarker = \"--sql not-a-uuid\\ndelete from payouts;\"\n"

	l := newLinter()
	if err := l.lintFile("queries.go", src); err != nil {
		t.Fatalf("lint: %v", err)
	}
	got := l.sorted()
	if len(got) != 3 {
		t.Fatalf("expected 3 findings, got %d: %v", len(got), got)
	}
	want := []struct{ name, fragment string }{
		{"QMissing", "missing or invalid"},
		{"QDup", "already used by QOK"},
		{"QBadMarker", "missing or invalid"},
	}
	for i, w := range want {
		if got[i].name != w.name || !strings.Contains(got[i].message, w.fragment) {
			t.Fatalf("finding %d = %s, want %s containing %q", i, got[i], w.name, w.fragment)
		}
	}
}

func TestSQLInlinePackageIsClean(t *testing.T) {
	l := newLinter()
	if err := l.walk("../../sqlinline"); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(l.findings) != 0 {
		t.Fatalf("unexpected findings: %v", l.sorted())
	}
}
