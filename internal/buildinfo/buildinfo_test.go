package buildinfo

import "testing"

func TestStringWithStampedValues(t *testing.T) {
	oldVersion := Version
	oldCommit := Commit
	oldDate := Date
	Version = "1.2.3"
	Commit = "deadbeef"
	Date = "2026-01-30"
	defer func() {
		Version = oldVersion
		Commit = oldCommit
		Date = oldDate
	}()

	got := String()
	want := "hostctl 1.2.3 (commit deadbeef, built 2026-01-30)"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestCommitPrefersLdflagsValue(t *testing.T) {
	oldCommit := Commit
	Commit = "abc123"
	defer func() { Commit = oldCommit }()

	if got := commit(); got != "abc123" {
		t.Fatalf("commit() = %q, want %q", got, "abc123")
	}
}
