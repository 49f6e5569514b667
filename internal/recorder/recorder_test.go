package recorder

import (
	"testing"
	"time"
)

func TestBeginsWithTimestamp(t *testing.T) {
	if !BeginsWithTimestamp("2026-07-30-12-00-00_recording") {
		t.Fatal("expected true for a well-formed timestamp prefix")
	}
	if BeginsWithTimestamp("recording") {
		t.Fatal("expected false for a filename with no timestamp prefix")
	}
	if BeginsWithTimestamp("2026-07-30-12-00-00recording") {
		t.Fatal("expected false: missing the underscore separator")
	}
	if BeginsWithTimestamp("short") {
		t.Fatal("expected false: too short to contain a timestamp")
	}
}

func TestPrependTimestampIdempotent(t *testing.T) {
	// spec.md §8: "Prepending a timestamp to a filename that already
	// begins with a timestamp replaces the existing one (the resulting
	// filename always begins with exactly one YYYY-MM-DD-HH-MM-SS_
	// prefix)."
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	first := PrependTimestamp("recording", ts)
	if !BeginsWithTimestamp(first) {
		t.Fatalf("expected %q to begin with a timestamp", first)
	}

	later := time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC)
	second := PrependTimestamp(first, later)
	if !BeginsWithTimestamp(second) {
		t.Fatalf("expected %q to begin with a timestamp", second)
	}

	// Exactly one prefix: stripping the 20-char prefix must restore
	// the original base name, not leave a second one behind.
	if got := second[timestampLen:]; got != "recording" {
		t.Fatalf("expected base name %q after stripping prefix, got %q", "recording", got)
	}
}
