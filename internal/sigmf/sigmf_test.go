package sigmf

import (
	"strings"
	"testing"
	"time"

	"github.com/maia-sdr/sdrd/internal/fpga"
)

func TestDatatypeForMode(t *testing.T) {
	if got := DatatypeForMode(fpga.RecorderMode8Bit); got != "ci8" {
		t.Fatalf("8-bit datatype = %q, want ci8", got)
	}
	if got := DatatypeForMode(fpga.RecorderMode16Bit); got != "ci16_le" {
		t.Fatalf("16-bit datatype = %q, want ci16_le", got)
	}
	if got := DatatypeForMode(fpga.RecorderMode12Bit); got != "ci16_le" {
		t.Fatalf("12-bit datatype = %q, want ci16_le (expanded before write)", got)
	}
}

func TestToJSONStructure(t *testing.T) {
	dt := time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC)
	m := New("ci16_le", 30.72e6, 2400e6, dt)
	m.Description = "Test SigMF dataset"
	m.Author = "Tester"

	out, err := m.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	s := string(out)

	for _, want := range []string{
		`"core:datatype": "ci16_le"`,
		`"core:sample_rate": 30720000`,
		`"core:frequency": 2400000000`,
		`"core:datetime": "2022-11-01T00:00:00.000Z"`,
		`"core:author": "Tester"`,
		`"core:description": "Test SigMF dataset"`,
		`"core:version": "1.0.0"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("ToJSON output missing %q:\n%s", want, s)
		}
	}
	if !strings.HasSuffix(s, "}\n") {
		t.Fatalf("ToJSON output should end with a single trailing newline, got suffix %q", s[len(s)-3:])
	}
}
