package recorder

import "testing"

func TestRoundUp512(t *testing.T) {
	cases := map[int]int{0: 0, 1: 512, 511: 512, 512: 512, 513: 1024, 1024: 1024}
	for in, want := range cases {
		if got := roundUp512(in); got != want {
			t.Fatalf("roundUp512(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestContentLengthFormula(t *testing.T) {
	// spec.md §8 "Tar size formula": 1536 + round_up_512(L_m) +
	// round_up_512(L_d) + 1024.
	metaLen, dataLen := 700, 200000
	want := 1536 + roundUp512(metaLen) + roundUp512(dataLen) + 1024
	if got := ContentLength(metaLen, dataLen); got != want {
		t.Fatalf("ContentLength(%d,%d) = %d, want %d", metaLen, dataLen, got, want)
	}
}

func TestContentLengthZeroLengths(t *testing.T) {
	if got := ContentLength(0, 0); got != 1536+1024 {
		t.Fatalf("ContentLength(0,0) = %d, want %d", got, 1536+1024)
	}
}
