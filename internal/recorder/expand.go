package recorder

// chunkItems is the number of samples converted per pass through the
// mmap'd recording buffer (spec.md §4.H step 5).
const chunkItems = 1 << 16

// inputBytesPerItem / outputBytesPerItem give, per recorder mode, the
// byte width of one complex sample before and after expansion
// (spec.md §4.H step 3).
func inputBytesPerItem(mode Mode) int {
	switch mode {
	case Mode8Bit:
		return 2
	case Mode12Bit:
		return 3
	default: // Mode16Bit
		return 2
	}
}

func outputBytesPerItem(mode Mode) int {
	if mode == Mode12Bit {
		return 4
	}
	return 2 // identity for 8-bit and 16-bit
}

// expandChunk converts one chunk of raw recorder bytes to output bytes
// for the given mode. For 8-bit and 16-bit modes this is an identity
// copy; for 12-bit it performs the sign-extended nibble expansion of
// spec.md §4.H step 5, grounded on
// original_source/maia-httpd/src/httpd/recording.rs's
// RecordingBuffer::poll_next.
func expandChunk(mode Mode, raw []byte) []byte {
	if mode != Mode12Bit {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}

	items := len(raw) / 3
	out := make([]byte, items*4)
	for j := 0; j < items; j++ {
		x0, x1, x2 := raw[3*j], raw[3*j+1], raw[3*j+2]
		b0, b1, b2, b3 := expand12Triple(x0, x1, x2)
		out[4*j] = b0
		out[4*j+1] = b1
		out[4*j+2] = b2
		out[4*j+3] = b3
	}
	return out
}

// expand12Triple converts three packed 12-bit-sample bytes into two
// little-endian 16-bit signed samples, sign-extended from the
// nibble-boundary 12-bit packing (spec.md §4.H step 5). This follows
// original_source recording.rs's RecordingBuffer::poll_next exactly:
// b0 = (x0<<4)|(x1>>4); b1 = sign-extended high nibble of x0; b2 = x2;
// b3 = sign-extended high nibble of x1.
func expand12Triple(x0, x1, x2 byte) (b0, b1, b2, b3 byte) {
	b0 = (x0 << 4) | (x1 >> 4)
	b1 = signExtendNibble(x0 >> 4)
	b2 = x2
	b3 = signExtendNibble(x1 >> 4)
	return
}

// signExtendNibble takes a 4-bit value in the low nibble of n and
// sign-extends it across the full byte.
func signExtendNibble(n byte) byte {
	if n&0x8 != 0 {
		return n | 0xF0
	}
	return n & 0x0F
}
