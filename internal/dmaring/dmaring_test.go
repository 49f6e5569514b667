package dmaring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestDrainIndicesFirstCallEmpty matches fpga.rs's get_new_buffers:
// before any baseline is established, a drain just records the
// current position and yields nothing.
func TestDrainIndicesFirstCallEmpty(t *testing.T) {
	got := drainIndices(15, false, 0, 7)
	assert.Empty(t, got)
}

func TestDrainIndicesSimpleAdvance(t *testing.T) {
	got := drainIndices(15, true, 3, 6)
	assert.Equal(t, []int{4, 5, 6}, got)
}

func TestDrainIndicesWraps(t *testing.T) {
	// N = 16, mask = 15; last_written = 14, current_last = 1 -> 15, 0, 1
	got := drainIndices(15, true, 14, 1)
	assert.Equal(t, []int{15, 0, 1}, got)
}

// TestDrainIsPermutation exercises spec.md §8: "Successive drains
// cover the set {(last+1) mod N .. last_new mod N} in order, never
// repeating" across arbitrary sequences of hardware "last written"
// advances.
func TestDrainIsPermutation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.SampledFrom([]int{2, 4, 8, 16, 32}).Draw(t, "n")
		mask := n - 1
		steps := rapid.IntRange(1, 20).Draw(t, "steps")

		seen := make(map[int]bool, n)
		hasLast := false
		lastWritten := 0
		cur := rapid.IntRange(0, mask).Draw(t, "start")

		for i := 0; i < steps; i++ {
			advance := rapid.IntRange(0, n-1).Draw(t, "advance")
			cur = (cur + advance) & mask

			indices := drainIndices(mask, hasLast, lastWritten, cur)
			// after the first (baseline) drain, each drain yields
			// exactly (lastWritten+1 .. cur) mod N in ascending ring order
			var want []int
			if hasLast {
				for k := 1; k <= advance; k++ {
					want = append(want, (lastWritten+k)&mask)
				}
			}
			require.Equal(t, want, indices)
			for _, idx := range indices {
				require.False(t, seen[idx], "index %d yielded twice", idx)
				seen[idx] = true
			}
			// never more than N indices in flight between drains
			require.LessOrEqual(t, len(indices), n)

			hasLast = true
			lastWritten = cur
			clear(seen)
		}
	})
}
