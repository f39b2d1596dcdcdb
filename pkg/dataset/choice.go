package dataset

import "math/rand/v2"

// maxOffset bounds the near-index companion draw. Because records are in
// label-sorted order, positions within a few steps of the anchor are likely
// to share its speaker id, which biases the pair stream toward positives
// without any per-class bookkeeping.
const maxOffset = 4

// Choice selects a companion position for the anchor at idx among n records.
// Half the time it draws idx plus a uniform offset in [-maxOffset, maxOffset]
// (offset 0 pairs the utterance with itself, a guaranteed positive); the
// other half it draws uniformly from [0, n). The upper bound of the uniform
// branch is exclusive, so only the offset branch can leave the valid range;
// the final clamp guards it at both ends.
func Choice(idx, n int, rng *rand.Rand) int {
	var choice int
	if rng.Float64() < 0.5 {
		choice = idx + rng.IntN(2*maxOffset+1) - maxOffset
	} else {
		choice = rng.IntN(n)
	}

	if choice < 0 {
		choice = 0
	}
	if choice > n-1 {
		choice = n - 1
	}
	return choice
}
