package m

import "golang.org/x/exp/rand"

// defaultBatches is the number of mini-batches per epoch.
const defaultBatches = 100

// Permutation returns a uniformly random ordering of [0, n).
func Permutation(rng *rand.Rand, n int) []int {
	return rng.Perm(n)
}

// BatchBounds splits [0, n) into numBatches contiguous [lo, hi) ranges with
// boundaries at i*n/numBatches, so sizes differ by at most one.
func BatchBounds(n, numBatches int) [][2]int {
	bounds := make([][2]int, numBatches)
	for i := range bounds {
		bounds[i] = [2]int{i * n / numBatches, (i + 1) * n / numBatches}
	}
	return bounds
}

// Batches partitions perm into numBatches contiguous groups.
func Batches(perm []int, numBatches int) [][]int {
	bounds := BatchBounds(len(perm), numBatches)
	batches := make([][]int, len(bounds))
	for i, b := range bounds {
		batches[i] = perm[b[0]:b[1]]
	}
	return batches
}

// effectiveBatches caps the batch count at the number of examples so that no
// batch is empty.
func effectiveBatches(n, want int) int {
	if want <= 0 {
		want = defaultBatches
	}
	return min(n, want)
}
