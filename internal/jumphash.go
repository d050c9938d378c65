package internal

// JumpHash maps a 64-bit key hash onto one of n buckets using Google's
// "Jump" consistent hash function (https://arxiv.org/abs/1406.2294).
// Adding or removing a bucket relocates only ~1/n of the keys.
func JumpHash(hash uint64, n int) int {
	if n <= 0 {
		return 0
	}

	var bucket int64 = -1
	var next int64

	for next < int64(n) {
		bucket = next
		hash = hash*2862933555777941757 + 1
		next = int64(float64(bucket+1) * (float64(int64(1)<<31) / float64((hash>>33)+1)))
	}

	return int(bucket)
}
