package ddc

// ZeroPack inserts n-1 zeros after each element of x, modeling the
// spectral replication a downstream decimation-by-n stage imposes on
// an upstream stage's impulse response when cascading filters
// (original_source ddc.rs's zero_pack). zero_pack([1,2,3], 2) ==
// [1,0,2,0,3,0] (spec.md §8).
func ZeroPack(x []float64, n int) []float64 {
	out := make([]float64, len(x)*n)
	for i, v := range x {
		out[i*n] = v
	}
	return out
}

// Convolve computes the full linear convolution of x and y, length
// len(x)+len(y)-1. convolve([1,2,3],[1,2,3]) == [1,4,10,12,9] (spec.md
// §8).
func Convolve(x, y []float64) []float64 {
	if len(x) == 0 || len(y) == 0 {
		return nil
	}
	out := make([]float64, len(x)+len(y)-1)
	for i, xv := range x {
		if xv == 0 {
			continue
		}
		for j, yv := range y {
			out[i+j] += xv * yv
		}
	}
	return out
}
