package gesture

import (
	"math"
)

// DTWDistance calculates the Dynamic Time Warping distance between two sequences.
// The cost of aligning two values is their absolute difference and the result
// is the unnormalized cost of the cheapest global alignment.
//
// Row 0 and column 0 of the grid (except the origin) are +Inf, so a comparison
// against an empty sequence yields +Inf without special handling.
func DTWDistance(a, b Sequence) float64 {
	n := len(a)
	m := len(b)

	// Create (n+1) x (m+1) cost matrix initialized to infinity
	dtw := make([][]float64, n+1)
	for i := range dtw {
		dtw[i] = make([]float64, m+1)
		for j := range dtw[i] {
			dtw[i][j] = math.Inf(1)
		}
	}
	dtw[0][0] = 0

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := math.Abs(a[i-1] - b[j-1])
			dtw[i][j] = cost + min3(dtw[i-1][j], dtw[i][j-1], dtw[i-1][j-1])
		}
	}

	return dtw[n][m]
}

// min3 returns the minimum of three float64 values.
func min3(a, b, c float64) float64 {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
