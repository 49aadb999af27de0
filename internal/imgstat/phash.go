package imgstat

import (
	"math/bits"
	"sort"
)

// PHash returns the 64-bit DCT perceptual hash of p: resize to 32×32, take
// the top-left 8×8 DCT coefficients and threshold each against their median.
func PHash(p *Plane) uint64 {
	small := p.Resize(32, 32)
	coeffs := DCT2D(small.Data, 32)

	low := make([]float64, 0, 64)
	for v := 0; v < 8; v++ {
		for u := 0; u < 8; u++ {
			low = append(low, coeffs[v*32+u])
		}
	}
	sorted := append([]float64(nil), low[1:]...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	var hash uint64
	for i, c := range low {
		if c > median {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

// Hamming returns the number of differing bits between two hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
