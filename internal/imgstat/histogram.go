package imgstat

import "math"

// Bins is the number of intensity bins in a Histogram.
const Bins = 256

// Histogram is a 256-bin intensity distribution.
type Histogram [Bins]int

// HistogramOf bins the samples of p, rounding and clamping to [0,255].
func HistogramOf(p *Plane) Histogram {
	return HistogramValues(p.Data)
}

// HistogramValues bins arbitrary samples, rounding and clamping to [0,255].
func HistogramValues(values []float64) Histogram {
	var h Histogram
	for _, v := range values {
		h[clampBin(v)]++
	}
	return h
}

func clampBin(v float64) int {
	i := int(math.Round(v))
	if i < 0 {
		return 0
	}
	if i >= Bins {
		return Bins - 1
	}
	return i
}

// Total returns the number of samples in h.
func (h Histogram) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}

// Entropy returns the Shannon entropy of h in bits (0..8).
func (h Histogram) Entropy() float64 {
	return Entropy(h[:])
}

// Entropy returns the Shannon entropy in bits of a count distribution.
func Entropy(counts []int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	e := 0.0
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / float64(total)
			e -= p * math.Log2(p)
		}
	}
	return e
}

// Span returns the lowest and highest occupied bins, or -1, -1 when empty.
func (h Histogram) Span() (lo, hi int) {
	lo, hi = -1, -1
	for i, c := range h {
		if c > 0 {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	return lo, hi
}
