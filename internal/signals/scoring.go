package signals

import (
	"fmt"
	"math"
)

// NeutralScore is reported whenever a detector has no usable evidence.
const NeutralScore = 50

// ramp maps x linearly from [lo, hi] onto [0, 1], clamped at both ends.
// It is monotone non-decreasing in x, which keeps every score built on it
// monotone in the anomaly it measures.
func ramp(x, lo, hi float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x <= lo:
		return 0
	case x >= hi:
		return 1
	}
	return (x - lo) / (hi - lo)
}

// fall is 1 - ramp: strength grows as x drops below hi.
func fall(x, lo, hi float64) float64 {
	return 1 - ramp(x, lo, hi)
}

// between maps a strength in [0, 1] onto the score range [low, high].
func between(strength, low, high float64) float64 {
	return low + (high-low)*clamp(strength, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func strongest(v ...float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, x)
	}
	return m
}

func neutral(format string, args ...any) Finding {
	return Finding{Score: NeutralScore, Details: fmt.Sprintf(format, args...)}
}

func scored(score float64, format string, args ...any) Finding {
	return Finding{Score: score, Details: fmt.Sprintf(format, args...)}
}

// roundScore keeps one decimal so serialized results stay compact.
func roundScore(s float64) float64 {
	return math.Round(s*10) / 10
}

// fitSlope returns the least-squares slope of y over x.
func fitSlope(x, y []float64) float64 {
	n := float64(len(x))
	if n < 2 {
		return 0
	}
	var sx, sy, sxx, sxy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}
