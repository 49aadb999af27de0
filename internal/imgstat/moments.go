package imgstat

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return stat.Mean(v, nil)
}

// Variance returns the population variance, 0 for an empty slice.
func Variance(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return stat.PopVariance(v, nil)
}

// StdDev returns the population standard deviation.
func StdDev(v []float64) float64 {
	return math.Sqrt(Variance(v))
}

// CoefficientOfVariation returns stddev/mean, or 0 when the mean is 0.
func CoefficientOfVariation(v []float64) float64 {
	m := Mean(v)
	if m == 0 {
		return 0
	}
	return StdDev(v) / math.Abs(m)
}

// Skewness returns the sample skewness, 0 for constant input or fewer than
// three samples.
func Skewness(v []float64) float64 {
	if len(v) < 3 || Variance(v) == 0 {
		return 0
	}
	return stat.Skew(v, nil)
}

// Kurtosis returns the sample kurtosis on the raw scale (3 for a normal
// distribution), 0 for constant input or fewer than four samples.
func Kurtosis(v []float64) float64 {
	if len(v) < 4 || Variance(v) == 0 {
		return 0
	}
	return stat.ExKurtosis(v, nil) + 3
}

// Percentile returns the p-th percentile (0..100) of v as the empirical
// quantile of a sorted copy.
func Percentile(v []float64, p float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	q := math.Min(math.Max(p/100, 0), 1)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// Correlation returns the Pearson correlation of a and b over their common
// length, 0 when either side is constant.
func Correlation(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	a, b = a[:n], b[:n]
	if Variance(a) == 0 || Variance(b) == 0 {
		return 0
	}
	return stat.Correlation(a, b, nil)
}
