package signals

import (
	"math"

	"github.com/humanmark/forensics/internal/imgstat"
)

var (
	descBlockNoise = Descriptor{
		ID:          "block_noise",
		Category:    CategoryStatistical,
		Icon:        "noise",
		Description: "Absent or inconsistent noise variance across image blocks",
	}
	descBRISQUE = Descriptor{
		ID:          "brisque_quality",
		Category:    CategoryStatistical,
		Icon:        "eye",
		Description: "Deviation of normalized luminance statistics from natural scenes",
	}
	descThumbnailConsistency = Descriptor{
		ID:          "thumbnail_consistency",
		Category:    CategoryStatistical,
		Icon:        "image",
		Description: "Missing or inconsistent embedded EXIF thumbnail",
	}
	descHistogramShape = Descriptor{
		ID:          "histogram_shape",
		Category:    CategoryStatistical,
		Icon:        "bars",
		Description: "Histogram combing gaps and unnatural smoothness",
	}
	descColorSaturation = Descriptor{
		ID:          "color_saturation",
		Category:    CategoryStatistical,
		Icon:        "palette",
		Description: "Excess saturation and heavy saturated tails",
	}
	descTextureLBP = Descriptor{
		ID:          "texture_lbp",
		Category:    CategoryStatistical,
		Icon:        "texture",
		Description: "Low local binary pattern entropy from over-smooth texture",
	}
	descSensorPattern = Descriptor{
		ID:          "sensor_pattern",
		Category:    CategoryStatistical,
		Icon:        "chip",
		Description: "Missing row and column correlated sensor noise",
	}
)

const (
	noiseFloorLow  = 1.5
	noiseFloorHigh = 6.0
)

// evalBlockNoise estimates per-block noise from the Laplacian residual. It
// flags a missing noise floor and, among the smoother half of the blocks,
// noise levels that vary too much to come from one sensor.
func evalBlockNoise(in *Input) (Finding, error) {
	blocks := in.Blocks()
	if len(blocks) < 2 {
		return neutral("fewer than two %d px blocks", in.Params.BlockSize), nil
	}

	res := in.Residual()
	sigmas := make([]float64, len(blocks))
	for i, b := range blocks {
		sigmas[i] = imgstat.StdDev(b.Values(res))
	}
	sorted := sortedCopy(sigmas)
	median := sorted[len(sorted)/2]
	smooth := sorted[:max(2, len(sorted)/2)]

	absence := fall(median, noiseFloorLow, noiseFloorHigh)
	inconsistency := ramp(imgstat.CoefficientOfVariation(smooth), 0.5, 1.5)
	return scored(between(strongest(absence, inconsistency), 20, 80),
		"median block noise %.2f, smooth-block variation %.2f", median, imgstat.CoefficientOfVariation(smooth)), nil
}

// evalBRISQUE computes mean-subtracted contrast-normalized coefficients and
// scores how far their kurtosis drifts from the Gaussian value natural
// photographs cluster around.
func evalBRISQUE(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 8 || g.H < 8 {
		return neutral("image too small for local statistics"), nil
	}

	mu := imgstat.BoxMean(g, 3)
	sq := imgstat.NewPlane(g.W, g.H)
	for i, v := range g.Data {
		sq.Data[i] = v * v
	}
	mu2 := imgstat.BoxMean(sq, 3)

	mscn := make([]float64, len(g.Data))
	for i, v := range g.Data {
		sigma := math.Sqrt(math.Max(mu2.Data[i]-mu.Data[i]*mu.Data[i], 0))
		mscn[i] = (v - mu.Data[i]) / (sigma + 1)
	}
	if imgstat.Variance(mscn) < 1e-6 {
		return neutral("no local contrast"), nil
	}

	k := imgstat.Kurtosis(mscn)
	deviation := math.Abs(math.Log(k / 3))
	return scored(between(ramp(deviation, 0.2, 1.2), 25, 75), "MSCN kurtosis %.2f", k), nil
}

func evalHistogramShape(in *Input) (Finding, error) {
	g := in.Gray()
	if len(g.Data) < imgstat.Bins {
		return neutral("too few pixels for a histogram"), nil
	}

	h := imgstat.HistogramOf(g)
	lo, hi := h.Span()
	span := hi - lo + 1
	if span < 16 {
		return neutral("intensity span of %d levels", span), nil
	}

	gaps := 0
	diff := 0.0
	for i := lo; i <= hi; i++ {
		if h[i] == 0 {
			gaps++
		}
		if i > lo {
			diff += math.Abs(float64(h[i] - h[i-1]))
		}
	}
	mean := float64(h.Total()) / float64(span)
	gapRatio := float64(gaps) / float64(span)
	roughness := diff / float64(span-1) / mean

	combing := ramp(gapRatio, 0.05, 0.4)
	smoothness := fall(roughness, 0.05, 0.3)
	return scored(between(strongest(combing, smoothness), 25, 75),
		"gap ratio %.2f, roughness %.3f", gapRatio, roughness), nil
}

func evalColorSaturation(in *Input) (Finding, error) {
	s := in.Saturation()
	if len(s.Data) == 0 {
		return neutral("empty image"), nil
	}

	tail := 0
	for _, v := range s.Data {
		if v > 0.8 {
			tail++
		}
	}
	mean := imgstat.Mean(s.Data)
	tailMass := float64(tail) / float64(len(s.Data))

	strength := strongest(ramp(mean, 0.35, 0.65), ramp(tailMass, 0.05, 0.3))
	return scored(between(strength, 35, 80), "mean saturation %.2f, saturated tail %.2f", mean, tailMass), nil
}

// lbpOffsets lists the 8 neighbours clockwise from the top-left.
var lbpOffsets = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}}

func evalTextureLBP(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 3 || g.H < 3 {
		return neutral("image too small for local binary patterns"), nil
	}

	counts := make([]int, 256)
	for y := 1; y < g.H-1; y++ {
		for x := 1; x < g.W-1; x++ {
			c := g.At(x, y)
			code := 0
			for bit, o := range lbpOffsets {
				if g.At(x+o[0], y+o[1]) >= c {
					code |= 1 << bit
				}
			}
			counts[code]++
		}
	}

	e := imgstat.Entropy(counts)
	return scored(between(fall(e, 4.0, 7.0), 20, 80), "LBP entropy %.2f bits", e), nil
}

// evalSensorPattern compares the variance of row and column residual means
// with what independent noise would give. Fixed-pattern sensor noise lifts
// the ratio above one.
func evalSensorPattern(in *Input) (Finding, error) {
	res := in.Residual()
	if res.W < 16 || res.H < 16 {
		return neutral("image too small for row and column statistics"), nil
	}
	inner := imgstat.Interior(res, 1)
	v := imgstat.Variance(inner)
	if v == 0 {
		return neutral("no residual noise"), nil
	}

	w, h := res.W-2, res.H-2
	rows := make([]float64, h)
	cols := make([]float64, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := inner[y*w+x]
			rows[y] += r / float64(w)
			cols[x] += r / float64(h)
		}
	}

	ratio := (imgstat.Variance(rows)*float64(w) + imgstat.Variance(cols)*float64(h)) / (2 * v)
	return scored(between(fall(ratio, 1.0, 3.0), 30, 70), "row/column noise ratio %.2f", ratio), nil
}
