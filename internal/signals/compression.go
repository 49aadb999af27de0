package signals

import (
	"math"

	"github.com/humanmark/forensics/internal/imgstat"
)

var (
	descBlockingArtifacts = Descriptor{
		ID:          "blocking_artifacts",
		Category:    CategoryCompression,
		Icon:        "grid",
		Description: "Absent or irregular 8x8 JPEG grid for the claimed format",
	}
	descResamplingTraces = Descriptor{
		ID:          "resampling_traces",
		Category:    CategoryCompression,
		Icon:        "resize",
		Description: "Periodic second-derivative correlation from resampling",
	}
	descDemosaicTraces = Descriptor{
		ID:          "demosaic_traces",
		Category:    CategoryCompression,
		Icon:        "bayer",
		Description: "Missing Bayer colour filter array interpolation traces",
	}
	descNeuralCompression = Descriptor{
		ID:          "neural_compression",
		Category:    CategoryCompression,
		Icon:        "layers",
		Description: "Textured patches with a near-zero noise residual",
	}
	descEdgeCoherence = Descriptor{
		ID:          "edge_coherence",
		Category:    CategoryCompression,
		Icon:        "edge",
		Description: "Unnaturally uniform edge sharpness across the frame",
	}
	descMirrorSymmetry = Descriptor{
		ID:          "mirror_symmetry",
		Category:    CategoryCompression,
		Icon:        "mirror",
		Description: "Unnatural left-right symmetry",
	}
)

// gridRatio returns the mean absolute luma step across columns and rows
// where (i+1) % period == phase, divided by the mean step elsewhere.
func gridRatio(p *imgstat.Plane, period, phase int) float64 {
	var on, off float64
	var nOn, nOff int
	for y := 0; y < p.H; y++ {
		for x := 0; x+1 < p.W; x++ {
			d := math.Abs(p.At(x+1, y) - p.At(x, y))
			if (x+1)%period == phase {
				on += d
				nOn++
			} else {
				off += d
				nOff++
			}
		}
	}
	for y := 0; y+1 < p.H; y++ {
		for x := 0; x < p.W; x++ {
			d := math.Abs(p.At(x, y+1) - p.At(x, y))
			if (y+1)%period == phase {
				on += d
				nOn++
			} else {
				off += d
				nOff++
			}
		}
	}
	if nOn == 0 || nOff == 0 || off == 0 {
		return 1
	}
	return (on / float64(nOn)) / (off / float64(nOff))
}

func evalBlockingArtifacts(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 32 || g.H < 32 {
		return neutral("image too small for grid analysis"), nil
	}
	if in.Buffer.Scaled() {
		return neutral("8x8 grid is not measurable after downscaling"), nil
	}

	b := gridRatio(g, 8, 0)
	if in.IsJPEG() {
		return scored(between(fall(b, 1.05, 1.5), 25, 70), "JPEG grid strength %.2f", b), nil
	}
	return scored(between(fall(b, 1.1, 1.6), 30, 55), "grid strength %.2f in a non-JPEG file", b), nil
}

// evalResamplingTraces averages the second derivative along rows and
// columns and looks for a dominant period that is not the JPEG grid.
func evalResamplingTraces(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 64 || g.H < 64 {
		return neutral("image too small for resampling analysis"), nil
	}

	rows := make([]float64, g.W)
	cols := make([]float64, g.H)
	for y := 1; y < g.H-1; y++ {
		for x := 1; x < g.W-1; x++ {
			rows[x] += math.Abs(g.At(x-1, y) - 2*g.At(x, y) + g.At(x+1, y))
			cols[y] += math.Abs(g.At(x, y-1) - 2*g.At(x, y) + g.At(x, y+1))
		}
	}

	best := math.Max(periodicPeak(rows[1:len(rows)-1]), periodicPeak(cols[1:len(cols)-1]))
	if best == 0 {
		return neutral("no second-derivative energy"), nil
	}
	logRatio := math.Log10(best)
	return scored(between(ramp(logRatio, 0.8, 1.6), 25, 80), "periodic peak %.1fx median", best), nil
}

// periodicPeak returns the largest spectral magnitude of s over the median,
// skipping the lowest bins and the harmonics of an 8 px period.
func periodicPeak(s []float64) float64 {
	n := imgstat.FloorPowerOfTwo(len(s))
	if n < 32 {
		return 0
	}
	mean := imgstat.Mean(s[:n])
	a := make([]complex128, n)
	for i := 0; i < n; i++ {
		a[i] = complex(s[i]-mean, 0)
	}
	imgstat.FFT(a)

	grid := n / 8
	var mags []float64
	peak := 0.0
	for k := 4; k <= n/2; k++ {
		if r := k % grid; r <= 1 || r >= grid-1 {
			continue
		}
		m := math.Hypot(real(a[k]), imag(a[k]))
		mags = append(mags, m)
		peak = math.Max(peak, m)
	}
	if len(mags) == 0 {
		return 0
	}
	med := imgstat.Percentile(mags, 50)
	if med == 0 {
		return 0
	}
	return peak / med
}

// evalDemosaicTraces predicts each green sample from its four neighbours.
// Demosaiced captures interpolate half the green sites, so prediction error
// differs between the two checkerboard phases.
func evalDemosaicTraces(in *Input) (Finding, error) {
	buf := in.Buffer
	if buf.Width < 16 || buf.Height < 16 {
		return neutral("image too small for CFA analysis"), nil
	}
	if buf.Scaled() {
		return neutral("CFA traces do not survive downscaling"), nil
	}

	green := imgstat.ChannelPlane(buf, 1)
	var even, odd float64
	var nEven, nOdd int
	for y := 1; y < green.H-1; y++ {
		for x := 1; x < green.W-1; x++ {
			pred := (green.At(x-1, y) + green.At(x+1, y) + green.At(x, y-1) + green.At(x, y+1)) / 4
			e := math.Abs(green.At(x, y) - pred)
			if (x+y)%2 == 0 {
				even += e
				nEven++
			} else {
				odd += e
				nOdd++
			}
		}
	}
	if even == 0 || odd == 0 {
		return neutral("no green-channel prediction error"), nil
	}

	strength := math.Abs(math.Log((even / float64(nEven)) / (odd / float64(nOdd))))
	return scored(between(fall(strength, 0.02, 0.2), 30, 72), "CFA phase imbalance %.3f", strength), nil
}

const neuralPatch = 16

func evalNeuralCompression(in *Input) (Finding, error) {
	g := in.Gray()
	res := in.Residual()
	blocks := imgstat.Blocks(g.W, g.H, neuralPatch)
	if len(blocks) < 4 {
		return neutral("image too small for patch analysis"), nil
	}

	textured, clean := 0, 0
	for _, b := range blocks {
		if imgstat.StdDev(b.Values(g)) <= 3 {
			continue
		}
		textured++
		if imgstat.StdDev(b.Values(res)) < 0.8 {
			clean++
		}
	}
	if textured == 0 {
		return neutral("no textured patches"), nil
	}

	f := float64(clean) / float64(textured)
	return scored(between(ramp(f, 0.05, 0.5), 25, 80), "%d of %d textured patches without noise", clean, textured), nil
}

func evalEdgeCoherence(in *Input) (Finding, error) {
	mag := in.Gradients().Magnitude
	if len(mag.Data) == 0 {
		return neutral("empty image"), nil
	}
	threshold := math.Max(imgstat.Percentile(mag.Data, 90), 20)

	var sharpness []float64
	for _, b := range in.Blocks() {
		sum, n := 0.0, 0
		for _, v := range b.Values(mag) {
			if v >= threshold {
				sum += v
				n++
			}
		}
		if n >= 4 {
			sharpness = append(sharpness, sum/float64(n))
		}
	}
	if len(sharpness) < 4 {
		return neutral("fewer than four blocks with edges"), nil
	}

	cov := imgstat.CoefficientOfVariation(sharpness)
	return scored(between(fall(cov, 0.15, 0.6), 25, 75), "edge sharpness variation %.2f over %d blocks", cov, len(sharpness)), nil
}

func evalMirrorSymmetry(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 16 || g.H < 16 {
		return neutral("image too small for symmetry analysis"), nil
	}
	p := g.Resize(min(128, g.W), min(128, g.H))
	half := p.W / 2

	left := make([]float64, 0, half*p.H)
	right := make([]float64, 0, half*p.H)
	for y := 0; y < p.H; y++ {
		for x := 0; x < half; x++ {
			left = append(left, p.At(x, y))
			right = append(right, p.At(p.W-1-x, y))
		}
	}
	if imgstat.Variance(left) == 0 || imgstat.Variance(right) == 0 {
		return neutral("a half of the image is uniform"), nil
	}

	c := imgstat.Correlation(left, right)
	return scored(between(ramp(c, 0.5, 0.95), 30, 80), "left-right correlation %.2f", c), nil
}
