package signals

import (
	"math"
	"sort"

	"github.com/humanmark/forensics/internal/imgstat"
)

var (
	descFFTSpectrum = Descriptor{
		ID:          "fft_spectrum",
		Category:    CategoryFrequency,
		Icon:        "wave",
		Description: "High-frequency energy deficit in the radial power spectrum",
	}
	descSpectralPeriodicity = Descriptor{
		ID:          "spectral_periodicity",
		Category:    CategoryFrequency,
		Icon:        "grid",
		Description: "Isolated spectral peaks left by upsampling layers",
	}
	descRadonProjection = Descriptor{
		ID:          "radon_projection",
		Category:    CategoryFrequency,
		Icon:        "compass",
		Description: "Directional energy uniformity across projection angles",
	}
	descZernikeMoments = Descriptor{
		ID:          "zernike_moments",
		Category:    CategoryFrequency,
		Icon:        "target",
		Description: "Rotational regularity from low-order Zernike moments",
	}
	descDCTBenford = Descriptor{
		ID:          "dct_benford",
		Category:    CategoryFrequency,
		Icon:        "chart",
		Description: "First-digit deviation of block DCT coefficients from Benford's law",
	}
)

// Natural images fall off close to 1/f²; generator decoders and smooth
// upsampling push the log-log slope well below that.
const (
	spectrumSlopeNatural = 2.2
	spectrumSlopeSmooth  = 3.8
)

func evalFFTSpectrum(s *imgstat.Spectrum, _ *Input) (Finding, error) {
	profile := s.RadialProfile()

	var xs, ys []float64
	for r := 2; r < len(profile); r++ {
		if profile[r] > 0 {
			xs = append(xs, math.Log(float64(r)))
			ys = append(ys, math.Log(profile[r]))
		}
	}
	if len(xs) < 4 {
		return neutral("radial spectrum has too few populated bins"), nil
	}

	slope := fitSlope(xs, ys)
	strength := ramp(-slope, spectrumSlopeNatural, spectrumSlopeSmooth)
	return scored(between(strength, 20, 85), "radial falloff slope %.2f", slope), nil
}

const (
	periodicityPeakLow  = 1.6
	periodicityPeakHigh = 3.2
)

// evalSpectralPeriodicity looks for off-axis points far above the median of
// their ring in the upper half of the spectrum.
func evalSpectralPeriodicity(s *imgstat.Spectrum, _ *Input) (Finding, error) {
	n := s.N
	half := n / 2
	rings := make([][]float64, half)

	for v := 0; v < n; v++ {
		for u := 0; u < n; u++ {
			du, dv := u-half, v-half
			if abs(du) <= 1 || abs(dv) <= 1 {
				continue
			}
			r := int(math.Round(math.Hypot(float64(du), float64(dv))))
			if r < n/8 || r >= half {
				continue
			}
			rings[r] = append(rings[r], s.At(u, v))
		}
	}

	best, bestR := 0.0, 0
	for r, ring := range rings {
		if len(ring) < 8 {
			continue
		}
		med := imgstat.Percentile(ring, 50)
		if med <= 0 {
			continue
		}
		peak := 0.0
		for _, p := range ring {
			peak = math.Max(peak, p)
		}
		if ratio := peak / med; ratio > best {
			best, bestR = ratio, r
		}
	}
	if best == 0 {
		return neutral("no populated high-frequency rings"), nil
	}

	logRatio := math.Log10(best)
	strength := ramp(logRatio, periodicityPeakLow, periodicityPeakHigh)
	return scored(between(strength, 25, 85), "strongest ring peak %.1fx median at radius %d", best, bestR), nil
}

const (
	radonSize   = 128
	radonAngles = 12
)

// evalRadonProjection projects the luma plane along several angles and
// measures how evenly edge energy spreads across them.
func evalRadonProjection(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 16 || g.H < 16 {
		return neutral("image too small for projections"), nil
	}
	p := g.Resize(min(radonSize, g.W), min(radonSize, g.H))

	energies := make([]float64, radonAngles)
	diag := int(math.Ceil(math.Hypot(float64(p.W), float64(p.H))))
	for a := 0; a < radonAngles; a++ {
		theta := math.Pi * float64(a) / radonAngles
		c, sn := math.Cos(theta), math.Sin(theta)
		sums := make([]float64, 2*diag+1)
		counts := make([]int, 2*diag+1)
		for y := 0; y < p.H; y++ {
			for x := 0; x < p.W; x++ {
				t := int(math.Round(float64(x)*c+float64(y)*sn)) + diag
				sums[t] += p.At(x, y)
				counts[t]++
			}
		}

		var proj []float64
		for i, n := range counts {
			if n > 0 {
				proj = append(proj, sums[i]/float64(n))
			}
		}
		e := 0.0
		for i := 1; i < len(proj); i++ {
			d := proj[i] - proj[i-1]
			e += d * d
		}
		if len(proj) > 1 {
			energies[a] = e / float64(len(proj)-1)
		}
	}

	return radonFinding(energies), nil
}

// radonFinding scores per-angle projection energies: the more evenly they
// spread, the higher the score.
func radonFinding(energies []float64) Finding {
	if imgstat.Mean(energies) == 0 {
		return neutral("no directional energy")
	}
	cov := imgstat.CoefficientOfVariation(energies)
	uniformity := 1 - math.Min(cov, 1)
	return scored(between(ramp(uniformity, 0.6, 0.95), 25, 75), "projection energy variation %.2f", cov)
}

const (
	zernikeSize     = 64
	zernikeMaxOrder = 6
)

// evalZernikeMoments measures how much of the low-order Zernike energy sits
// in rotationally symmetric (m = 0) terms.
func evalZernikeMoments(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 16 || g.H < 16 {
		return neutral("image too small for Zernike moments"), nil
	}
	p := g.CenterCrop().Resize(zernikeSize, zernikeSize)
	mean := imgstat.Mean(p.Data)

	var symmetric, total float64
	for n := 1; n <= zernikeMaxOrder; n++ {
		for m := n % 2; m <= n; m += 2 {
			mag := zernikeMagnitude(p, mean, n, m)
			total += mag
			if m == 0 {
				symmetric += mag
			}
		}
	}
	if total == 0 {
		return neutral("no Zernike energy"), nil
	}

	share := symmetric / total
	return scored(between(ramp(share, 0.35, 0.8), 25, 75), "rotationally symmetric share %.2f", share), nil
}

func zernikeMagnitude(p *imgstat.Plane, mean float64, n, m int) float64 {
	c := float64(p.W-1) / 2
	var re, im float64
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			dx, dy := (float64(x)-c)/c, (float64(y)-c)/c
			rho := math.Hypot(dx, dy)
			if rho > 1 {
				continue
			}
			v := (p.At(x, y) - mean) * zernikeRadial(n, m, rho)
			theta := math.Atan2(dy, dx)
			re += v * math.Cos(float64(m)*theta)
			im -= v * math.Sin(float64(m)*theta)
		}
	}
	return float64(n+1) / math.Pi * math.Hypot(re, im)
}

func zernikeRadial(n, m int, rho float64) float64 {
	r := 0.0
	for k := 0; k <= (n-m)/2; k++ {
		num := factorial(n - k)
		den := factorial(k) * factorial((n+m)/2-k) * factorial((n-m)/2-k)
		term := num / den * math.Pow(rho, float64(n-2*k))
		if k%2 == 1 {
			term = -term
		}
		r += term
	}
	return r
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

const (
	benfordMaxBlocks       = 4096
	benfordMinCoefficients = 100
)

// evalDCTBenford compares the first significant digits of 8×8 block DCT AC
// coefficients with Benford's distribution by total variation distance.
func evalDCTBenford(in *Input) (Finding, error) {
	g := in.Gray()
	blocks := imgstat.Blocks(g.W, g.H, 8)
	if len(blocks) == 0 {
		return neutral("image too small for 8x8 blocks"), nil
	}
	stride := max(1, len(blocks)/benfordMaxBlocks)

	var digits [10]int
	total := 0
	for i := 0; i < len(blocks); i += stride {
		coeffs := imgstat.DCT2D(blocks[i].Values(g), 8)
		for _, c := range coeffs[1:] {
			a := math.Abs(c)
			if a < 1 {
				continue
			}
			digits[firstDigit(a)]++
			total++
		}
	}
	return benfordFinding(digits, total), nil
}

// benfordFinding scores a first-digit histogram by its total variation
// distance from Benford's law.
func benfordFinding(digits [10]int, total int) Finding {
	if total < benfordMinCoefficients {
		return neutral("only %d significant DCT coefficients", total)
	}
	tvd := benfordDistance(digits, total)
	return scored(between(ramp(tvd, 0.03, 0.2), 25, 80), "Benford distance %.3f over %d coefficients", tvd, total)
}

func benfordDistance(digits [10]int, total int) float64 {
	tvd := 0.0
	for d := 1; d <= 9; d++ {
		observed := float64(digits[d]) / float64(total)
		tvd += math.Abs(observed - benfordShare(d))
	}
	return tvd / 2
}

// benfordShare is the expected share of first digit d.
func benfordShare(d int) float64 {
	return math.Log10(1 + 1/float64(d))
}

func firstDigit(v float64) int {
	for v >= 10 {
		v /= 10
	}
	for v < 1 {
		v *= 10
	}
	d := int(v)
	if d < 1 {
		return 1
	}
	return min(d, 9)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// sortedCopy returns an ascending copy of v.
func sortedCopy(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	return out
}
