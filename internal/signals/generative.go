package signals

import (
	"math"
	"sort"

	"github.com/humanmark/forensics/internal/imgstat"
)

var (
	descStyleConsistency = Descriptor{
		ID:          "style_consistency",
		Category:    CategoryGenerative,
		Icon:        "brush",
		Description: "Over-uniform gradient orientation statistics across regions",
	}
	descAttentionGrid = Descriptor{
		ID:          "attention_grid",
		Category:    CategoryGenerative,
		Icon:        "patches",
		Description: "Discontinuities along an 8 or 16 pixel patch grid",
	}
	descLocalPatch = Descriptor{
		ID:          "local_patch",
		Category:    CategoryGenerative,
		Icon:        "scan",
		Description: "Most synthetic-looking local patches",
	}
)

const orientationBins = 8

// evalStyleConsistency builds a magnitude-weighted orientation histogram per
// block and measures how little its entropy varies over the frame.
func evalStyleConsistency(in *Input) (Finding, error) {
	grad := in.Gradients()

	var entropies []float64
	for _, b := range in.Blocks() {
		mags := b.Values(grad.Magnitude)
		dirs := b.Values(grad.Orientation)

		var hist [orientationBins]float64
		total := 0.0
		for i, m := range mags {
			if m < 1 {
				continue
			}
			a := dirs[i]
			if a < 0 {
				a += math.Pi
			}
			bin := min(int(a/math.Pi*orientationBins), orientationBins-1)
			hist[bin] += m
			total += m
		}
		if total < float64(len(mags)) {
			continue
		}

		e := 0.0
		for _, h := range hist {
			if h > 0 {
				p := h / total
				e -= p * math.Log2(p)
			}
		}
		entropies = append(entropies, e)
	}
	if len(entropies) < 4 {
		return neutral("fewer than four textured blocks"), nil
	}

	cov := imgstat.CoefficientOfVariation(entropies)
	return scored(between(fall(cov, 0.05, 0.3), 25, 75), "orientation entropy variation %.3f over %d blocks", cov, len(entropies)), nil
}

// evalAttentionGrid compares luma steps on the 16 px grid with those on the
// offset 8 px lines. A JPEG grid raises both alike; a patch grid from a
// latent decoder raises only the former. Outside JPEG the 8 px grid itself
// is also suspicious.
func evalAttentionGrid(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 64 || g.H < 64 {
		return neutral("image too small for patch grid analysis"), nil
	}
	if in.Buffer.Scaled() {
		return neutral("patch grid is not measurable after downscaling"), nil
	}

	on16 := gridRatio(g, 16, 0)
	on8 := gridRatio(g, 16, 8)
	r16 := on16 / math.Max(on8, 1e-9)

	strength := ramp(r16, 1.03, 1.3)
	if !in.IsJPEG() {
		strength = strongest(strength, ramp(gridRatio(g, 8, 0), 1.05, 1.4))
	}
	return scored(between(strength, 30, 80), "16 px to offset 8 px step ratio %.2f", r16), nil
}

const localPatchTopFraction = 0.1

// evalLocalPatch scores every block for synthetic likelihood from its noise
// floor, texture entropy and residual kurtosis, then pools the top decile.
func evalLocalPatch(in *Input) (Finding, error) {
	blocks := in.Blocks()
	if len(blocks) == 0 {
		return neutral("image smaller than one %d px block", in.Params.BlockSize), nil
	}
	g := in.Gray()
	res := in.Residual()

	likelihood := make([]float64, 0, len(blocks))
	for _, b := range blocks {
		r := b.Values(res)
		sigma := imgstat.StdDev(r)
		noise := fall(sigma, 1, 6)

		texture := fall(imgstat.HistogramValues(b.Values(g)).Entropy(), 3, 6.5)

		k := imgstat.Kurtosis(r)
		heavy := 0.0
		if k > 0 {
			heavy = ramp(k, 4, 12)
		}

		likelihood = append(likelihood, (noise+texture+heavy)/3)
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(likelihood)))
	k := max(1, int(math.Ceil(float64(len(likelihood))*localPatchTopFraction)))
	top := imgstat.Mean(likelihood[:k])
	return scored(between(top, 20, 85), "top %d of %d patches average likelihood %.2f", k, len(likelihood), top), nil
}
