package signals

import (
	"math"
	"sort"
	"strconv"

	"github.com/humanmark/forensics/internal/imgstat"
	"github.com/humanmark/forensics/internal/metadata"
)

var (
	descPerceptualHash = Descriptor{
		ID:          "perceptual_hash",
		Category:    CategoryPerceptual,
		Icon:        "fingerprint",
		Description: "Self-similar quadrants suggesting tiled synthesis",
	}
	descImagePhylogeny = Descriptor{
		ID:          "image_phylogeny",
		Category:    CategoryPerceptual,
		Icon:        "tree",
		Description: "Re-encoding lineage inconsistent with the declared JPEG quality",
	}
	descKeypointForensics = Descriptor{
		ID:          "keypoint_forensics",
		Category:    CategoryPerceptual,
		Icon:        "points",
		Description: "Duplicated corner descriptors or unusually sparse keypoints",
	}
	descIlluminantMap = Descriptor{
		ID:          "illuminant_map",
		Category:    CategoryPerceptual,
		Icon:        "sun",
		Description: "Inconsistent illuminant chromaticity across regions",
	}
	descColorTemperature = Descriptor{
		ID:          "color_temperature",
		Category:    CategoryPerceptual,
		Icon:        "thermometer",
		Description: "Implausible or inconsistent correlated colour temperature",
	}
)

// evalPerceptualHash hashes each quadrant and reports the closest pair.
func evalPerceptualHash(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 32 || g.H < 32 {
		return neutral("image too small for quadrant hashes"), nil
	}

	qw, qh := g.W/2, g.H/2
	hashes := make([]uint64, 0, 4)
	for _, o := range [][2]int{{0, 0}, {qw, 0}, {0, qh}, {qw, qh}} {
		q := &imgstat.Plane{W: qw, H: qh, Data: g.Region(o[0], o[1], qw, qh)}
		if imgstat.Variance(q.Data) < 1 {
			return neutral("quadrants lack texture"), nil
		}
		hashes = append(hashes, imgstat.PHash(q))
	}

	closest := 64
	for i := 0; i < len(hashes); i++ {
		for j := i + 1; j < len(hashes); j++ {
			closest = min(closest, imgstat.Hamming(hashes[i], hashes[j]))
		}
	}
	return scored(between(fall(float64(closest), 6, 24), 30, 80), "closest quadrant hash distance %d", closest), nil
}

// evalImagePhylogeny compares the 8×8 grid strength a JPEG of the declared
// quality should show with what is measured. A grid much weaker than the
// quality implies means the content was unusually smooth before encoding.
func evalImagePhylogeny(in *Input) (Finding, error) {
	if !in.IsJPEG() {
		return neutral("lineage is only traced for JPEG"), nil
	}
	v, ok := in.Meta.Tag(metadata.TagJPEGQuality)
	if !ok {
		return neutral("no quantisation table"), nil
	}
	q, err := strconv.Atoi(v)
	if err != nil {
		return neutral("unreadable JPEG quality %q", v), nil
	}
	g := in.Gray()
	if in.Buffer.Scaled() || g.W < 32 || g.H < 32 {
		return neutral("8x8 grid is not measurable at this size"), nil
	}

	measured := gridRatio(g, 8, 0)
	expected := 1 + 0.8*ramp(float64(100-q), 5, 50)
	mismatch := expected - measured
	return scored(between(ramp(mismatch, 0, 0.5), 30, 75),
		"quality %d expects grid %.2f, measured %.2f", q, expected, measured), nil
}

const (
	keypointMaxSide  = 256
	keypointMax      = 200
	keypointPatch    = 4
	keypointMinSep   = 16
	keypointDupCorr  = 0.97
	harrisK          = 0.04
	harrisRelativeTh = 0.01
)

type keypoint struct {
	x, y     int
	response float64
}

// evalKeypointForensics detects Harris corners, compares normalized patch
// descriptors between distant corners and also flags very sparse corners.
func evalKeypointForensics(in *Input) (Finding, error) {
	g := in.Gray()
	if g.W < 32 || g.H < 32 {
		return neutral("image too small for keypoints"), nil
	}
	scale := math.Min(1, float64(keypointMaxSide)/float64(max(g.W, g.H)))
	p := g.Resize(max(16, int(float64(g.W)*scale)), max(16, int(float64(g.H)*scale)))

	kps := harrisCorners(p)
	if len(kps) == 0 {
		return neutral("no keypoints"), nil
	}

	descs := make([][]float64, len(kps))
	for i, k := range kps {
		descs[i] = patchDescriptor(p, k.x, k.y)
	}
	dups := 0
	for i := range kps {
		for j := i + 1; j < len(kps); j++ {
			dx, dy := kps[i].x-kps[j].x, kps[i].y-kps[j].y
			if dx*dx+dy*dy < keypointMinSep*keypointMinSep {
				continue
			}
			if descs[i] != nil && descs[j] != nil && imgstat.Correlation(descs[i], descs[j]) > keypointDupCorr {
				dups++
				break
			}
		}
	}

	dupRatio := float64(dups) / float64(len(kps))
	density := float64(len(kps)) / float64(p.W*p.H) * 10000
	strength := strongest(ramp(dupRatio, 0.02, 0.2), fall(density, 0.5, 5))
	return scored(between(strength, 25, 80), "%d keypoints, %d duplicated, density %.1f per 10k px", len(kps), dups, density), nil
}

func harrisCorners(p *imgstat.Plane) []keypoint {
	grad := imgstat.Sobel(p)
	ixx := imgstat.NewPlane(p.W, p.H)
	iyy := imgstat.NewPlane(p.W, p.H)
	ixy := imgstat.NewPlane(p.W, p.H)
	for i := range p.Data {
		m, a := grad.Magnitude.Data[i], grad.Orientation.Data[i]
		gx, gy := m*math.Cos(a), m*math.Sin(a)
		ixx.Data[i], iyy.Data[i], ixy.Data[i] = gx*gx, gy*gy, gx*gy
	}
	sxx, syy, sxy := imgstat.BoxMean(ixx, 1), imgstat.BoxMean(iyy, 1), imgstat.BoxMean(ixy, 1)

	resp := imgstat.NewPlane(p.W, p.H)
	peak := 0.0
	for i := range resp.Data {
		det := sxx.Data[i]*syy.Data[i] - sxy.Data[i]*sxy.Data[i]
		tr := sxx.Data[i] + syy.Data[i]
		resp.Data[i] = det - harrisK*tr*tr
		peak = math.Max(peak, resp.Data[i])
	}
	if peak <= 0 {
		return nil
	}

	var kps []keypoint
	border := keypointPatch + 1
	for y := border; y < p.H-border; y++ {
		for x := border; x < p.W-border; x++ {
			r := resp.At(x, y)
			if r < peak*harrisRelativeTh || !isLocalMax(resp, x, y) {
				continue
			}
			kps = append(kps, keypoint{x: x, y: y, response: r})
		}
	}
	sort.Slice(kps, func(i, j int) bool {
		if kps[i].response != kps[j].response {
			return kps[i].response > kps[j].response
		}
		if kps[i].y != kps[j].y {
			return kps[i].y < kps[j].y
		}
		return kps[i].x < kps[j].x
	})
	if len(kps) > keypointMax {
		kps = kps[:keypointMax]
	}
	return kps
}

func isLocalMax(p *imgstat.Plane, x, y int) bool {
	v := p.At(x, y)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dx != 0 || dy != 0) && p.At(x+dx, y+dy) >= v {
				return false
			}
		}
	}
	return true
}

// patchDescriptor is the normalized (2r)² luma patch around (x, y), or nil
// for a flat patch.
func patchDescriptor(p *imgstat.Plane, x, y int) []float64 {
	r := keypointPatch
	d := p.Region(x-r, y-r, 2*r, 2*r)
	if imgstat.Variance(d) < 1 {
		return nil
	}
	return d
}

// evalIlluminantMap estimates the illuminant of each block from its
// brightest pixels and measures how far the chromaticities spread.
func evalIlluminantMap(in *Input) (Finding, error) {
	buf := in.Buffer
	g := in.Gray()
	blocks := imgstat.Blocks(buf.Width, buf.Height, 2*in.Params.BlockSize)
	if len(blocks) < 4 {
		blocks = in.Blocks()
	}

	var rs, gs []float64
	for _, b := range blocks {
		vals := b.Values(g)
		mean := imgstat.Mean(vals)
		if mean < 30 || mean > 230 {
			continue
		}
		cut := imgstat.Percentile(vals, 95)

		var sr, sg, sb float64
		for y := b.Y; y < b.Y+b.Size; y++ {
			for x := b.X; x < b.X+b.Size; x++ {
				if g.At(x, y) < cut {
					continue
				}
				r, gg, bb := buf.RGB(x, y)
				sr += float64(r)
				sg += float64(gg)
				sb += float64(bb)
			}
		}
		if sum := sr + sg + sb; sum > 0 {
			rs = append(rs, sr/sum)
			gs = append(gs, sg/sum)
		}
	}
	if len(rs) < 4 {
		return neutral("fewer than four well-exposed blocks"), nil
	}

	spread := imgstat.StdDev(rs) + imgstat.StdDev(gs)
	return scored(between(ramp(spread, 0.03, 0.12), 30, 75), "illuminant chromaticity spread %.3f over %d blocks", spread, len(rs)), nil
}

const (
	cctPlausibleMin = 2000
	cctPlausibleMax = 10000
)

// evalColorTemperature estimates the gray-world correlated colour
// temperature (McCamy) of the frame and its quadrants.
func evalColorTemperature(in *Input) (Finding, error) {
	buf := in.Buffer
	if buf.Width < 2 || buf.Height < 2 {
		return neutral("image too small for colour temperature"), nil
	}

	global, ok := regionCCT(in, 0, 0, buf.Width, buf.Height)
	if !ok {
		return neutral("no chromatic content"), nil
	}

	hw, hh := buf.Width/2, buf.Height/2
	var mireds []float64
	for _, o := range [][2]int{{0, 0}, {hw, 0}, {0, hh}, {hw, hh}} {
		if t, ok := regionCCT(in, o[0], o[1], hw, hh); ok {
			mireds = append(mireds, 1e6/t)
		}
	}

	outside := 0.0
	if global < cctPlausibleMin {
		outside = cctPlausibleMin - global
	} else if global > cctPlausibleMax {
		outside = global - cctPlausibleMax
	}
	spread := 0.0
	if len(mireds) > 1 {
		spread = imgstat.StdDev(mireds)
	}

	strength := strongest(ramp(outside, 0, 2000), ramp(spread, 20, 80))
	return scored(between(strength, 30, 75), "CCT %.0fK, quadrant spread %.1f mired", global, spread), nil
}

func regionCCT(in *Input, x0, y0, w, h int) (float64, bool) {
	var r, g, b float64
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			pr, pg, pb := in.Buffer.RGB(x, y)
			r += srgbToLinear(pr)
			g += srgbToLinear(pg)
			b += srgbToLinear(pb)
		}
	}
	X := 0.4124*r + 0.3576*g + 0.1805*b
	Y := 0.2126*r + 0.7152*g + 0.0722*b
	Z := 0.0193*r + 0.1192*g + 0.9505*b
	sum := X + Y + Z
	if sum == 0 {
		return 0, false
	}
	cx, cy := X/sum, Y/sum
	if cy > 0.1858 {
		n := (cx - 0.3320) / (0.1858 - cy)
		t := 449*n*n*n + 3525*n*n + 6823.3*n + 5520.33
		if t > 0 && !math.IsInf(t, 0) {
			return t, true
		}
	}
	return 0, false
}

func srgbToLinear(v uint8) float64 {
	c := float64(v) / 255
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}
