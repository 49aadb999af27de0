// Package imgstat holds the pixel-statistics primitives shared by every
// forensic module: luma conversion, tiling, histograms, moments, filters and
// frequency transforms.
//
// All functions are pure. Modules must call these rather than re-deriving
// them so that detectors relying on the same primitive agree exactly.
package imgstat

import (
	"math"

	"github.com/humanmark/forensics/internal/pixel"
)

// ITU-R BT.601 luma coefficients.
const (
	LumaR = 0.299
	LumaG = 0.587
	LumaB = 0.114
)

// Luma returns the BT.601 luma of an RGB sample.
func Luma(r, g, b uint8) float64 {
	return LumaR*float64(r) + LumaG*float64(g) + LumaB*float64(b)
}

// Plane is a single-channel float64 raster, row-major.
type Plane struct {
	W, H int
	Data []float64
}

// NewPlane allocates a zeroed w×h plane.
func NewPlane(w, h int) *Plane {
	return &Plane{W: w, H: h, Data: make([]float64, w*h)}
}

// At returns the sample at (x, y).
func (p *Plane) At(x, y int) float64 {
	return p.Data[y*p.W+x]
}

// Set stores v at (x, y).
func (p *Plane) Set(x, y int, v float64) {
	p.Data[y*p.W+x] = v
}

// Region copies the w×h window whose top-left corner is (x, y).
func (p *Plane) Region(x, y, w, h int) []float64 {
	out := make([]float64, 0, w*h)
	for yy := y; yy < y+h; yy++ {
		row := p.Data[yy*p.W+x : yy*p.W+x+w]
		out = append(out, row...)
	}
	return out
}

// GrayPlane converts buf to a luma plane.
func GrayPlane(buf *pixel.Buffer) *Plane {
	p := NewPlane(buf.Width, buf.Height)
	for i, j := 0, 0; j < len(p.Data); i, j = i+pixel.Channels, j+1 {
		p.Data[j] = Luma(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])
	}
	return p
}

// ChannelPlane extracts one of the R (0), G (1) or B (2) channels.
func ChannelPlane(buf *pixel.Buffer, channel int) *Plane {
	p := NewPlane(buf.Width, buf.Height)
	for i, j := channel, 0; j < len(p.Data); i, j = i+pixel.Channels, j+1 {
		p.Data[j] = float64(buf.Pix[i])
	}
	return p
}

// SaturationPlane returns the HSV saturation of every pixel in [0,1].
func SaturationPlane(buf *pixel.Buffer) *Plane {
	p := NewPlane(buf.Width, buf.Height)
	for i, j := 0, 0; j < len(p.Data); i, j = i+pixel.Channels, j+1 {
		r, g, b := buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2]
		maxC := math.Max(float64(r), math.Max(float64(g), float64(b)))
		if maxC == 0 {
			continue
		}
		minC := math.Min(float64(r), math.Min(float64(g), float64(b)))
		p.Data[j] = (maxC - minC) / maxC
	}
	return p
}

// Resize area-averages (downscale) or nearest-samples (upscale) p to w×h.
func (p *Plane) Resize(w, h int) *Plane {
	out := NewPlane(w, h)
	if p.W == 0 || p.H == 0 || w == 0 || h == 0 {
		return out
	}

	sx := float64(p.W) / float64(w)
	sy := float64(p.H) / float64(h)
	for y := 0; y < h; y++ {
		y0 := int(float64(y) * sy)
		y1 := int(float64(y+1) * sy)
		if y1 <= y0 {
			y1 = y0 + 1
		}
		if y1 > p.H {
			y1 = p.H
		}
		for x := 0; x < w; x++ {
			x0 := int(float64(x) * sx)
			x1 := int(float64(x+1) * sx)
			if x1 <= x0 {
				x1 = x0 + 1
			}
			if x1 > p.W {
				x1 = p.W
			}
			sum := 0.0
			for yy := y0; yy < y1; yy++ {
				for xx := x0; xx < x1; xx++ {
					sum += p.Data[yy*p.W+xx]
				}
			}
			out.Data[y*w+x] = sum / float64((y1-y0)*(x1-x0))
		}
	}
	return out
}

// CenterCrop returns the largest centred square of p.
func (p *Plane) CenterCrop() *Plane {
	n := p.W
	if p.H < n {
		n = p.H
	}
	x0 := (p.W - n) / 2
	y0 := (p.H - n) / 2
	return &Plane{W: n, H: n, Data: p.Region(x0, y0, n, n)}
}
