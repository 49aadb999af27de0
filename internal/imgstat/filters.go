package imgstat

import "math"

// Gradients holds per-pixel Sobel magnitude and orientation (radians).
type Gradients struct {
	Magnitude   *Plane
	Orientation *Plane
}

// Sobel computes 3×3 Sobel gradients. Border pixels are left at zero.
func Sobel(p *Plane) Gradients {
	mag := NewPlane(p.W, p.H)
	dir := NewPlane(p.W, p.H)
	for y := 1; y < p.H-1; y++ {
		for x := 1; x < p.W-1; x++ {
			tl, tc, tr := p.At(x-1, y-1), p.At(x, y-1), p.At(x+1, y-1)
			ml, mr := p.At(x-1, y), p.At(x+1, y)
			bl, bc, br := p.At(x-1, y+1), p.At(x, y+1), p.At(x+1, y+1)

			gx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy := (bl + 2*bc + br) - (tl + 2*tc + tr)

			mag.Set(x, y, math.Hypot(gx, gy))
			dir.Set(x, y, math.Atan2(gy, gx))
		}
	}
	return Gradients{Magnitude: mag, Orientation: dir}
}

// Laplacian returns the 4-neighbour Laplacian response, a high-pass noise
// residual. Border pixels are left at zero.
func Laplacian(p *Plane) *Plane {
	out := NewPlane(p.W, p.H)
	for y := 1; y < p.H-1; y++ {
		for x := 1; x < p.W-1; x++ {
			v := 4*p.At(x, y) - p.At(x-1, y) - p.At(x+1, y) - p.At(x, y-1) - p.At(x, y+1)
			out.Set(x, y, v)
		}
	}
	return out
}

// Interior returns the samples of p excluding a border of width b.
func Interior(p *Plane, b int) []float64 {
	if p.W <= 2*b || p.H <= 2*b {
		return nil
	}
	return p.Region(b, b, p.W-2*b, p.H-2*b)
}

// BoxMean returns the mean over the (2r+1)² window around each pixel, using
// a summed-area table. Windows are clipped at the borders.
func BoxMean(p *Plane, r int) *Plane {
	w, h := p.W, p.H
	sat := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0.0
		for x := 0; x < w; x++ {
			row += p.Data[y*w+x]
			sat[(y+1)*(w+1)+x+1] = sat[y*(w+1)+x+1] + row
		}
	}

	out := NewPlane(w, h)
	for y := 0; y < h; y++ {
		y0, y1 := max(y-r, 0), min(y+r+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-r, 0), min(x+r+1, w)
			sum := sat[y1*(w+1)+x1] - sat[y0*(w+1)+x1] - sat[y1*(w+1)+x0] + sat[y0*(w+1)+x0]
			out.Data[y*w+x] = sum / float64((y1-y0)*(x1-x0))
		}
	}
	return out
}
