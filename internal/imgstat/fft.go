package imgstat

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT replaces a with its forward discrete Fourier transform.
func FFT(a []complex128) {
	if len(a) == 0 {
		return
	}
	out := fourier.NewCmplxFFT(len(a)).Coefficients(nil, a)
	copy(a, out)
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// FloorPowerOfTwo returns the largest power of two ≤ n, or 0.
func FloorPowerOfTwo(n int) int {
	if n < 1 {
		return 0
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

// Spectrum is a centred N×N power spectrum (DC at N/2, N/2).
type Spectrum struct {
	N     int
	Power []float64
}

// At returns the power at centred coordinates (u, v).
func (s *Spectrum) At(u, v int) float64 {
	return s.Power[v*s.N+u]
}

// PowerSpectrum centre-crops p, resizes it to window×window (a power of
// two), removes the mean, applies a Hann window and returns the centred
// power spectrum. It returns nil when p is empty or window is invalid.
func PowerSpectrum(p *Plane, window int) *Spectrum {
	if p.W == 0 || p.H == 0 || !IsPowerOfTwo(window) {
		return nil
	}
	sq := p.CenterCrop()
	if sq.W < window {
		window = FloorPowerOfTwo(sq.W)
	}
	if window < 8 {
		return nil
	}
	src := sq.Resize(window, window)
	mean := Mean(src.Data)

	n := window
	hann := make([]float64, n)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}

	grid := make([]complex128, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			grid[y*n+x] = complex((src.Data[y*n+x]-mean)*hann[x]*hann[y], 0)
		}
	}

	fft := fourier.NewCmplxFFT(n)
	row := make([]complex128, n)
	for y := 0; y < n; y++ {
		fft.Coefficients(row, grid[y*n:(y+1)*n])
		copy(grid[y*n:(y+1)*n], row)
	}
	col := make([]complex128, n)
	out := make([]complex128, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = grid[y*n+x]
		}
		fft.Coefficients(out, col)
		for y := 0; y < n; y++ {
			grid[y*n+x] = out[y]
		}
	}

	power := make([]float64, n*n)
	half := n / 2
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			c := grid[y*n+x]
			sx := (x + half) % n
			sy := (y + half) % n
			power[sy*n+sx] = real(c)*real(c) + imag(c)*imag(c)
		}
	}
	return &Spectrum{N: n, Power: power}
}

// RadialProfile averages power over integer radii from the centre,
// returning N/2 bins (bin 0 is DC).
func (s *Spectrum) RadialProfile() []float64 {
	half := s.N / 2
	sums := make([]float64, half)
	counts := make([]int, half)
	for v := 0; v < s.N; v++ {
		for u := 0; u < s.N; u++ {
			r := int(math.Round(math.Hypot(float64(u-half), float64(v-half))))
			if r < half {
				sums[r] += s.Power[v*s.N+u]
				counts[r]++
			}
		}
	}
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= float64(counts[i])
		}
	}
	return sums
}
