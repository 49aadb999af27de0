package imgstat

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmark/forensics/internal/pixel"
)

func TestLuma(t *testing.T) {
	tests := []struct {
		name     string
		r, g, b  uint8
		expected float64
	}{
		{"black", 0, 0, 0, 0},
		{"white", 255, 255, 255, 255},
		{"red", 255, 0, 0, 76.245},
		{"green", 0, 255, 0, 149.685},
		{"blue", 0, 0, 255, 29.07},
		{"mixed", 10, 20, 30, 0.299*10 + 0.587*20 + 0.114*30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Luma(tt.r, tt.g, tt.b), 1e-9)
		})
	}
}

func TestGrayPlane(t *testing.T) {
	buf := &pixel.Buffer{Width: 2, Height: 1, Pix: []uint8{255, 0, 0, 255, 0, 0, 255, 255}}

	p := GrayPlane(buf)

	require.Equal(t, 2, p.W)
	require.Equal(t, 1, p.H)
	assert.InDelta(t, 76.245, p.At(0, 0), 1e-9)
	assert.InDelta(t, 29.07, p.At(1, 0), 1e-9)
}

func TestBlocks(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		size  int
		count int
	}{
		{"exact", 64, 64, 32, 4},
		{"partial edges discarded", 100, 70, 32, 6},
		{"smaller than one tile", 31, 200, 32, 0},
		{"zero size", 64, 64, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := Blocks(tt.w, tt.h, tt.size)
			assert.Len(t, blocks, tt.count)
			for _, b := range blocks {
				assert.LessOrEqual(t, b.X+b.Size, tt.w)
				assert.LessOrEqual(t, b.Y+b.Size, tt.h)
			}
		})
	}

	blocks := Blocks(96, 64, 32)
	assert.Equal(t, Block{X: 32, Y: 0, Size: 32}, blocks[1])
	assert.Equal(t, Block{X: 0, Y: 32, Size: 32}, blocks[3])
}

func TestHistogram(t *testing.T) {
	h := HistogramValues([]float64{-5, 0, 0.4, 127.6, 255, 300})

	assert.Equal(t, 6, h.Total())
	assert.Equal(t, 3, h[0])
	assert.Equal(t, 1, h[128])
	assert.Equal(t, 2, h[255])

	lo, hi := h.Span()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 255, hi)
}

func TestEntropy(t *testing.T) {
	assert.Zero(t, Entropy(nil))
	assert.Zero(t, Entropy([]int{10}))
	assert.InDelta(t, 1.0, Entropy([]int{5, 5}), 1e-12)

	var uniform Histogram
	for i := range uniform {
		uniform[i] = 1
	}
	assert.InDelta(t, 8.0, uniform.Entropy(), 1e-12)
}

func TestMoments(t *testing.T) {
	v := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.InDelta(t, 5, Mean(v), 1e-12)
	assert.InDelta(t, 4, Variance(v), 1e-12)
	assert.InDelta(t, 2, StdDev(v), 1e-12)
	assert.InDelta(t, 0.4, CoefficientOfVariation(v), 1e-12)
	assert.Greater(t, Skewness(v), 0.0)
	assert.Greater(t, Kurtosis(v), 0.0)

	constant := []float64{3, 3, 3}
	assert.Zero(t, Variance(constant))
	assert.Zero(t, Skewness(constant))
	assert.Zero(t, Kurtosis(constant))
	assert.Zero(t, Mean(nil))
}

func TestPercentileAndCorrelation(t *testing.T) {
	v := []float64{5, 1, 4, 2, 3}
	assert.Equal(t, 1.0, Percentile(v, 0))
	assert.Equal(t, 3.0, Percentile(v, 50))
	assert.Equal(t, 5.0, Percentile(v, 100))
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, v, "input must not be reordered")

	a := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1, Correlation(a, []float64{2, 4, 6, 8}), 1e-12)
	assert.InDelta(t, -1, Correlation(a, []float64{8, 6, 4, 2}), 1e-12)
	assert.Zero(t, Correlation(a, []float64{1, 1, 1, 1}))
}

func TestResize(t *testing.T) {
	p := NewPlane(4, 4)
	for i := range p.Data {
		p.Data[i] = float64(i)
	}

	small := p.Resize(2, 2)
	require.Len(t, small.Data, 4)
	assert.InDelta(t, (0+1+4+5)/4.0, small.At(0, 0), 1e-12)
	assert.InDelta(t, (10+11+14+15)/4.0, small.At(1, 1), 1e-12)

	big := p.Resize(8, 8)
	assert.Equal(t, p.At(3, 3), big.At(7, 7))
}

func TestSobelAndLaplacian(t *testing.T) {
	flat := NewPlane(8, 8)
	for i := range flat.Data {
		flat.Data[i] = 100
	}
	g := Sobel(flat)
	assert.Zero(t, Mean(g.Magnitude.Data))
	assert.Zero(t, Mean(Laplacian(flat).Data))

	step := NewPlane(8, 8)
	for y := 0; y < 8; y++ {
		for x := 4; x < 8; x++ {
			step.Set(x, y, 255)
		}
	}
	g = Sobel(step)
	assert.Greater(t, g.Magnitude.At(4, 4), 0.0)
	assert.InDelta(t, 0, g.Orientation.At(4, 4), 1e-9)
	assert.Zero(t, g.Magnitude.At(1, 4))
}

func TestFFT(t *testing.T) {
	a := []complex128{1, 1, 1, 1, 1, 1, 1, 1}
	FFT(a)
	assert.InDelta(t, 8, real(a[0]), 1e-9)
	for _, c := range a[1:] {
		assert.InDelta(t, 0, math.Hypot(real(c), imag(c)), 1e-9)
	}

	assert.True(t, IsPowerOfTwo(256))
	assert.False(t, IsPowerOfTwo(255))
	assert.Equal(t, 128, FloorPowerOfTwo(200))
	assert.Zero(t, FloorPowerOfTwo(0))
}

func TestPowerSpectrum(t *testing.T) {
	p := NewPlane(64, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			p.Set(x, y, 128+100*math.Sin(2*math.Pi*float64(x)/8))
		}
	}

	s := PowerSpectrum(p, 64)
	require.NotNil(t, s)
	assert.Equal(t, 64, s.N)

	// A horizontal period of 8 puts its peak 64/8 bins from the centre.
	peak := s.At(32+8, 32)
	assert.Greater(t, peak, s.At(32+3, 32)*100)

	profile := s.RadialProfile()
	assert.Len(t, profile, 32)

	assert.Nil(t, PowerSpectrum(NewPlane(4, 4), 256))
	assert.Nil(t, PowerSpectrum(p, 100))
}

func TestDCT2D(t *testing.T) {
	block := make([]float64, 64)
	for i := range block {
		block[i] = 10
	}
	c := DCT2D(block, 8)
	assert.InDelta(t, 80, c[0], 1e-9)
	for _, v := range c[1:] {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestDCT2DMatchesDirectSum(t *testing.T) {
	const n = 8
	block := make([]float64, n*n)
	for i := range block {
		block[i] = float64((i*37)%23) - 11
	}
	orig := append([]float64(nil), block...)

	c := DCT2D(block, n)
	require.Len(t, c, n*n)
	assert.Equal(t, orig, block, "input is left untouched")

	scale := func(k int) float64 {
		if k == 0 {
			return math.Sqrt(1.0 / n)
		}
		return math.Sqrt(2.0 / n)
	}
	for v := 0; v < n; v++ {
		for u := 0; u < n; u++ {
			want := 0.0
			for y := 0; y < n; y++ {
				for x := 0; x < n; x++ {
					want += block[y*n+x] *
						math.Cos(float64(2*x+1)*float64(u)*math.Pi/(2*n)) *
						math.Cos(float64(2*y+1)*float64(v)*math.Pi/(2*n))
				}
			}
			want *= scale(u) * scale(v)
			assert.InDelta(t, want, c[v*n+u], 1e-9, "coefficient (%d,%d)", u, v)
		}
	}
}

func TestFFTNonPowerOfTwo(t *testing.T) {
	a := make([]complex128, 12)
	for i := range a {
		a[i] = complex(math.Cos(2*math.Pi*3*float64(i)/12), 0)
	}
	FFT(a)
	assert.InDelta(t, 6, real(a[3]), 1e-9)
	assert.InDelta(t, 6, real(a[9]), 1e-9)
	assert.InDelta(t, 0, math.Hypot(real(a[1]), imag(a[1])), 1e-9)
}

func BenchmarkPowerSpectrum(b *testing.B) {
	p := NewPlane(1024, 768)
	for i := range p.Data {
		p.Data[i] = float64(i % 251)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PowerSpectrum(p, 256)
	}
}

func TestBoxMean(t *testing.T) {
	p := NewPlane(3, 3)
	for i := range p.Data {
		p.Data[i] = float64(i)
	}

	m := BoxMean(p, 1)

	assert.InDelta(t, 4, m.At(1, 1), 1e-12)
	assert.InDelta(t, (0+1+3+4)/4.0, m.At(0, 0), 1e-12)
}

func TestPHash(t *testing.T) {
	noise := func(seed int64) *Plane {
		rng := rand.New(rand.NewSource(seed))
		p := NewPlane(64, 64)
		for i := range p.Data {
			p.Data[i] = float64(rng.Intn(256))
		}
		return p
	}
	a, b := noise(1), noise(2)

	assert.Zero(t, Hamming(PHash(a), PHash(a)))
	assert.Greater(t, Hamming(PHash(a), PHash(b)), 10)
}
