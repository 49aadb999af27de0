package pixel

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmark/forensics/internal/testfixture"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoadDimensionCap(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4000, 3000))
	for y := 0; y < 3000; y += 7 {
		for x := 0; x < 4000; x++ {
			src.SetGray(x, y, color.Gray{Y: uint8(x % 251)})
		}
	}

	buf, err := NewLoader(DefaultMaxDimension, 0).Load(encodePNG(t, src), "image/png")
	require.NoError(t, err)

	assert.Equal(t, 1024, buf.Width)
	assert.Equal(t, 768, buf.Height)
	assert.Equal(t, 4000, buf.SourceWidth)
	assert.Equal(t, 3000, buf.SourceHeight)
	assert.Len(t, buf.Pix, buf.Width*buf.Height*Channels)
	assert.True(t, buf.Scaled())

	expectedHeight := float64(buf.Width) * 3000 / 4000
	assert.InDelta(t, expectedHeight, float64(buf.Height), 1)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"landscape", 4000, 3000, 1024, 1024, 768},
		{"portrait", 3000, 4000, 1024, 768, 1024},
		{"square", 2048, 2048, 1024, 1024, 1024},
		{"within", 800, 600, 1024, 800, 600},
		{"exact", 1024, 10, 1024, 1024, 10},
		{"thin strip keeps one pixel", 10000, 2, 1024, 1024, 1},
		{"disabled", 5000, 5000, 0, 5000, 5000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, h := FitWithin(tc.w, tc.h, tc.max)
			assert.Equal(t, tc.wantW, w)
			assert.Equal(t, tc.wantH, h)
		})
	}
}

func TestLoadKeepsSmallImages(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	buf, err := NewLoader(DefaultMaxDimension, DefaultMaxBytes).Load(encodePNG(t, src), "image/png")
	require.NoError(t, err)

	assert.Equal(t, 3, buf.Width)
	assert.Equal(t, 2, buf.Height)
	assert.False(t, buf.Scaled())

	r, g, b := buf.RGB(1, 1)
	assert.Equal(t, [3]uint8{10, 20, 30}, [3]uint8{r, g, b})
	assert.Equal(t, uint8(255), buf.Pix[buf.Offset(1, 1)+3])
}

func TestLoadJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 13)
	}
	var out bytes.Buffer
	require.NoError(t, jpeg.Encode(&out, src, &jpeg.Options{Quality: 90}))

	buf, err := NewLoader(DefaultMaxDimension, DefaultMaxBytes).Load(out.Bytes(), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, 64, buf.Width)
	assert.Equal(t, 48, buf.Height)
}

func TestLoadGIFFirstFrame(t *testing.T) {
	palette := color.Palette{color.Black, color.White}
	first := image.NewPaletted(image.Rect(0, 0, 4, 4), palette)
	second := image.NewPaletted(image.Rect(0, 0, 4, 4), palette)
	for i := range second.Pix {
		second.Pix[i] = 1
	}

	var out bytes.Buffer
	require.NoError(t, gif.EncodeAll(&out, &gif.GIF{
		Image: []*image.Paletted{first, second},
		Delay: []int{10, 10},
	}))

	buf, err := NewLoader(DefaultMaxDimension, DefaultMaxBytes).Load(out.Bytes(), "image/gif")
	require.NoError(t, err)

	r, _, _ := buf.RGB(0, 0)
	assert.Equal(t, uint8(0), r, "first frame is black")
}

func TestLoadErrors(t *testing.T) {
	loader := NewLoader(DefaultMaxDimension, 1024)

	t.Run("oversize is rejected before decoding", func(t *testing.T) {
		_, err := loader.Load(make([]byte, 2048), "image/png")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOversize)
		assert.NotErrorIs(t, err, ErrDecode)

		var oe *OversizeError
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, int64(2048), oe.Size)
		assert.Equal(t, int64(1024), oe.Limit)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		_, err := loader.Load([]byte("definitely not an image"), "image/jpeg")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDecode)

		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "jpeg", de.Format)
	})

	t.Run("truncated png", func(t *testing.T) {
		data := encodePNG(t, image.NewGray(image.Rect(0, 0, 8, 8)))
		_, err := loader.Load(data[:len(data)/2], "image/png")
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := loader.Load(nil, "")
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestLoadRejectsDeclaredHugeRaster(t *testing.T) {
	data := testfixture.PNGHeaderOnly(50000, 50000)
	require.Less(t, len(data), 100)

	_, err := NewLoader(DefaultMaxDimension, DefaultMaxBytes).Load(data, "image/png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestCheckPixels(t *testing.T) {
	l := &Loader{MaxPixels: 100}
	assert.NoError(t, l.CheckPixels(10, 10))
	assert.Error(t, l.CheckPixels(11, 10))
	assert.NoError(t, (&Loader{}).CheckPixels(1<<20, 1<<20), "zero disables the ceiling")

	small := encodePNG(t, image.NewGray(image.Rect(0, 0, 20, 20)))
	_, err := (&Loader{MaxPixels: 399}).Load(small, "image/png")
	assert.ErrorIs(t, err, ErrDecode)
	_, err = (&Loader{MaxPixels: 400}).Load(small, "image/png")
	assert.NoError(t, err)
}

func BenchmarkLoadAndScale(b *testing.B) {
	src := image.NewGray(image.Rect(0, 0, 2048, 1536))
	var out bytes.Buffer
	if err := png.Encode(&out, src); err != nil {
		b.Fatal(err)
	}
	loader := NewLoader(DefaultMaxDimension, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := loader.Load(out.Bytes(), "image/png"); err != nil {
			b.Fatal(err)
		}
	}
}
