package pixel

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Defaults used by the externally facing service.
const (
	DefaultMaxDimension = 1024
	DefaultMaxBytes     = 10 * 1024 * 1024
	DefaultMaxPixels    = 100_000_000
)

// Loader decodes raw bytes into a Buffer, enforcing the byte ceiling and the
// dimension cap.
type Loader struct {
	// MaxDimension caps the larger side of the decoded raster. Zero disables it.
	MaxDimension int

	// MaxBytes rejects larger payloads before decoding. Zero disables it.
	MaxBytes int64

	// MaxPixels rejects rasters whose header declares more pixels, before
	// any pixel data is allocated. Zero disables it.
	MaxPixels int64
}

// NewLoader creates a Loader with the given limits and DefaultMaxPixels.
func NewLoader(maxDimension int, maxBytes int64) *Loader {
	return &Loader{MaxDimension: maxDimension, MaxBytes: maxBytes, MaxPixels: DefaultMaxPixels}
}

// Load decodes data into a Buffer. GIF input yields its first frame.
// declaredMIME only labels errors; the format is sniffed from the bytes.
func (l *Loader) Load(data []byte, declaredMIME string) (*Buffer, error) {
	if err := l.CheckSize(int64(len(data))); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &DecodeError{Format: formatFromMIME(declaredMIME), Err: errors.New("empty input")}
	}

	cfg, format, err := decodeConfig(data)
	if err != nil {
		return nil, &DecodeError{Format: formatFromMIME(declaredMIME), Err: err}
	}
	if err := l.CheckPixels(cfg.Width, cfg.Height); err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	img, format, err := decode(data)
	if err != nil {
		return nil, &DecodeError{Format: formatFromMIME(declaredMIME), Err: err}
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &DecodeError{Format: format, Err: fmt.Errorf("empty raster %dx%d", bounds.Dx(), bounds.Dy())}
	}

	return FromImage(img, l.MaxDimension), nil
}

// CheckSize returns an OversizeError when size exceeds MaxBytes.
func (l *Loader) CheckSize(size int64) error {
	if l.MaxBytes > 0 && size > l.MaxBytes {
		return &OversizeError{Size: size, Limit: l.MaxBytes}
	}
	return nil
}

// CheckPixels fails when a w×h raster exceeds MaxPixels.
func (l *Loader) CheckPixels(w, h int) error {
	if l.MaxPixels > 0 && int64(w)*int64(h) > l.MaxPixels {
		return fmt.Errorf("raster %dx%d exceeds %d pixels", w, h, l.MaxPixels)
	}
	return nil
}

// decode wraps image.Decode so that a misbehaving codec cannot take down the
// caller.
func decode(data []byte) (img image.Image, format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, format, err = nil, "", fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return image.Decode(bytes.NewReader(data))
}

func decodeConfig(data []byte) (cfg image.Config, format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			cfg, format, err = image.Config{}, "", fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return image.DecodeConfig(bytes.NewReader(data))
}

// FromImage converts img to a Buffer, scaling it down when its larger side
// exceeds maxDimension.
func FromImage(img image.Image, maxDimension int) *Buffer {
	bounds := img.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()
	w, h := FitWithin(sw, sh, maxDimension)

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == sw && h == sh {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	}

	return &Buffer{
		Width:        w,
		Height:       h,
		Pix:          dst.Pix,
		SourceWidth:  sw,
		SourceHeight: sh,
	}
}

// FitWithin returns the dimensions after fitting the larger side to max,
// preserving the aspect ratio. Dimensions already within max are returned
// unchanged.
func FitWithin(w, h, max int) (int, int) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h
	}

	if w >= h {
		ratio := float64(max) / float64(w)
		return max, clampDim(int(math.Round(float64(h) * ratio)))
	}
	ratio := float64(max) / float64(h)
	return clampDim(int(math.Round(float64(w) * ratio))), max
}

func clampDim(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func formatFromMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = mime[:idx]
	}
	if strings.HasPrefix(mime, "image/") {
		return strings.TrimPrefix(mime, "image/")
	}
	return mime
}
