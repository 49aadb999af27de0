package signals

import (
	"strings"
	"sync"

	"github.com/humanmark/forensics/internal/imgstat"
	"github.com/humanmark/forensics/internal/metadata"
	"github.com/humanmark/forensics/internal/pixel"
)

// DefaultSpectralWindow is the edge of the square window the frequency
// detectors transform.
const DefaultSpectralWindow = 256

// Params are the tunable analysis windows shared by several detectors.
type Params struct {
	BlockSize      int
	SpectralWindow int
}

// DefaultParams returns the standard windows.
func DefaultParams() Params {
	return Params{
		BlockSize:      imgstat.DefaultBlockSize,
		SpectralWindow: DefaultSpectralWindow,
	}
}

// Input is everything one analysis hands to the detectors. Derived planes
// are computed lazily, at most once, and live only as long as the Input.
// It is safe for concurrent use by detectors.
type Input struct {
	Buffer *pixel.Buffer
	Meta   metadata.FileMetadata
	Params Params

	grayOnce     sync.Once
	gray         *imgstat.Plane
	residualOnce sync.Once
	residual     *imgstat.Plane
	gradOnce     sync.Once
	grad         imgstat.Gradients
	spectrumOnce sync.Once
	spectrum     *imgstat.Spectrum
	satOnce      sync.Once
	saturation   *imgstat.Plane
}

// NewInput wraps a decoded buffer and its metadata. Zero params fall back
// to DefaultParams.
func NewInput(buf *pixel.Buffer, meta metadata.FileMetadata, params Params) *Input {
	def := DefaultParams()
	if params.BlockSize <= 0 {
		params.BlockSize = def.BlockSize
	}
	if params.SpectralWindow <= 0 {
		params.SpectralWindow = def.SpectralWindow
	}
	if buf == nil {
		buf = &pixel.Buffer{}
	}
	return &Input{Buffer: buf, Meta: meta, Params: params}
}

// Gray returns the BT.601 luma plane.
func (in *Input) Gray() *imgstat.Plane {
	in.grayOnce.Do(func() {
		in.gray = imgstat.GrayPlane(in.Buffer)
	})
	return in.gray
}

// Residual returns the Laplacian noise residual of the luma plane.
func (in *Input) Residual() *imgstat.Plane {
	in.residualOnce.Do(func() {
		in.residual = imgstat.Laplacian(in.Gray())
	})
	return in.residual
}

// Gradients returns the Sobel gradients of the luma plane.
func (in *Input) Gradients() imgstat.Gradients {
	in.gradOnce.Do(func() {
		in.grad = imgstat.Sobel(in.Gray())
	})
	return in.grad
}

// Spectrum returns the windowed power spectrum of the luma plane, or nil
// when the image is too small to transform.
func (in *Input) Spectrum() *imgstat.Spectrum {
	in.spectrumOnce.Do(func() {
		in.spectrum = imgstat.PowerSpectrum(in.Gray(), in.Params.SpectralWindow)
	})
	return in.spectrum
}

// Saturation returns the HSV saturation plane.
func (in *Input) Saturation() *imgstat.Plane {
	in.satOnce.Do(func() {
		in.saturation = imgstat.SaturationPlane(in.Buffer)
	})
	return in.saturation
}

// Blocks tiles the buffer with the configured block size.
func (in *Input) Blocks() []imgstat.Block {
	return imgstat.Blocks(in.Buffer.Width, in.Buffer.Height, in.Params.BlockSize)
}

// IsJPEG reports whether the payload claims to be a JPEG.
func (in *Input) IsJPEG() bool {
	if f, ok := in.Meta.Tag(metadata.TagFormat); ok {
		return f == "jpeg"
	}
	return strings.Contains(strings.ToLower(in.Meta.FileType), "jpeg")
}
