// Package pixel decodes raw image bytes into the canonical RGBA buffer every
// forensic module reads.
//
// A Buffer is produced once per analysis call, never mutated afterwards and
// dropped when the call returns.
package pixel

// Channels is the number of interleaved samples per pixel (R, G, B, A).
const Channels = 4

// Buffer is a row-major, non-premultiplied RGBA raster.
type Buffer struct {
	Width  int
	Height int

	// Pix holds Width*Height*4 samples.
	Pix []uint8

	// SourceWidth and SourceHeight are the decoded dimensions before the
	// dimension cap was applied.
	SourceWidth  int
	SourceHeight int
}

// Offset returns the index of the R sample of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// RGB returns the colour samples of pixel (x, y).
func (b *Buffer) RGB(x, y int) (r, g, bl uint8) {
	i := b.Offset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Pixels returns Width*Height.
func (b *Buffer) Pixels() int {
	return b.Width * b.Height
}

// Scaled reports whether the dimension cap changed the raster size.
func (b *Buffer) Scaled() bool {
	return b.Width != b.SourceWidth || b.Height != b.SourceHeight
}
