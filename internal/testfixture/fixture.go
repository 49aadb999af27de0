// Package testfixture builds synthetic media for tests: noise and gradient
// rasters, encoded PNG/JPEG/GIF payloads with injected metadata, and minimal
// video containers.
package testfixture

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
)

// Noise returns a w×h image of seeded uniform RGB noise.
func Noise(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

// Gradient returns a smooth diagonal colour ramp.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) * 255 / max(w+h-2, 1)),
				A: 255,
			})
		}
	}
	return img
}

// Flat returns a single-colour image.
func Flat(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// Photo approximates a camera capture: a gradient with seeded sensor noise.
func Photo(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := Gradient(w, h)
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := int(img.Pix[i+c]) + int(rng.NormFloat64()*6)
			img.Pix[i+c] = uint8(min(max(v, 0), 255))
		}
	}
	return img
}

// PNG encodes img as PNG.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG encodes img as JPEG at quality q.
func JPEG(img image.Image, q int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// GIF encodes frames as an animated GIF with the Plan9 palette.
func GIF(frames ...image.Image) []byte {
	anim := &gif.GIF{}
	for _, f := range frames {
		p := image.NewPaletted(f.Bounds(), palette.Plan9)
		for y := f.Bounds().Min.Y; y < f.Bounds().Max.Y; y++ {
			for x := f.Bounds().Min.X; x < f.Bounds().Max.X; x++ {
				p.Set(x, y, f.At(x, y))
			}
		}
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNGChunk frames one PNG chunk with length and CRC.
func PNGChunk(chunkType string, data []byte) []byte {
	chunk := make([]byte, 0, 12+len(data))
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(data)))
	chunk = append(chunk, chunkType...)
	chunk = append(chunk, data...)
	crc := crc32.ChecksumIEEE(append([]byte(chunkType), data...))
	return binary.BigEndian.AppendUint32(chunk, crc)
}

// PNGHeaderOnly returns a PNG whose IHDR declares a w×h RGBA raster but
// which carries no pixel data.
func PNGHeaderOnly(w, h int) []byte {
	ihdr := binary.BigEndian.AppendUint32(nil, uint32(w))
	ihdr = binary.BigEndian.AppendUint32(ihdr, uint32(h))
	ihdr = append(ihdr, 8, 6, 0, 0, 0)

	out := []byte("\x89PNG\r\n\x1a\n")
	out = append(out, PNGChunk("IHDR", ihdr)...)
	out = append(out, PNGChunk("IDAT", []byte{0x78, 0x9c, 0x03, 0x00, 0x00, 0x00, 0x00, 0x01})...)
	return append(out, PNGChunk("IEND", nil)...)
}

// WithPNGChunks inserts chunks right after IHDR.
func WithPNGChunks(pngData []byte, chunks ...[]byte) []byte {
	const ihdrEnd = 8 + 8 + 13 + 4
	out := append([]byte(nil), pngData[:ihdrEnd]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, pngData[ihdrEnd:]...)
}

// TextChunk builds a tEXt chunk.
func TextChunk(key, value string) []byte {
	return PNGChunk("tEXt", []byte(key+"\x00"+value))
}

// EXIFEntry is one ASCII tag written into a synthetic IFD0.
type EXIFEntry struct {
	Tag   uint16
	Value string
}

// Common IFD0 tag ids.
const (
	TagMake     uint16 = 0x010F
	TagModel    uint16 = 0x0110
	TagSoftware uint16 = 0x0131
	TagDateTime uint16 = 0x0132
)

// EXIFTIFF builds a little-endian TIFF structure with one IFD0 of ASCII tags.
func EXIFTIFF(entries ...EXIFEntry) []byte {
	var tiff bytes.Buffer
	tiff.Write([]byte{0x49, 0x49, 0x2a, 0x00})
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(len(entries)))

	dataOff := uint32(8 + 2 + 12*len(entries) + 4)
	var values bytes.Buffer
	for _, e := range entries {
		v := append([]byte(e.Value), 0)
		_ = binary.Write(&tiff, binary.LittleEndian, e.Tag)
		_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
		_ = binary.Write(&tiff, binary.LittleEndian, uint32(len(v)))
		if len(v) <= 4 {
			// values of up to four bytes live in the offset field
			inline := make([]byte, 4)
			copy(inline, v)
			tiff.Write(inline)
			continue
		}
		_ = binary.Write(&tiff, binary.LittleEndian, dataOff+uint32(values.Len()))
		values.Write(v)
		if values.Len()%2 == 1 {
			values.WriteByte(0)
		}
	}
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0))
	tiff.Write(values.Bytes())
	return tiff.Bytes()
}

// WithEXIF inserts an APP1 EXIF segment right after SOI.
func WithEXIF(jpegData []byte, entries ...EXIFEntry) []byte {
	payload := append([]byte("Exif\x00\x00"), EXIFTIFF(entries...)...)
	return WithJPEGSegment(jpegData, 0xE1, payload)
}

// WithJPEGSegment inserts an arbitrary marker segment right after SOI.
func WithJPEGSegment(jpegData []byte, marker byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(jpegData[:2])
	buf.Write([]byte{0xFF, marker})
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(payload)+2))
	buf.Write(payload)
	buf.Write(jpegData[2:])
	return buf.Bytes()
}

// XMPPacket wraps properties in a minimal XMP envelope in attribute form.
func XMPPacket(props map[string]string) []byte {
	var b bytes.Buffer
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF><rdf:Description`)
	for k, v := range props {
		b.WriteString(" " + k + `="` + v + `"`)
	}
	b.WriteString(`/></rdf:RDF></x:xmpmeta>`)
	return b.Bytes()
}
