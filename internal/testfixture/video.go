package testfixture

import (
	"encoding/binary"
)

// MP4Options describes the minimal ISO BMFF file built by MP4.
type MP4Options struct {
	Brand     string
	Timescale uint32
	Duration  uint32
	Width     int
	Height    int
	Audio     bool
	Encoder   string
}

// Box frames one ISO BMFF box.
func Box(typ string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	out := binary.BigEndian.AppendUint32(make([]byte, 0, size), uint32(size))
	out = append(out, typ...)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

// MP4 builds ftyp + moov with an mvhd, a video track, an optional audio
// track and an optional ©too encoder item. There is no media data.
func MP4(o MP4Options) []byte {
	brand := o.Brand
	if brand == "" {
		brand = "isom"
	}
	ftyp := Box("ftyp", []byte(brand), []byte{0, 0, 2, 0}, []byte(brand))

	mvhd := make([]byte, 100)
	binary.BigEndian.PutUint32(mvhd[4:8], 3786912000) // 2024-01-01
	binary.BigEndian.PutUint32(mvhd[12:16], o.Timescale)
	binary.BigEndian.PutUint32(mvhd[16:20], o.Duration)

	tkhd := make([]byte, 84)
	binary.BigEndian.PutUint32(tkhd[76:80], uint32(o.Width)<<16)
	binary.BigEndian.PutUint32(tkhd[80:84], uint32(o.Height)<<16)

	moov := [][]byte{
		Box("mvhd", mvhd),
		Box("trak", Box("tkhd", tkhd), Box("mdia", Box("hdlr", hdlr("vide")))),
	}
	if o.Audio {
		moov = append(moov, Box("trak", Box("tkhd", make([]byte, 84)), Box("mdia", Box("hdlr", hdlr("soun")))))
	}
	if o.Encoder != "" {
		data := Box("data", []byte{0, 0, 0, 1}, []byte{0, 0, 0, 0}, []byte(o.Encoder))
		ilst := Box("ilst", Box("\xa9too", data))
		meta := Box("meta", []byte{0, 0, 0, 0}, Box("hdlr", hdlr("mdir")), ilst)
		moov = append(moov, Box("udta", meta))
	}

	out := append([]byte(nil), ftyp...)
	return append(out, Box("moov", moov...)...)
}

func hdlr(kind string) []byte {
	p := make([]byte, 24)
	copy(p[8:12], kind)
	return p
}
