package metadata

import (
	"bytes"
	"encoding/binary"
	"strconv"
)

// stdLuminance is the Annex K luminance quantisation table.
var stdLuminance = [64]int{
	16, 11, 10, 16, 24, 40, 51, 61,
	12, 12, 14, 19, 26, 58, 60, 55,
	14, 13, 16, 24, 40, 57, 69, 56,
	14, 17, 22, 29, 51, 87, 80, 62,
	18, 22, 37, 56, 68, 109, 103, 77,
	24, 35, 55, 64, 81, 104, 113, 92,
	49, 64, 78, 87, 103, 121, 120, 101,
	72, 92, 95, 98, 112, 100, 103, 99,
}

const (
	markerSOS   = 0xDA
	markerDQT   = 0xDB
	markerCOM   = 0xFE
	markerAPP11 = 0xEB
)

// readJPEG walks the marker segments up to the first scan, recording the
// estimated quality of luminance table 0, comments and C2PA JUMBF boxes.
func readJPEG(data []byte, meta *FileMetadata) {
	off := 2
	for off+4 <= len(data) {
		if data[off] != 0xFF {
			return
		}
		marker := data[off+1]
		if marker == 0xFF {
			off++
			continue
		}
		if marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD7) {
			off += 2
			continue
		}
		if marker == markerSOS || marker == 0xD9 {
			return
		}

		length := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		if length < 2 || off+2+length > len(data) {
			return
		}
		segment := data[off+4 : off+2+length]

		switch marker {
		case markerDQT:
			if q, ok := estimateQuality(segment); ok {
				meta.set(TagJPEGQuality, strconv.Itoa(q))
			}
		case markerCOM:
			meta.set("Comment", string(segment))
		case markerAPP11:
			if bytes.Contains(segment, []byte("c2pa")) {
				meta.set(TagC2PA, "present")
			}
		}

		off += 2 + length
	}
}

// estimateQuality inverts the IJG scaling of table 0 in a DQT segment.
// Table order does not matter because only the element sum is compared.
func estimateQuality(segment []byte) (int, bool) {
	for len(segment) > 0 {
		precision := segment[0] >> 4
		id := segment[0] & 0x0F
		size := 64
		if precision == 1 {
			size = 128
		}
		if len(segment) < 1+size {
			return 0, false
		}
		table := segment[1 : 1+size]
		segment = segment[1+size:]
		if id != 0 {
			continue
		}

		sum := 0
		for i := 0; i < 64; i++ {
			if precision == 1 {
				sum += int(binary.BigEndian.Uint16(table[2*i:]))
			} else {
				sum += int(table[i])
			}
		}
		std := 0
		for _, v := range stdLuminance {
			std += v
		}

		scale := float64(sum) * 100 / float64(std)
		var q float64
		if scale <= 100 {
			q = (200 - scale) / 2
		} else {
			q = 5000 / scale
		}
		qi := int(q + 0.5)
		if qi < 1 {
			qi = 1
		}
		if qi > 100 {
			qi = 100
		}
		return qi, true
	}
	return 0, false
}
