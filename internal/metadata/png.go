package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// maxTextChunk bounds how much inflated text one chunk may contribute.
const maxTextChunk = 1 << 20

// readPNGText walks the chunk list and records tEXt, zTXt and iTXt entries
// under their keyword, plus tIME as PNGTime.
func readPNGText(data []byte, meta *FileMetadata) {
	if !bytes.HasPrefix(data, pngSignature) {
		return
	}

	for off := len(pngSignature); off+8 <= len(data); {
		length := int(binary.BigEndian.Uint32(data[off : off+4]))
		chunkType := string(data[off+4 : off+8])
		start := off + 8
		end := start + length
		if length < 0 || end > len(data) {
			return
		}
		chunk := data[start:end]

		switch chunkType {
		case "tEXt":
			if key, value, ok := splitKeyword(chunk); ok {
				meta.set(key, latin1(value))
			}
		case "zTXt":
			if key, rest, ok := splitKeyword(chunk); ok && len(rest) > 1 {
				if text, err := inflate(rest[1:]); err == nil {
					meta.set(key, latin1(text))
				}
			}
		case "iTXt":
			if key, text, ok := parseITXt(chunk); ok {
				meta.set(key, text)
			}
		case "tIME":
			if len(chunk) == 7 {
				meta.set("PNGTime", fmt.Sprintf("%04d:%02d:%02d %02d:%02d:%02d",
					binary.BigEndian.Uint16(chunk[0:2]), chunk[2], chunk[3], chunk[4], chunk[5], chunk[6]))
			}
		case "IEND":
			return
		}

		off = end + 4
	}
}

func splitKeyword(chunk []byte) (string, []byte, bool) {
	idx := bytes.IndexByte(chunk, 0)
	if idx <= 0 {
		return "", nil, false
	}
	return string(chunk[:idx]), chunk[idx+1:], true
}

// parseITXt decodes keyword\0 flag method lang\0 translated\0 text.
func parseITXt(chunk []byte) (string, string, bool) {
	key, rest, ok := splitKeyword(chunk)
	if !ok || len(rest) < 2 {
		return "", "", false
	}
	compressed := rest[0] == 1
	rest = rest[2:]
	for i := 0; i < 2; i++ {
		idx := bytes.IndexByte(rest, 0)
		if idx < 0 {
			return "", "", false
		}
		rest = rest[idx+1:]
	}
	if compressed {
		text, err := inflate(rest)
		if err != nil {
			return "", "", false
		}
		return key, string(text), true
	}
	return key, string(rest), true
}

func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, maxTextChunk))
}

func latin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
