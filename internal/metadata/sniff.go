package metadata

import (
	"bytes"
	"strings"
)

// DetectFormat identifies a container from magic bytes. It returns one of
// jpeg, png, gif, webp, bmp, tiff, avif, heic, mp4, mov, webm, mkv, avi,
// flv, ts or unknown.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return "unknown"
	}

	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg"
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "png"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return "bmp"
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return "tiff"
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		if bytes.Contains(data[:min(100, len(data))], []byte("webm")) {
			return "webm"
		}
		return "mkv"
	case bytes.HasPrefix(data, []byte("FLV")):
		return "flv"
	}

	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) {
		switch string(data[8:12]) {
		case "WEBP":
			return "webp"
		case "AVI ":
			return "avi"
		}
	}

	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		switch string(data[8:12]) {
		case "avif", "avis":
			return "avif"
		case "heic", "heix", "hevc", "mif1", "msf1":
			return "heic"
		case "qt  ":
			return "mov"
		}
		return "mp4"
	}

	if data[0] == 0x47 && len(data) > 376 && data[188] == 0x47 && data[376] == 0x47 {
		return "ts"
	}

	return "unknown"
}

var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"avif": "image/avif",
	"heic": "image/heic",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
	"flv":  "video/x-flv",
	"ts":   "video/mp2t",
}

// MIMEFor returns the MIME type of a DetectFormat result, or
// application/octet-stream.
func MIMEFor(format string) string {
	if m, ok := formatMIME[format]; ok {
		return m
	}
	return "application/octet-stream"
}

// IsVideoFormat reports whether format names a video container.
func IsVideoFormat(format string) bool {
	return strings.HasPrefix(MIMEFor(format), "video/")
}
