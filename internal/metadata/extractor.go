package metadata

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/humanmark/forensics/pkg/logger"
)

// Extractor reads FileMetadata out of raw payloads.
type Extractor struct {
	logger *logger.Logger
}

// NewExtractor creates an Extractor. A nil logger discards output.
func NewExtractor(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Extractor{logger: log}
}

// Extract reads image metadata. mime may be empty, in which case the type
// is sniffed from the payload.
func (e *Extractor) Extract(data []byte, fileName, mime string) FileMetadata {
	format := DetectFormat(data)
	meta := FileMetadata{
		FileName: fileName,
		FileSize: int64(len(data)),
		FileType: fileType(mime, format),
	}
	if format != "unknown" {
		meta.set(TagFormat, format)
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		meta.Width, meta.Height = cfg.Width, cfg.Height
	}

	e.readEXIF(data, &meta)

	switch format {
	case "png":
		readPNGText(data, &meta)
	case "jpeg":
		readJPEG(data, &meta)
	}

	readXMP(data, &meta)

	e.logger.Debug("metadata extracted",
		"file", fileName,
		"format", format,
		"tags", len(meta.EXIF),
	)
	return meta
}

// ExtractVideo reads container metadata for a video payload.
func (e *Extractor) ExtractVideo(data []byte, fileName, mime string) FileMetadata {
	format := DetectFormat(data)
	meta := FileMetadata{
		FileName: fileName,
		FileSize: int64(len(data)),
		FileType: fileType(mime, format),
		IsVideo:  true,
	}

	var c containerInfo
	switch format {
	case "mp4", "mov", "heic", "avif":
		c = parseMP4(data)
	case "webm", "mkv":
		c = parseWebM(data)
	case "avi":
		c = parseAVI(data)
	case "gif":
		c = containerInfo{Format: "gif"}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			c.Width, c.Height = cfg.Width, cfg.Height
		}
	default:
		c = containerInfo{Format: format}
	}

	c.apply(&meta)
	readXMP(data, &meta)

	e.logger.Debug("video metadata extracted",
		"file", fileName,
		"container", c.Format,
		"encoder", c.Encoder,
		"duration", c.Duration,
	)
	return meta
}

func fileType(mime, format string) string {
	mime = strings.TrimSpace(mime)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if mime != "" && mime != "application/octet-stream" {
		return strings.ToLower(mime)
	}
	return MIMEFor(format)
}
