package metadata

import (
	"errors"
	"fmt"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// readEXIF merges the flat EXIF tag list into meta. IFD0 tags win over the
// thumbnail IFD, and IFD1 marks an embedded thumbnail.
func (e *Extractor) readEXIF(data []byte, meta *FileMetadata) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("exif parse panicked", "file", meta.FileName, "panic", fmt.Sprint(r))
		}
	}()

	raw, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if !isNoExif(err) {
			e.logger.Debug("exif search failed", "file", meta.FileName, "error", err)
		}
		return
	}

	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		e.logger.Debug("exif parse failed", "file", meta.FileName, "error", err)
		return
	}

	for _, tag := range tags {
		if strings.HasPrefix(tag.IfdPath, "IFD1") {
			meta.set(TagThumbnailPresent, "true")
			continue
		}
		value := tag.Formatted
		if s, ok := tag.Value.(string); ok {
			value = s
		}
		meta.set(tag.TagName, value)
	}
}

func isNoExif(err error) bool {
	if errors.Is(err, exif.ErrNoExif) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
