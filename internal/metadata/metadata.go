// Package metadata extracts file-level facts and embedded tags from image and
// video payloads.
//
// Extraction never fails: whatever can be read is returned and the rest is
// left empty, so detectors that depend on tags degrade to a neutral score.
package metadata

import (
	"sort"
	"strings"
)

// FileMetadata is the read-only description of one analysed file.
type FileMetadata struct {
	FileName string            `json:"fileName"`
	FileSize int64             `json:"fileSize"`
	FileType string            `json:"fileType"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	IsVideo  bool              `json:"isVideo"`
	EXIF     map[string]string `json:"exif,omitempty"`
}

// Well-known tag keys set by the extractor in addition to raw EXIF names.
const (
	TagJPEGQuality       = "JPEGQuality"
	TagThumbnailPresent  = "ThumbnailPresent"
	TagCreatorTool       = "XMP:CreatorTool"
	TagDigitalSourceType = "XMP:DigitalSourceType"
	TagC2PA              = "C2PA"
	TagContainer         = "Container"
	TagEncoder           = "Encoder"
	TagCreationTime      = "CreationTime"
	TagDuration          = "Duration"
	TagHasAudio          = "HasAudio"
	TagFormat            = "Format"
)

// Tag returns the value stored under key, matching keys case-insensitively.
func (m FileMetadata) Tag(key string) (string, bool) {
	if v, ok := m.EXIF[key]; ok {
		return v, true
	}
	for k, v := range m.EXIF {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// HasTag reports whether any of keys is present with a non-empty value.
func (m FileMetadata) HasTag(keys ...string) bool {
	for _, k := range keys {
		if v, ok := m.Tag(k); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Keys returns the tag keys in sorted order.
func (m FileMetadata) Keys() []string {
	keys := make([]string, 0, len(m.EXIF))
	for k := range m.EXIF {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// set stores v under key unless the key is already populated or v is blank.
func (m *FileMetadata) set(key, v string) {
	v = strings.TrimSpace(strings.Trim(v, "\x00"))
	if key == "" || v == "" {
		return
	}
	if m.EXIF == nil {
		m.EXIF = make(map[string]string)
	}
	if _, exists := m.EXIF[key]; exists {
		return
	}
	m.EXIF[key] = v
}
