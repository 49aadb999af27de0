// Package service wires the forensic engine together.
//
// Detection flow:
//  1. Determine content type (image or video)
//  2. Decode pixels and extract metadata
//  3. Run every signal module through the registry
//  4. Aggregate the signals into a verdict: ai, real or uncertain
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/humanmark/forensics/internal/metadata"
)

// ContentType represents the type of content being analyzed.
type ContentType string

const (
	ContentTypeImage   ContentType = "image"
	ContentTypeVideo   ContentType = "video"
	ContentTypeUnknown ContentType = "unknown"
)

// DetectionInput represents input to the detection system.
type DetectionInput struct {
	// URL the content was fetched from, if any. Only used for routing.
	URL string

	// Binary data for uploaded or fetched files
	Data []byte

	// Original filename for uploaded files
	Filename string

	// MIME is the declared media type, possibly with parameters.
	MIME string

	// Detected or specified content type
	ContentType ContentType
}

// Detector is the interface for content detection. Engine is the production
// implementation; the HTTP layer depends only on this.
type Detector interface {
	Analyze(ctx context.Context, input DetectionInput) (*AnalysisResult, error)
}

// DetectContentType determines the content type of input. Magic bytes win
// over declared hints because uploads are frequently mislabelled.
func DetectContentType(input DetectionInput) ContentType {
	if input.ContentType != "" && input.ContentType != ContentTypeUnknown {
		return input.ContentType
	}
	if ct := ContentTypeFromMagicBytes(input.Data); ct != ContentTypeUnknown {
		return ct
	}
	if ct := ContentTypeFromMIME(input.MIME); ct != ContentTypeUnknown {
		return ct
	}
	if input.Filename != "" {
		if ct := ContentTypeFromFilename(input.Filename); ct != ContentTypeUnknown {
			return ct
		}
	}
	if input.URL != "" {
		return ContentTypeFromURL(input.URL)
	}
	return ContentTypeUnknown
}

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ContentTypeFromFilename determines content type from filename extension.
func ContentTypeFromFilename(filename string) ContentType {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff", ".avif":
		return ContentTypeImage
	case ".mp4", ".m4v", ".mov", ".avi", ".webm", ".mkv", ".flv", ".ts":
		return ContentTypeVideo
	default:
		return ContentTypeUnknown
	}
}

// ContentTypeFromURL determines content type from URL.
func ContentTypeFromURL(url string) ContentType {
	path := url
	if idx := strings.IndexAny(url, "?#"); idx != -1 {
		path = url[:idx]
	}

	return ContentTypeFromFilename(path)
}

// ContentTypeFromMIME determines content type from MIME type.
func ContentTypeFromMIME(mimeType string) ContentType {
	mime := strings.ToLower(mimeType)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = mime[:idx]
	}
	mime = strings.TrimSpace(mime)

	switch {
	case mime == "image/svg+xml":
		return ContentTypeUnknown
	case strings.HasPrefix(mime, "image/"):
		return ContentTypeImage
	case strings.HasPrefix(mime, "video/"):
		return ContentTypeVideo
	default:
		return ContentTypeUnknown
	}
}

// ContentTypeFromMagicBytes determines content type from file magic bytes.
// HEIC stills are reported as unknown since no decoder is registered.
func ContentTypeFromMagicBytes(data []byte) ContentType {
	switch format := metadata.DetectFormat(data); {
	case format == "unknown", format == "heic":
		return ContentTypeUnknown
	case metadata.IsVideoFormat(format):
		return ContentTypeVideo
	default:
		return ContentTypeImage
	}
}
