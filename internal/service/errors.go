package service

import (
	"errors"
	"fmt"

	"github.com/humanmark/forensics/internal/pixel"
)

var (
	// ErrUnsupportedContent is returned when input cannot be routed to the
	// image or video path, or no frame extractor handles the container.
	ErrUnsupportedContent = errors.New("unsupported content")

	// ErrAllFramesFailed is returned when no sampled video frame decoded.
	ErrAllFramesFailed = errors.New("all video frames failed")
)

// AllFramesFailedError reports a video whose sampled frames all failed.
// It matches both ErrAllFramesFailed and pixel.ErrDecode.
type AllFramesFailedError struct {
	Frames int
	Err    error
}

func (e *AllFramesFailedError) Error() string {
	if e.Frames == 0 {
		if e.Err == nil {
			return "no video frame could be extracted"
		}
		return fmt.Sprintf("no video frame could be extracted: %v", e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("all %d video frames failed", e.Frames)
	}
	return fmt.Sprintf("all %d video frames failed: %v", e.Frames, e.Err)
}

func (e *AllFramesFailedError) Unwrap() error { return e.Err }

// Is matches ErrAllFramesFailed and pixel.ErrDecode.
func (e *AllFramesFailedError) Is(target error) bool {
	return target == ErrAllFramesFailed || target == pixel.ErrDecode
}
