package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/humanmark/forensics/internal/pixel"
	"github.com/humanmark/forensics/internal/signals"
	"github.com/humanmark/forensics/pkg/logger"
	"golang.org/x/image/draw"
)

// DefaultVideoMaxFrames is the number of frames sampled from a video.
const DefaultVideoMaxFrames = 8

// FrameExtractor samples up to limit evenly spaced frames from a video and
// returns each one as an encoded still image. format is a
// metadata.DetectFormat result.
type FrameExtractor interface {
	Frames(ctx context.Context, data []byte, format string, limit int) ([][]byte, error)
}

// FrameExtractorFunc adapts a function to FrameExtractor.
type FrameExtractorFunc func(ctx context.Context, data []byte, format string, limit int) ([][]byte, error)

// Frames calls f.
func (f FrameExtractorFunc) Frames(ctx context.Context, data []byte, format string, limit int) ([][]byte, error) {
	return f(ctx, data, format, limit)
}

// SampleIndices picks k of n items spaced evenly, each at the middle of its
// slot: floor((i+0.5)·n/k).
func SampleIndices(n, k int) []int {
	if n <= 0 || k <= 0 {
		return nil
	}
	k = min(k, n)
	out := make([]int, k)
	for i := range out {
		out[i] = int((float64(i) + 0.5) * float64(n) / float64(k))
	}
	return out
}

// GIFFrames extracts composited frames from animated GIFs in pure Go.
// Frames are decoded one at a time; a damaged frame ends extraction and
// the frames before it are kept.
type GIFFrames struct {
	// MaxPixels bounds the logical screen. Zero disables it.
	MaxPixels int64
	Logger    *logger.Logger
}

// Frames replays frames onto a canvas, honouring disposal, and returns the
// sampled frames as PNG.
func (g GIFFrames) Frames(_ context.Context, data []byte, _ string, limit int) ([][]byte, error) {
	stream, err := splitGIF(data)
	if err != nil {
		return nil, &pixel.DecodeError{Format: "gif", Err: err}
	}
	if len(stream.frames) == 0 {
		return nil, &pixel.DecodeError{Format: "gif", Err: errors.New("gif has no frames")}
	}
	bounds := image.Rect(0, 0, stream.width, stream.height)
	if bounds.Empty() {
		return nil, &pixel.DecodeError{Format: "gif", Err: errors.New("empty logical screen")}
	}
	if g.MaxPixels > 0 && int64(stream.width)*int64(stream.height) > g.MaxPixels {
		return nil, &pixel.DecodeError{Format: "gif", Err: fmt.Errorf("logical screen %dx%d exceeds %d pixels", stream.width, stream.height, g.MaxPixels)}
	}
	log := g.Logger
	if log == nil {
		log = logger.NopLogger()
	}

	wanted := make(map[int]bool)
	last := 0
	for _, i := range SampleIndices(len(stream.frames), limit) {
		wanted[i] = true
		last = max(last, i)
	}

	canvas := image.NewRGBA(bounds)
	var out [][]byte
	for i := 0; i <= last; i++ {
		frame, err := gif.Decode(bytes.NewReader(stream.single(i)))
		if err != nil {
			if len(out) == 0 {
				return nil, &pixel.DecodeError{Format: "gif", Err: fmt.Errorf("frame %d: %w", i, err)}
			}
			log.Warn("gif frame undecodable, keeping earlier frames", "frame", i, "kept", len(out), "error", err)
			break
		}

		disposal := stream.frames[i].disposal
		var previous *image.RGBA
		if disposal == gif.DisposalPrevious {
			previous = image.NewRGBA(bounds)
			draw.Draw(previous, bounds, canvas, bounds.Min, draw.Src)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		if wanted[i] {
			var buf bytes.Buffer
			if err := png.Encode(&buf, canvas); err != nil {
				return nil, fmt.Errorf("encode frame %d: %w", i, err)
			}
			out = append(out, buf.Bytes())
		}

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return out, nil
}

// gifStream is a GIF split into standalone single-frame pieces.
type gifStream struct {
	width, height int
	// head holds the header, logical screen descriptor and global colour table.
	head   []byte
	frames []gifFrame
}

type gifFrame struct {
	// body holds the frame's graphic control extension, if any, and its
	// image descriptor, local colour table and image data.
	body     []byte
	disposal byte
}

// single returns frame i as a complete one-frame GIF.
func (s *gifStream) single(i int) []byte {
	out := make([]byte, 0, len(s.head)+len(s.frames[i].body)+1)
	out = append(out, s.head...)
	out = append(out, s.frames[i].body...)
	return append(out, 0x3B)
}

// splitGIF walks the block structure without decoding any image data. A
// frame cut short by truncation is kept so that decoding it reports the
// damage.
func splitGIF(data []byte) (*gifStream, error) {
	if len(data) < 13 || !(bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))) {
		return nil, errors.New("not a gif")
	}
	s := &gifStream{
		width:  int(binary.LittleEndian.Uint16(data[6:8])),
		height: int(binary.LittleEndian.Uint16(data[8:10])),
	}
	pos := 13
	if flags := data[10]; flags&0x80 != 0 {
		pos += 3 << ((flags & 0x07) + 1)
	}
	if pos > len(data) {
		return nil, errors.New("truncated global colour table")
	}
	s.head = data[:pos]

	var gce []byte
	for pos < len(data) {
		switch data[pos] {
		case 0x3B:
			return s, nil
		case 0x21:
			if pos+1 >= len(data) {
				return s, nil
			}
			end := skipSubBlocks(data, pos+2)
			if data[pos+1] == 0xF9 {
				gce = data[pos:end]
			}
			pos = end
		case 0x2C:
			start := pos
			end := len(data)
			if pos+10 <= len(data) {
				flags := data[pos+9]
				pos += 10
				if flags&0x80 != 0 {
					pos += 3 << ((flags & 0x07) + 1)
				}
				// skip the LZW minimum code size
				end = skipSubBlocks(data, pos+1)
			}
			f := gifFrame{body: append(append([]byte(nil), gce...), data[start:end]...)}
			if len(gce) >= 4 {
				f.disposal = (gce[3] >> 2) & 0x07
			}
			s.frames = append(s.frames, f)
			gce = nil
			pos = end
		default:
			if len(s.frames) > 0 {
				return s, nil
			}
			return nil, fmt.Errorf("unexpected block 0x%02x at offset %d", data[pos], pos)
		}
	}
	return s, nil
}

// skipSubBlocks returns the offset just past the sub-block terminator that
// follows pos, or len(data) when the data ends first.
func skipSubBlocks(data []byte, pos int) int {
	for pos < len(data) {
		n := int(data[pos])
		pos++
		if n == 0 {
			return pos
		}
		pos += n
	}
	return len(data)
}

// FFmpegFrames samples frames from containers by shelling out to ffprobe
// and ffmpeg. Frames that fail to extract are skipped.
type FFmpegFrames struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *logger.Logger
}

// Frames writes data to a temporary file, reads its duration with ffprobe and grabs one
// PNG at t = d·(i+0.5)/n for each sample.
func (f *FFmpegFrames) Frames(ctx context.Context, data []byte, format string, limit int) ([][]byte, error) {
	ffmpeg, err := exec.LookPath(orDefault(f.FFmpegPath, "ffmpeg"))
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not available: %v", ErrUnsupportedContent, err)
	}
	ffprobe, err := exec.LookPath(orDefault(f.FFprobePath, "ffprobe"))
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe not available: %v", ErrUnsupportedContent, err)
	}
	log := f.Logger
	if log == nil {
		log = logger.NopLogger()
	}

	tmp, err := os.CreateTemp("", "humanmark-*."+format)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	duration, err := mediaDuration(ctx, ffprobe, tmp.Name())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &pixel.DecodeError{Format: format, Err: err}
	}

	n := limit
	if n <= 0 {
		n = DefaultVideoMaxFrames
	}
	var out [][]byte
	for i := 0; i < n; i++ {
		at := duration * (float64(i) + 0.5) / float64(n)
		cmd := exec.CommandContext(ctx, ffmpeg,
			"-v", "error",
			"-ss", strconv.FormatFloat(at, 'f', 3, 64),
			"-i", tmp.Name(),
			"-frames:v", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
		var stdout, stderr bytes.Buffer
		cmd.Stdout, cmd.Stderr = &stdout, &stderr
		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("frame extraction failed", "frame", i, "at", at, "error", err, "stderr", strings.TrimSpace(stderr.String()))
			continue
		}
		if stdout.Len() == 0 {
			log.Warn("frame extraction produced no output", "frame", i, "at", at)
			continue
		}
		out = append(out, stdout.Bytes())
	}
	return out, nil
}

func mediaDuration(ctx context.Context, ffprobe, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return 0, fmt.Errorf("ffprobe: %w: %s", err, msg)
		}
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || d <= 0 || math.IsInf(d, 0) {
		return 0, errors.New("ffprobe reported no duration")
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// FrameRouter sends GIFs to the pure-Go extractor and every other container
// to the subprocess extractor.
type FrameRouter struct {
	GIF       FrameExtractor
	Container FrameExtractor
}

// Frames dispatches on format.
func (r *FrameRouter) Frames(ctx context.Context, data []byte, format string, limit int) ([][]byte, error) {
	if format == "gif" && r.GIF != nil {
		return r.GIF.Frames(ctx, data, format, limit)
	}
	if r.Container == nil {
		return nil, fmt.Errorf("%w: no frame extractor for %s", ErrUnsupportedContent, format)
	}
	return r.Container.Frames(ctx, data, format, limit)
}

// MergeFrameSignals folds per-frame signal lists into one: the mean score
// per module id in first-seen order, keeping the first declared weight.
func MergeFrameSignals(frames [][]signals.Signal) []signals.Signal {
	type acc struct {
		sig      signals.Signal
		sum      float64
		min, max float64
		n        int
	}
	var order []string
	byID := make(map[string]*acc)

	for _, frame := range frames {
		for _, s := range frame {
			a, ok := byID[s.ID]
			if !ok {
				a = &acc{sig: s, min: s.Score, max: s.Score}
				byID[s.ID] = a
				order = append(order, s.ID)
			}
			a.sum += s.Score
			a.min = min(a.min, s.Score)
			a.max = max(a.max, s.Score)
			a.n++
		}
	}

	out := make([]signals.Signal, 0, len(order))
	for _, id := range order {
		a := byID[id]
		s := a.sig
		s.Score = roundTenth(a.sum / float64(a.n))
		s.Details = fmt.Sprintf("mean of %d frames (min %.1f, max %.1f)", a.n, a.min, a.max)
		out = append(out, s)
	}
	return out
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
