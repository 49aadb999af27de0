package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/humanmark/forensics/internal/metadata"
	"github.com/humanmark/forensics/internal/pixel"
	"github.com/humanmark/forensics/internal/signals"
	"github.com/humanmark/forensics/pkg/logger"
)

// DefaultMaxVideoBytes bounds video uploads.
const DefaultMaxVideoBytes = 100 * 1024 * 1024

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	MaxDimension   int
	MaxBytes       int64
	MaxPixels      int64
	MaxVideoBytes  int64
	VideoMaxFrames int

	// Workers bounds parallel module evaluation within one analysis.
	Workers int

	// Weights override entries of the default weight table.
	Weights signals.Weights

	Params signals.Params

	// Frames replaces the default GIF + ffmpeg frame extraction.
	Frames FrameExtractor

	FFmpegPath  string
	FFprobePath string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MaxDimension:   pixel.DefaultMaxDimension,
		MaxBytes:       pixel.DefaultMaxBytes,
		MaxPixels:      pixel.DefaultMaxPixels,
		MaxVideoBytes:  DefaultMaxVideoBytes,
		VideoMaxFrames: DefaultVideoMaxFrames,
		Params:         signals.DefaultParams(),
	}
}

// Engine runs the full forensic pipeline. It holds no per-call state and is
// safe for concurrent use.
type Engine struct {
	loader      *pixel.Loader
	videoLoader *pixel.Loader
	extractor   *metadata.Extractor
	registry    *signals.Registry
	frames      FrameExtractor
	maxFrames   int
	params      signals.Params
	logger      *logger.Logger
}

// NewEngine creates an Engine. It fails only when opts.Weights is invalid.
func NewEngine(opts Options, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NopLogger()
	}
	def := DefaultOptions()
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = def.MaxDimension
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	if opts.MaxVideoBytes <= 0 {
		opts.MaxVideoBytes = def.MaxVideoBytes
	}
	if opts.VideoMaxFrames <= 0 {
		opts.VideoMaxFrames = def.VideoMaxFrames
	}
	if opts.Frames == nil {
		opts.Frames = &FrameRouter{
			GIF: &GIFFrames{MaxPixels: opts.MaxPixels, Logger: log},
			Container: &FFmpegFrames{
				FFmpegPath:  opts.FFmpegPath,
				FFprobePath: opts.FFprobePath,
				Logger:      log,
			},
		}
	}

	var regOpts []signals.Option
	if opts.Workers > 0 {
		regOpts = append(regOpts, signals.WithWorkers(opts.Workers))
	}
	registry := signals.NewRegistry(log, regOpts...)
	if len(opts.Weights) > 0 {
		if err := registry.SetWeights(opts.Weights); err != nil {
			return nil, fmt.Errorf("engine weights: %w", err)
		}
	}

	loader := pixel.NewLoader(opts.MaxDimension, opts.MaxBytes)
	loader.MaxPixels = opts.MaxPixels
	videoLoader := pixel.NewLoader(opts.MaxDimension, opts.MaxVideoBytes)
	videoLoader.MaxPixels = opts.MaxPixels

	return &Engine{
		loader:      loader,
		videoLoader: videoLoader,
		extractor:   metadata.NewExtractor(log),
		registry:    registry,
		frames:      opts.Frames,
		maxFrames:   opts.VideoMaxFrames,
		params:      opts.Params,
		logger:      log,
	}, nil
}

// Analyze routes input to the image or video path.
func (e *Engine) Analyze(ctx context.Context, input DetectionInput) (*AnalysisResult, error) {
	ct := DetectContentType(input)

	e.logger.Debug("starting detection",
		"content_type", ct,
		"has_url", input.URL != "",
		"data_length", len(input.Data),
	)

	switch ct {
	case ContentTypeImage:
		return e.AnalyzeImage(input.Data, input.Filename, input.MIME)
	case ContentTypeVideo:
		return e.AnalyzeVideo(ctx, input.Data, input.Filename, input.MIME)
	default:
		return nil, fmt.Errorf("%w: cannot determine image or video type", ErrUnsupportedContent)
	}
}

// AnalyzeImage decodes one still image and runs every signal module on it.
func (e *Engine) AnalyzeImage(data []byte, fileName, mime string) (*AnalysisResult, error) {
	start := time.Now()

	buf, err := e.loader.Load(data, mime)
	if err != nil {
		return nil, fmt.Errorf("analyze image: %w", err)
	}
	meta := e.extractor.Extract(data, fileName, mime)

	sigs := e.registry.RunAll(signals.NewInput(buf, meta, e.params))
	result := newResult(sigs, meta)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	e.logComplete(result, "image")
	return result, nil
}

// AnalyzeVideo samples frames, analyzes each one with the video's metadata
// and merges the per-frame signals. Frames that fail to decode are skipped.
func (e *Engine) AnalyzeVideo(ctx context.Context, data []byte, fileName, mime string) (*AnalysisResult, error) {
	start := time.Now()

	if err := e.videoLoader.CheckSize(int64(len(data))); err != nil {
		return nil, fmt.Errorf("analyze video: %w", err)
	}
	format := metadata.DetectFormat(data)
	meta := e.extractor.ExtractVideo(data, fileName, mime)

	frames, err := e.frames.Frames(ctx, data, format, e.maxFrames)
	if err != nil {
		if errors.Is(err, pixel.ErrDecode) {
			err = &AllFramesFailedError{Err: err}
		}
		return nil, fmt.Errorf("analyze video: %w", err)
	}

	var (
		perFrame [][]signals.Signal
		lastErr  error
	)
	for i, frame := range frames {
		buf, err := e.videoLoader.Load(frame, "image/png")
		if err != nil {
			e.logger.Warn("frame skipped", "file", fileName, "frame", i, "error", err)
			lastErr = err
			continue
		}
		perFrame = append(perFrame, e.registry.RunAll(signals.NewInput(buf, meta, e.params)))
	}
	if len(perFrame) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no frames extracted")
		}
		return nil, fmt.Errorf("analyze video: %w", &AllFramesFailedError{Frames: len(frames), Err: lastErr})
	}

	result := newResult(MergeFrameSignals(perFrame), meta)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	e.logComplete(result, "video", "frames", len(perFrame))
	return result, nil
}

func (e *Engine) logComplete(r *AnalysisResult, kind string, extra ...any) {
	args := append([]any{
		"kind", kind,
		"verdict", r.Verdict,
		"confidence", r.Confidence,
		"ai_score", r.AIScore,
		"signals", len(r.Signals),
		"processing_time_ms", r.ProcessingTimeMs,
	}, extra...)
	e.logger.Debug("detection complete", args...)
}

// SetWeights swaps the weight table for subsequent analyses.
func (e *Engine) SetWeights(w signals.Weights) error {
	return e.registry.SetWeights(w)
}

// CatalogueEntry describes one registered signal module.
type CatalogueEntry struct {
	ID          string           `json:"id"`
	NameKey     string           `json:"nameKey"`
	Category    signals.Category `json:"category"`
	Icon        string           `json:"icon"`
	Description string           `json:"description"`
	Weight      float64          `json:"weight"`
}

// Catalogue lists the registered modules in evaluation order with their
// current weights.
func (e *Engine) Catalogue() []CatalogueEntry {
	weights := e.registry.Weights()
	descs := e.registry.Descriptors()
	out := make([]CatalogueEntry, 0, len(descs))
	for _, d := range descs {
		out = append(out, CatalogueEntry{
			ID:          d.ID,
			NameKey:     d.NameKey(),
			Category:    d.Category,
			Icon:        d.Icon,
			Description: d.Description,
			Weight:      weights.For(d.ID),
		})
	}
	return out
}
