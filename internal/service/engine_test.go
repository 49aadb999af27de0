package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmark/forensics/internal/metadata"
	"github.com/humanmark/forensics/internal/pixel"
	"github.com/humanmark/forensics/internal/signals"
	"github.com/humanmark/forensics/internal/testfixture"
	"github.com/humanmark/forensics/pkg/logger"
)

func newTestEngine(t testing.TB, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(opts, logger.NopLogger())
	require.NoError(t, err)
	return e
}

func fileMeta(name string) metadata.FileMetadata {
	return metadata.FileMetadata{FileName: name}
}

func signalByID(t *testing.T, sigs []signals.Signal, id string) signals.Signal {
	t.Helper()
	for _, s := range sigs {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("signal %s missing", id)
	return signals.Signal{}
}

func TestAnalyzeImage(t *testing.T) {
	e := newTestEngine(t, Options{})

	t.Run("generator software tag", func(t *testing.T) {
		data := testfixture.WithPNGChunks(
			testfixture.PNG(testfixture.Photo(128, 96, 1)),
			testfixture.TextChunk("Software", "Midjourney"),
		)

		r, err := e.AnalyzeImage(data, "upload.png", "image/png")
		require.NoError(t, err)

		assert.GreaterOrEqual(t, signalByID(t, r.Signals, "metadata_signature").Score, 85.0)
		assert.Equal(t, "image/png", r.Metadata.FileType)
		assert.Equal(t, 128, r.Metadata.Width)
		assert.Len(t, r.Signals, len(signals.ModuleIDs()))
	})

	t.Run("camera maker", func(t *testing.T) {
		data := testfixture.WithEXIF(
			testfixture.JPEG(testfixture.Photo(128, 96, 2), 90),
			testfixture.EXIFEntry{Tag: testfixture.TagMake, Value: "Canon"},
			testfixture.EXIFEntry{Tag: testfixture.TagModel, Value: "EOS R5"},
		)

		r, err := e.AnalyzeImage(data, "IMG_0001.JPG", "image/jpeg")
		require.NoError(t, err)

		assert.LessOrEqual(t, signalByID(t, r.Signals, "metadata_signature").Score, 15.0)
	})

	t.Run("result is consistent", func(t *testing.T) {
		r, err := e.AnalyzeImage(testfixture.PNG(testfixture.Noise(64, 64, 3)), "n.png", "image/png")
		require.NoError(t, err)

		assert.Equal(t, AggregateSignals(r.Signals), r.AIScore)
		v, c := Classify(r.AIScore)
		assert.Equal(t, v, r.Verdict)
		assert.Equal(t, c, r.Confidence)
		assert.GreaterOrEqual(t, r.ProcessingTimeMs, int64(0))
		for _, s := range r.Signals {
			assert.Greater(t, s.Weight, 0.0, s.ID)
		}
	})
}

func TestAnalyzeImageDeterministic(t *testing.T) {
	e := newTestEngine(t, Options{Workers: 4})
	data := testfixture.JPEG(testfixture.Photo(160, 120, 4), 85)

	first, err := e.AnalyzeImage(data, "a.jpg", "image/jpeg")
	require.NoError(t, err)
	second, err := e.AnalyzeImage(data, "a.jpg", "image/jpeg")
	require.NoError(t, err)

	first.ProcessingTimeMs, second.ProcessingTimeMs = 0, 0
	assert.Equal(t, first, second)
}

func TestAnalyzeImageErrors(t *testing.T) {
	t.Run("oversize", func(t *testing.T) {
		e := newTestEngine(t, Options{MaxBytes: 64})
		_, err := e.AnalyzeImage(testfixture.PNG(testfixture.Noise(32, 32, 5)), "big.png", "image/png")
		require.Error(t, err)
		assert.ErrorIs(t, err, pixel.ErrOversize)
	})

	t.Run("corrupt", func(t *testing.T) {
		e := newTestEngine(t, Options{})
		_, err := e.AnalyzeImage([]byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}, "bad.jpg", "image/jpeg")
		require.Error(t, err)
		assert.ErrorIs(t, err, pixel.ErrDecode)

		var de *pixel.DecodeError
		assert.True(t, errors.As(err, &de))
	})
}

func TestAnalyzeRouting(t *testing.T) {
	var calls int
	e := newTestEngine(t, Options{
		Frames: FrameExtractorFunc(func(context.Context, []byte, string, int) ([][]byte, error) {
			calls++
			return [][]byte{testfixture.PNG(testfixture.Noise(48, 48, 6))}, nil
		}),
	})
	ctx := context.Background()

	r, err := e.Analyze(ctx, DetectionInput{Data: testfixture.PNG(testfixture.Noise(48, 48, 7)), Filename: "a.png"})
	require.NoError(t, err)
	assert.False(t, r.Metadata.IsVideo)
	assert.Zero(t, calls)

	mp4 := testfixture.MP4(testfixture.MP4Options{Width: 48, Height: 48, Timescale: 1000, Duration: 2000})
	r, err = e.Analyze(ctx, DetectionInput{Data: mp4, Filename: "clip.mp4"})
	require.NoError(t, err)
	assert.True(t, r.Metadata.IsVideo)
	assert.Equal(t, 1, calls)

	_, err = e.Analyze(ctx, DetectionInput{Data: []byte("just some text"), Filename: "notes.txt"})
	assert.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestEngineWeights(t *testing.T) {
	_, err := NewEngine(Options{Weights: signals.Weights{"no_such_module": 1}}, nil)
	assert.Error(t, err)

	e := newTestEngine(t, Options{Weights: signals.Weights{"fft_spectrum": 4}})
	cat := e.Catalogue()
	require.Len(t, cat, len(signals.ModuleIDs()))
	for _, c := range cat {
		if c.ID == "fft_spectrum" {
			assert.Equal(t, 4.0, c.Weight)
		}
	}

	require.NoError(t, e.SetWeights(signals.Weights{"fft_spectrum": 0.5}))
	r, err := e.AnalyzeImage(testfixture.PNG(testfixture.Noise(64, 64, 8)), "n.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, 0.5, signalByID(t, r.Signals, "fft_spectrum").Weight)

	assert.Error(t, e.SetWeights(signals.Weights{"fft_spectrum": -1}))
	assert.Equal(t, "signals.metadata_signature.name", cat[0].NameKey)
}

func BenchmarkAnalyzeImage(b *testing.B) {
	e := newTestEngine(b, Options{})
	data := testfixture.JPEG(testfixture.Photo(512, 384, 9), 90)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.AnalyzeImage(data, "bench.jpg", "image/jpeg"); err != nil {
			b.Fatal(err)
		}
	}
}
