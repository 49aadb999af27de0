package service

import (
	"math"

	"github.com/humanmark/forensics/internal/metadata"
	"github.com/humanmark/forensics/internal/signals"
)

// Verdict is the final classification of an analysis.
type Verdict string

const (
	VerdictAI        Verdict = "ai"
	VerdictReal      Verdict = "real"
	VerdictUncertain Verdict = "uncertain"
)

// Verdict thresholds on the 0-100 AI score.
const (
	AIThreshold   = 70
	RealThreshold = 30

	// confidenceSlope stretches the 30 points between a threshold and the
	// end of the scale over the 50 points between 50 and 100 confidence.
	confidenceSlope = 1.67
)

// AnalysisResult is the terminal artifact of one analysis.
type AnalysisResult struct {
	Verdict          Verdict               `json:"verdict"`
	Confidence       int                   `json:"confidence"`
	AIScore          int                   `json:"aiScore"`
	Signals          []signals.Signal      `json:"signals"`
	Metadata         metadata.FileMetadata `json:"metadata"`
	ProcessingTimeMs int64                 `json:"processingTimeMs"`
}

// AggregateSignals returns the weight-normalised mean score, rounded to an
// integer. An empty sequence, or one without positive weight, yields 50.
func AggregateSignals(sigs []signals.Signal) int {
	var sum, weights float64
	for _, s := range sigs {
		if s.Weight <= 0 {
			continue
		}
		sum += s.Score * s.Weight
		weights += s.Weight
	}
	if weights == 0 {
		return signals.NeutralScore
	}
	return clampScore(int(math.Round(sum / weights)))
}

// Classify maps an AI score onto a verdict and its confidence.
func Classify(score int) (Verdict, int) {
	s := float64(score)
	switch {
	case score >= AIThreshold:
		return VerdictAI, min(100, int(math.Round(50+(s-AIThreshold)*confidenceSlope)))
	case score <= RealThreshold:
		return VerdictReal, min(100, int(math.Round(50+(RealThreshold-s)*confidenceSlope)))
	default:
		return VerdictUncertain, int(math.Round(100 - math.Abs(s-50)*2))
	}
}

// newResult aggregates sigs into a result.
func newResult(sigs []signals.Signal, meta metadata.FileMetadata) *AnalysisResult {
	score := AggregateSignals(sigs)
	verdict, confidence := Classify(score)
	return &AnalysisResult{
		Verdict:    verdict,
		Confidence: confidence,
		AIScore:    score,
		Signals:    sigs,
		Metadata:   meta,
	}
}

func clampScore(v int) int {
	return max(0, min(100, v))
}
