// Package signals holds the forensic detectors and the registry that runs
// them.
//
// Every detector is a Module: a pure function from one analysis Input to a
// Finding. The Registry turns findings into Signals, attaches the configured
// weight and isolates faults, so a broken detector degrades to a neutral
// score instead of failing the analysis.
package signals

import (
	"errors"
	"fmt"
)

// Category groups detectors by the family of evidence they measure.
type Category string

const (
	CategoryMetadata    Category = "metadata"
	CategoryFrequency   Category = "frequency"
	CategoryStatistical Category = "statistical"
	CategoryCompression Category = "compression"
	CategoryPerceptual  Category = "perceptual"
	CategoryGenerative  Category = "generative"
)

// Signal is one detector's scored observation.
type Signal struct {
	ID             string   `json:"id"`
	NameKey        string   `json:"nameKey"`
	Category       Category `json:"category"`
	Score          float64  `json:"score"`
	Weight         float64  `json:"weight"`
	Description    string   `json:"description"`
	DescriptionKey string   `json:"descriptionKey"`
	Icon           string   `json:"icon"`
	Details        string   `json:"details,omitempty"`
}

// Descriptor is the static identity of a detector.
type Descriptor struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
}

// NameKey is the localization key of the detector's display name.
func (d Descriptor) NameKey() string {
	return "signals." + d.ID + ".name"
}

// DescriptionKey is the localization key of the detector's description.
func (d Descriptor) DescriptionKey() string {
	return "signals." + d.ID + ".description"
}

// Finding is what a detector reports: a score in [0,100], where higher means
// more likely generated, and an optional explanation.
type Finding struct {
	Score   float64
	Details string
}

// ErrModuleFault marks a detector that errored, panicked or produced a
// non-finite score.
var ErrModuleFault = errors.New("module fault")

// FaultError records why one detector was replaced by a neutral signal.
type FaultError struct {
	Module string
	Reason string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("module %s failed: %s", e.Module, e.Reason)
}

// Is reports whether target is ErrModuleFault.
func (e *FaultError) Is(target error) bool {
	return target == ErrModuleFault
}
