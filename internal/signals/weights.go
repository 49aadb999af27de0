package signals

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// FallbackWeight applies to a detector missing from the weight table.
const FallbackWeight = 1.0

// Weights maps detector id to its reliability weight. Weights are reviewed
// and tuned here, never inside detector code.
type Weights map[string]float64

var defaultWeights = Weights{
	"metadata_signature":    3.0,
	"exif_presence":         1.2,
	"provenance_manifest":   2.5,
	"dimension_signature":   0.8,
	"filename_pattern":      0.6,
	"fft_spectrum":          1.2,
	"spectral_periodicity":  1.0,
	"radon_projection":      0.6,
	"zernike_moments":       0.4,
	"dct_benford":           0.8,
	"block_noise":           1.0,
	"brisque_quality":       0.8,
	"thumbnail_consistency": 0.5,
	"histogram_shape":       0.5,
	"color_saturation":      0.5,
	"texture_lbp":           0.7,
	"sensor_pattern":        0.9,
	"blocking_artifacts":    0.7,
	"resampling_traces":     0.7,
	"demosaic_traces":       0.8,
	"neural_compression":    0.9,
	"edge_coherence":        0.7,
	"mirror_symmetry":       0.4,
	"perceptual_hash":       0.5,
	"image_phylogeny":       0.6,
	"keypoint_forensics":    0.6,
	"illuminant_map":        0.5,
	"color_temperature":     0.4,
	"style_consistency":     0.6,
	"attention_grid":        0.7,
	"local_patch":           0.9,
}

// DefaultWeights returns a fresh copy of the built-in weight table.
func DefaultWeights() Weights {
	return defaultWeights.Clone()
}

// Clone returns an independent copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// For returns the weight of id, falling back to FallbackWeight.
func (w Weights) For(id string) float64 {
	if v, ok := w[id]; ok && v > 0 && !math.IsInf(v, 0) {
		return v
	}
	return FallbackWeight
}

// Merge returns a copy of w with every entry of over applied on top.
func (w Weights) Merge(over Weights) Weights {
	out := w.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Validate checks that every weight is positive and finite and, when known
// is non-empty, names a known detector. All problems are reported together.
func (w Weights) Validate(known []string) error {
	valid := make(map[string]bool, len(known))
	for _, id := range known {
		valid[id] = true
	}

	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		v := w[id]
		if len(valid) > 0 && !valid[id] {
			errs = append(errs, fmt.Errorf("unknown module %q", id))
		}
		if !(v > 0) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("weight for %q must be positive, got %v", id, v))
		}
	}
	return errors.Join(errs...)
}

// ModuleIDs lists the ids of DefaultModules in evaluation order.
func ModuleIDs() []string {
	mods := DefaultModules()
	ids := make([]string, len(mods))
	for i, m := range mods {
		ids[i] = m.Descriptor().ID
	}
	return ids
}
