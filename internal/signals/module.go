package signals

import (
	"github.com/humanmark/forensics/internal/imgstat"
)

// Module is a single detector.
type Module interface {
	Descriptor() Descriptor
	Evaluate(in *Input) (Finding, error)
}

// New adapts a plain function into a Module.
func New(desc Descriptor, fn func(in *Input) (Finding, error)) Module {
	return pixelModule{desc: desc, eval: fn}
}

// metadataModule reads only file metadata; it cannot fail.
type metadataModule struct {
	desc Descriptor
	eval func(in *Input) Finding
}

func (m metadataModule) Descriptor() Descriptor { return m.desc }

func (m metadataModule) Evaluate(in *Input) (Finding, error) {
	return m.eval(in), nil
}

// pixelModule works on the decoded raster and its derived planes.
type pixelModule struct {
	desc Descriptor
	eval func(in *Input) (Finding, error)
}

func (m pixelModule) Descriptor() Descriptor { return m.desc }

func (m pixelModule) Evaluate(in *Input) (Finding, error) {
	return m.eval(in)
}

// spectralModule works on the shared power spectrum and is neutral when the
// image is too small to transform.
type spectralModule struct {
	desc Descriptor
	eval func(s *imgstat.Spectrum, in *Input) (Finding, error)
}

func (m spectralModule) Descriptor() Descriptor { return m.desc }

func (m spectralModule) Evaluate(in *Input) (Finding, error) {
	s := in.Spectrum()
	if s == nil {
		return neutral("image too small for a %d px spectral window", in.Params.SpectralWindow), nil
	}
	total := 0.0
	for _, p := range s.Power {
		total += p
	}
	if total == 0 {
		return neutral("no spectral energy"), nil
	}
	return m.eval(s, in)
}

// DefaultModules returns the full detector set in evaluation order.
func DefaultModules() []Module {
	return []Module{
		metadataModule{descMetadataSignature, evalMetadataSignature},
		metadataModule{descEXIFPresence, evalEXIFPresence},
		metadataModule{descProvenanceManifest, evalProvenanceManifest},
		metadataModule{descDimensionSignature, evalDimensionSignature},
		metadataModule{descFilenamePattern, evalFilenamePattern},

		spectralModule{descFFTSpectrum, evalFFTSpectrum},
		spectralModule{descSpectralPeriodicity, evalSpectralPeriodicity},
		pixelModule{descRadonProjection, evalRadonProjection},
		pixelModule{descZernikeMoments, evalZernikeMoments},
		pixelModule{descDCTBenford, evalDCTBenford},

		pixelModule{descBlockNoise, evalBlockNoise},
		pixelModule{descBRISQUE, evalBRISQUE},
		metadataModule{descThumbnailConsistency, evalThumbnailConsistency},
		pixelModule{descHistogramShape, evalHistogramShape},
		pixelModule{descColorSaturation, evalColorSaturation},
		pixelModule{descTextureLBP, evalTextureLBP},
		pixelModule{descSensorPattern, evalSensorPattern},

		pixelModule{descBlockingArtifacts, evalBlockingArtifacts},
		pixelModule{descResamplingTraces, evalResamplingTraces},
		pixelModule{descDemosaicTraces, evalDemosaicTraces},
		pixelModule{descNeuralCompression, evalNeuralCompression},
		pixelModule{descEdgeCoherence, evalEdgeCoherence},
		pixelModule{descMirrorSymmetry, evalMirrorSymmetry},

		pixelModule{descPerceptualHash, evalPerceptualHash},
		pixelModule{descImagePhylogeny, evalImagePhylogeny},
		pixelModule{descKeypointForensics, evalKeypointForensics},
		pixelModule{descIlluminantMap, evalIlluminantMap},
		pixelModule{descColorTemperature, evalColorTemperature},

		pixelModule{descStyleConsistency, evalStyleConsistency},
		pixelModule{descAttentionGrid, evalAttentionGrid},
		pixelModule{descLocalPatch, evalLocalPatch},
	}
}
