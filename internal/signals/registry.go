package signals

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/humanmark/forensics/pkg/logger"
)

// Registry runs a fixed, ordered list of detectors.
type Registry struct {
	modules []Module
	weights atomic.Pointer[Weights]
	workers int
	logger  *logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithModules replaces the default detector list.
func WithModules(mods ...Module) Option {
	return func(r *Registry) { r.modules = mods }
}

// WithWorkers bounds parallel evaluation. 1 evaluates sequentially.
func WithWorkers(n int) Option {
	return func(r *Registry) { r.workers = n }
}

// WithWeights applies overrides on top of the default weight table.
// Invalid entries are ignored; use SetWeights to get validation errors.
func WithWeights(w Weights) Option {
	return func(r *Registry) {
		merged := DefaultWeights()
		for id, v := range w {
			if v > 0 && !math.IsInf(v, 0) {
				merged[id] = v
			}
		}
		r.weights.Store(&merged)
	}
}

// NewRegistry creates a Registry over DefaultModules.
func NewRegistry(log *logger.Logger, opts ...Option) *Registry {
	if log == nil {
		log = logger.NopLogger()
	}
	r := &Registry{
		modules: DefaultModules(),
		workers: runtime.NumCPU(),
		logger:  log,
	}
	w := DefaultWeights()
	r.weights.Store(&w)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll evaluates every detector against in and returns one Signal per
// detector in registration order, whatever the scheduling.
func (r *Registry) RunAll(in *Input) []Signal {
	weights := *r.weights.Load()
	out := make([]Signal, len(r.modules))

	workers := min(r.workers, len(r.modules))
	if workers <= 1 {
		for i, m := range r.modules {
			out[i] = r.evaluate(m, in, weights)
		}
		return out
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = r.evaluate(r.modules[i], in, weights)
			}
		}()
	}
	for i := range r.modules {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}

func (r *Registry) evaluate(m Module, in *Input, weights Weights) (sig Signal) {
	desc := m.Descriptor()
	sig = Signal{
		ID:             desc.ID,
		NameKey:        desc.NameKey(),
		Category:       desc.Category,
		Score:          NeutralScore,
		Weight:         weights.For(desc.ID),
		Description:    desc.Description,
		DescriptionKey: desc.DescriptionKey(),
		Icon:           desc.Icon,
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.fault(&sig, fmt.Sprint(rec))
		}
	}()

	f, err := m.Evaluate(in)
	switch {
	case err != nil:
		r.fault(&sig, err.Error())
	case math.IsNaN(f.Score) || math.IsInf(f.Score, 0):
		r.fault(&sig, "non-finite score")
	default:
		sig.Score = roundScore(clamp(f.Score, 0, 100))
		sig.Details = f.Details
	}
	return sig
}

func (r *Registry) fault(sig *Signal, reason string) {
	fe := &FaultError{Module: sig.ID, Reason: reason}
	sig.Score = NeutralScore
	sig.Details = "module failed: " + reason
	r.logger.Warn("signal module failed", "module", sig.ID, "error", fe)
}

// SetWeights validates w and atomically installs it over the defaults.
// In-flight analyses keep the table they started with.
func (r *Registry) SetWeights(w Weights) error {
	if err := w.Validate(r.IDs()); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}
	merged := DefaultWeights().Merge(w)
	r.weights.Store(&merged)
	r.logger.Info("signal weights updated", "overrides", len(w))
	return nil
}

// Weights returns a copy of the active weight table.
func (r *Registry) Weights() Weights {
	return r.weights.Load().Clone()
}

// IDs lists the registered detector ids in order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.modules))
	for i, m := range r.modules {
		ids[i] = m.Descriptor().ID
	}
	return ids
}

// Descriptors lists the registered detectors in order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.modules))
	for i, m := range r.modules {
		out[i] = m.Descriptor()
	}
	return out
}
