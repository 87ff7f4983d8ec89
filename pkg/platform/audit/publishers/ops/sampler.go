package ops

import (
	"math/rand/v2"

	"kyc/pkg/platform/audit"
)

// Sampler decides which ops events reach the store. Rates are fixed once the
// sampler is built, so it is safe for concurrent use without locking.
type Sampler struct {
	defaultRate float64
	rates       map[string]float64
	draw        func() float64
}

// SamplerOption overrides a part of the sampler.
type SamplerOption func(*Sampler)

// WithActionRate sets the keep rate for a single event.
func WithActionRate(event audit.AuditEvent, rate float64) SamplerOption {
	return func(s *Sampler) { s.rates[string(event)] = clampRate(rate) }
}

// KeepAlways pins events to a rate of one regardless of the default.
func KeepAlways(events ...audit.AuditEvent) SamplerOption {
	return func(s *Sampler) {
		for _, e := range events {
			s.rates[string(e)] = 1
		}
	}
}

// WithDraw replaces the random source. draw must return values in [0, 1).
func WithDraw(draw func() float64) SamplerOption {
	return func(s *Sampler) {
		if draw != nil {
			s.draw = draw
		}
	}
}

// NewSampler keeps each event with probability defaultRate unless an option
// overrides it. Rates are clamped to [0, 1].
func NewSampler(defaultRate float64, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		defaultRate: clampRate(defaultRate),
		rates:       make(map[string]float64),
		draw:        rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldSample reports whether an event with the given action is recorded.
func (s *Sampler) ShouldSample(action string) bool {
	rate := s.rateFor(action)
	switch {
	case rate >= 1:
		return true
	case rate <= 0:
		return false
	}
	return s.draw() < rate
}

func (s *Sampler) rateFor(action string) float64 {
	if rate, ok := s.rates[action]; ok {
		return rate
	}
	return s.defaultRate
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
