// Package schedule computes the learning rate used at every optimizer step of
// a fine-tuning run: a linear warmup ramp followed by a linear decay to zero.
package schedule

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidConfig = errors.New("invalid learning rate schedule config")

// Config is the step budget of one training run.
type Config struct {
	PeakLearningRate float64 `json:"peak_learning_rate" toml:"peak_learning_rate"`
	TotalSteps       int     `json:"total_steps"        toml:"total_steps"`
	WarmupSteps      int     `json:"warmup_steps"       toml:"warmup_steps"`
}

func (c Config) validate() error {
	switch {
	case c.TotalSteps <= 0:
		return fmt.Errorf("%w: total steps must be positive, got %d", ErrInvalidConfig, c.TotalSteps)
	case c.WarmupSteps < 0:
		return fmt.Errorf("%w: warmup steps must not be negative, got %d", ErrInvalidConfig, c.WarmupSteps)
	case c.WarmupSteps > c.TotalSteps:
		return fmt.Errorf("%w: warmup steps %d exceed total steps %d", ErrInvalidConfig, c.WarmupSteps, c.TotalSteps)
	case math.IsNaN(c.PeakLearningRate) || math.IsInf(c.PeakLearningRate, 0) || c.PeakLearningRate <= 0:
		return fmt.Errorf("%w: peak learning rate must be positive, got %v", ErrInvalidConfig, c.PeakLearningRate)
	}

	return nil
}

// Schedule is an immutable warmup/decay schedule. The zero value is not
// usable; build one with New or FromEpochs.
type Schedule struct {
	cfg Config
}

func New(cfg Config) (Schedule, error) {
	if err := cfg.validate(); err != nil {
		return Schedule{}, err
	}

	return Schedule{cfg: cfg}, nil
}

// FromEpochs derives the step budget from the size of the training split.
// The warmup length is truncated towards zero.
func FromEpochs(peak float64, stepsPerEpoch, epochs int, warmupFraction float64) (Schedule, error) {
	if math.IsNaN(warmupFraction) || warmupFraction < 0 || warmupFraction > 1 {
		return Schedule{}, fmt.Errorf("%w: warmup fraction must be in [0, 1], got %v", ErrInvalidConfig, warmupFraction)
	}
	total := stepsPerEpoch * epochs
	if stepsPerEpoch <= 0 || epochs <= 0 {
		total = 0
	}

	return New(Config{
		PeakLearningRate: peak,
		TotalSteps:       total,
		WarmupSteps:      int(warmupFraction * float64(total)),
	})
}

func (s Schedule) Config() Config {
	return s.cfg
}

// Rate returns the learning rate for step. Steps outside [0, TotalSteps)
// yield 0.
func (s Schedule) Rate(step int) float64 {
	peak, total, warmup := s.cfg.PeakLearningRate, s.cfg.TotalSteps, s.cfg.WarmupSteps
	if step < 0 || step >= total {
		return 0
	}
	if step < warmup {
		return peak * float64(step+1) / float64(warmup)
	}

	// step >= warmup and step < total imply total > warmup here.
	remaining := float64(total-step) / float64(total-warmup)

	return peak * math.Max(0, remaining)
}

// Multiplier is Rate scaled to [0, 1] by the peak learning rate.
func (s Schedule) Multiplier(step int) float64 {
	if s.cfg.PeakLearningRate == 0 {
		return 0
	}

	return s.Rate(step) / s.cfg.PeakLearningRate
}

// Curve returns the rate of every step of the run, in step order.
func (s Schedule) Curve() []float64 {
	curve := make([]float64, s.cfg.TotalSteps)
	for step := range curve {
		curve[step] = s.Rate(step)
	}

	return curve
}
