// Package optimizer applies accumulated gradients to model parameters.
package optimizer

import (
	"errors"
	"fmt"
	"math"

	"github.com/absmach/tuner/pkg/model"
	"gonum.org/v1/gonum/floats"
)

var ErrInvalidConfig = errors.New("invalid optimizer config")

type Config struct {
	Beta1       float64 `json:"beta1"`
	Beta2       float64 `json:"beta2"`
	Epsilon     float64 `json:"epsilon"`
	WeightDecay float64 `json:"weight_decay"`
	// ClipNorm rescales the gradients of all parameters together when their
	// global L2 norm exceeds it. Zero disables clipping.
	ClipNorm float64 `json:"clip_norm"`
}

func DefaultConfig() Config {
	return Config{
		Beta1:       0.9,
		Beta2:       0.999,
		Epsilon:     1e-6,
		WeightDecay: 0.01,
		ClipNorm:    1.0,
	}
}

func (c Config) validate() error {
	switch {
	case c.Beta1 < 0 || c.Beta1 >= 1:
		return fmt.Errorf("%w: beta1 must be in [0, 1), got %v", ErrInvalidConfig, c.Beta1)
	case c.Beta2 < 0 || c.Beta2 >= 1:
		return fmt.Errorf("%w: beta2 must be in [0, 1), got %v", ErrInvalidConfig, c.Beta2)
	case c.Epsilon <= 0:
		return fmt.Errorf("%w: epsilon must be positive, got %v", ErrInvalidConfig, c.Epsilon)
	case c.WeightDecay < 0:
		return fmt.Errorf("%w: weight decay must not be negative, got %v", ErrInvalidConfig, c.WeightDecay)
	case c.ClipNorm < 0:
		return fmt.Errorf("%w: clip norm must not be negative, got %v", ErrInvalidConfig, c.ClipNorm)
	}

	return nil
}

// AdamW is Adam with bias correction and weight decay decoupled from the
// gradient:
//
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	w = w - lr·(m̂/(√v̂+ε) + λ·w)
//
// λ is zero for parameters flagged NoDecay.
type AdamW struct {
	cfg    Config
	params []*model.Param
	m, v   [][]float64
	step   int
}

func NewAdamW(params []*model.Param, cfg Config) (*AdamW, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &AdamW{cfg: cfg, params: params}, nil
}

// Steps is the number of updates applied so far.
func (o *AdamW) Steps() int {
	return o.step
}

// Step applies one update with the given learning rate and returns the
// global gradient norm before clipping.
func (o *AdamW) Step(lr float64) float64 {
	// Lazy memory allocation
	if o.m == nil {
		o.m = make([][]float64, len(o.params))
		o.v = make([][]float64, len(o.params))
		for i, p := range o.params {
			o.m[i] = make([]float64, p.Size())
			o.v[i] = make([]float64, p.Size())
		}
	}
	o.step++

	norm := o.globalNorm()
	scale := 1.0
	if o.cfg.ClipNorm > 0 && norm > o.cfg.ClipNorm {
		scale = o.cfg.ClipNorm / norm
	}

	b1, b2 := o.cfg.Beta1, o.cfg.Beta2
	c1 := 1 - math.Pow(b1, float64(o.step))
	c2 := 1 - math.Pow(b2, float64(o.step))
	for i, p := range o.params {
		decay := o.cfg.WeightDecay
		if p.NoDecay {
			decay = 0
		}
		m, v := o.m[i], o.v[i]
		for j, w := range p.Value {
			g := p.Grad[j] * scale
			m[j] = b1*m[j] + (1-b1)*g
			v[j] = b2*v[j] + (1-b2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			p.Value[j] = w - lr*(mHat/(math.Sqrt(vHat)+o.cfg.Epsilon)+decay*w)
		}
	}

	return norm
}

func (o *AdamW) globalNorm() float64 {
	var sum float64
	for _, p := range o.params {
		n := floats.Norm(p.Grad, 2)
		sum += n * n
	}

	return math.Sqrt(sum)
}
