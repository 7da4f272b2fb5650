package model

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const DefaultDropout = 0.1

// Head applies dropout to the pooled output and projects it to a single
// logit.
type Head struct {
	dropout float64
	kernel  *Param
	bias    *Param
}

func NewHead(hiddenSize int, dropout float64, seed uint64) (*Head, error) {
	if hiddenSize <= 0 {
		return nil, fmt.Errorf("%w: hidden size must be positive, got %d", ErrInvalidModel, hiddenSize)
	}
	if dropout < 0 || dropout >= 1 {
		return nil, fmt.Errorf("%w: dropout must be in [0, 1), got %v", ErrInvalidModel, dropout)
	}

	h := newHead(hiddenSize, dropout)
	rng := rand.New(rand.NewPCG(seed, 0xc1a55))
	for i := range h.kernel.Value {
		h.kernel.Value[i] = rng.NormFloat64() * initStdDev
	}

	return h, nil
}

func newHead(hiddenSize int, dropout float64) *Head {
	return &Head{
		dropout: dropout,
		kernel:  newParam("classifier/kernel", false, hiddenSize, 1),
		bias:    newParam("classifier/bias", true, 1),
	}
}

func (h *Head) Width() int {
	return h.kernel.Size()
}

func (h *Head) Dropout() float64 {
	return h.dropout
}

func (h *Head) Params() []*Param {
	return []*Param{h.kernel, h.bias}
}

// Forward returns one logit per row. With a nil rng dropout is disabled;
// otherwise the returned masks must be passed to Backward.
func (h *Head) Forward(pooled [][]float64, rng *rand.Rand) ([]float64, [][]float64, error) {
	logits := make([]float64, len(pooled))
	var masks [][]float64
	if rng != nil {
		masks = make([][]float64, len(pooled))
	}

	keep := 1 - h.dropout
	for b, x := range pooled {
		if len(x) != h.Width() {
			return nil, nil, fmt.Errorf("%w: pooled width %d, head expects %d", ErrShapeMismatch, len(x), h.Width())
		}
		if rng == nil || h.dropout == 0 {
			logits[b] = floats.Dot(h.kernel.Value, x) + h.bias.Value[0]
			if rng != nil {
				masks[b] = ones(len(x))
			}

			continue
		}

		mask := make([]float64, len(x))
		for i := range mask {
			if rng.Float64() < keep {
				mask[i] = 1 / keep
			}
		}
		dropped := make([]float64, len(x))
		floats.MulTo(dropped, mask, x)
		logits[b] = floats.Dot(h.kernel.Value, dropped) + h.bias.Value[0]
		masks[b] = mask
	}

	return logits, masks, nil
}

// Backward accumulates head gradients and returns the gradient with
// respect to the pooled output.
func (h *Head) Backward(pooled, masks [][]float64, dLogits []float64) ([][]float64, error) {
	if len(pooled) != len(dLogits) || len(masks) != len(dLogits) {
		return nil, fmt.Errorf("%w: %d rows, %d masks, %d logit gradients", ErrShapeMismatch, len(pooled), len(masks), len(dLogits))
	}

	dPooled := make([][]float64, len(pooled))
	dropped := make([]float64, h.Width())
	for b, x := range pooled {
		floats.MulTo(dropped, masks[b], x)
		floats.AddScaled(h.kernel.Grad, dLogits[b], dropped)
		h.bias.Grad[0] += dLogits[b]

		d := make([]float64, h.Width())
		floats.MulTo(d, masks[b], h.kernel.Value)
		floats.Scale(dLogits[b], d)
		dPooled[b] = d
	}

	return dPooled, nil
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}

	return s
}
