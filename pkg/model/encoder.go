package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultHiddenSize = 128

	initStdDev = 0.02
)

// Outputs mirrors the two heads of a BERT encoder: one pooled vector per
// text and one vector per token.
type Outputs struct {
	PooledOutput   [][]float64   `json:"pooled_output"`
	SequenceOutput [][][]float64 `json:"sequence_output"`
}

// Activations is what Backward needs from a training forward pass.
type Activations struct {
	Inputs Inputs
	Mean   [][]float64
	Pooled [][]float64
}

type Encoder interface {
	HiddenSize() int
	Encode(in Inputs) (Outputs, error)
	Forward(in Inputs) (Activations, error)
	// Backward accumulates parameter gradients given the gradient of the
	// loss with respect to the pooled output.
	Backward(act Activations, dPooled [][]float64) error
	Params() []*Param
}

// EmbeddingBag encodes a text as the masked mean of its token embeddings
// followed by a tanh pooler.
type EmbeddingBag struct {
	vocabSize  int
	hiddenSize int

	embeddings *Param
	poolerW    *Param
	poolerB    *Param
}

var _ Encoder = (*EmbeddingBag)(nil)

func NewEmbeddingBag(vocabSize, hiddenSize int, seed uint64) (*EmbeddingBag, error) {
	if vocabSize <= 0 || hiddenSize <= 0 {
		return nil, fmt.Errorf("%w: vocabulary %d and hidden size %d must be positive", ErrInvalidModel, vocabSize, hiddenSize)
	}

	e := newEmbeddingBag(vocabSize, hiddenSize)

	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	for _, p := range []*Param{e.embeddings, e.poolerW} {
		for i := range p.Value {
			p.Value[i] = rng.NormFloat64() * initStdDev
		}
	}

	return e, nil
}

func newEmbeddingBag(vocabSize, hiddenSize int) *EmbeddingBag {
	return &EmbeddingBag{
		vocabSize:  vocabSize,
		hiddenSize: hiddenSize,
		embeddings: newParam("encoder/word_embeddings", false, vocabSize, hiddenSize),
		poolerW:    newParam("encoder/pooler/kernel", false, hiddenSize, hiddenSize),
		poolerB:    newParam("encoder/pooler/bias", true, hiddenSize),
	}
}

func (e *EmbeddingBag) HiddenSize() int {
	return e.hiddenSize
}

func (e *EmbeddingBag) VocabSize() int {
	return e.vocabSize
}

func (e *EmbeddingBag) Params() []*Param {
	return []*Param{e.embeddings, e.poolerW, e.poolerB}
}

func (e *EmbeddingBag) row(id int32) []float64 {
	h := e.hiddenSize

	return e.embeddings.Value[int(id)*h : (int(id)+1)*h]
}

func (e *EmbeddingBag) check(in Inputs) error {
	if len(in.InputMask) != len(in.InputWordIDs) {
		return fmt.Errorf("%w: %d id rows but %d mask rows", ErrShapeMismatch, len(in.InputWordIDs), len(in.InputMask))
	}
	for b, ids := range in.InputWordIDs {
		if len(in.InputMask[b]) != len(ids) {
			return fmt.Errorf("%w: row %d has %d ids but %d mask entries", ErrShapeMismatch, b, len(ids), len(in.InputMask[b]))
		}
		for _, id := range ids {
			if id < 0 || int(id) >= e.vocabSize {
				return fmt.Errorf("%w: token id %d outside vocabulary of %d", ErrShapeMismatch, id, e.vocabSize)
			}
		}
	}

	return nil
}

func (e *EmbeddingBag) Forward(in Inputs) (Activations, error) {
	if err := e.check(in); err != nil {
		return Activations{}, err
	}

	h := e.hiddenSize
	act := Activations{
		Inputs: in,
		Mean:   make([][]float64, in.BatchSize()),
		Pooled: make([][]float64, in.BatchSize()),
	}
	for b, ids := range in.InputWordIDs {
		mean := make([]float64, h)
		count := 0
		for t, id := range ids {
			if in.InputMask[b][t] == 0 {
				continue
			}
			floats.Add(mean, e.row(id))
			count++
		}
		if count > 0 {
			floats.Scale(1/float64(count), mean)
		}

		pooled := make([]float64, h)
		for i := range pooled {
			z := floats.Dot(e.poolerW.Value[i*h:(i+1)*h], mean) + e.poolerB.Value[i]
			pooled[i] = math.Tanh(z)
		}

		act.Mean[b] = mean
		act.Pooled[b] = pooled
	}

	return act, nil
}

func (e *EmbeddingBag) Backward(act Activations, dPooled [][]float64) error {
	if len(dPooled) != len(act.Pooled) {
		return fmt.Errorf("%w: %d pooled gradients for a batch of %d", ErrShapeMismatch, len(dPooled), len(act.Pooled))
	}

	h := e.hiddenSize
	dz := make([]float64, h)
	dMean := make([]float64, h)
	for b, pooled := range act.Pooled {
		if len(dPooled[b]) != h {
			return fmt.Errorf("%w: pooled gradient width %d, want %d", ErrShapeMismatch, len(dPooled[b]), h)
		}
		for i := range dz {
			dz[i] = dPooled[b][i] * (1 - pooled[i]*pooled[i])
		}

		clear(dMean)
		for i := range dz {
			floats.AddScaled(e.poolerW.Grad[i*h:(i+1)*h], dz[i], act.Mean[b])
			floats.AddScaled(dMean, dz[i], e.poolerW.Value[i*h:(i+1)*h])
		}
		floats.Add(e.poolerB.Grad, dz)

		ids, mask := act.Inputs.InputWordIDs[b], act.Inputs.InputMask[b]
		count := 0
		for _, m := range mask {
			if m != 0 {
				count++
			}
		}
		if count == 0 {
			continue
		}
		scale := 1 / float64(count)
		for t, id := range ids {
			if mask[t] == 0 {
				continue
			}
			floats.AddScaled(e.embeddings.Grad[int(id)*h:(int(id)+1)*h], scale, dMean)
		}
	}

	return nil
}

func (e *EmbeddingBag) Encode(in Inputs) (Outputs, error) {
	act, err := e.Forward(in)
	if err != nil {
		return Outputs{}, err
	}

	seq := make([][][]float64, in.BatchSize())
	for b, ids := range in.InputWordIDs {
		seq[b] = make([][]float64, len(ids))
		for t, id := range ids {
			tok := make([]float64, e.hiddenSize)
			copy(tok, e.row(id))
			seq[b][t] = tok
		}
	}

	return Outputs{PooledOutput: act.Pooled, SequenceOutput: seq}, nil
}
