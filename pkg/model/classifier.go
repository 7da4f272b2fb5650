package model

import (
	"fmt"
	"math/rand/v2"
)

// Classifier chains preprocessing, encoder and head into a text to logit
// model. It is not safe for concurrent training steps.
type Classifier struct {
	pre  Preprocessor
	enc  Encoder
	head *Head
	rng  *rand.Rand
}

type StepResult struct {
	Loss    float64
	Correct int
	Size    int
}

func NewClassifier(pre Preprocessor, enc Encoder, head *Head, seed uint64) (*Classifier, error) {
	if head.Width() != enc.HiddenSize() {
		return nil, fmt.Errorf("%w: head width %d does not match encoder hidden size %d", ErrShapeMismatch, head.Width(), enc.HiddenSize())
	}

	return &Classifier{
		pre:  pre,
		enc:  enc,
		head: head,
		rng:  rand.New(rand.NewPCG(seed, 0xd809)),
	}, nil
}

func (c *Classifier) Preprocessor() Preprocessor {
	return c.pre
}

func (c *Classifier) Encoder() Encoder {
	return c.enc
}

func (c *Classifier) Head() *Head {
	return c.head
}

func (c *Classifier) Params() []*Param {
	return append(c.enc.Params(), c.head.Params()...)
}

// Logits runs inference with dropout disabled.
func (c *Classifier) Logits(texts []string) ([]float64, error) {
	in, err := c.pre.Preprocess(texts)
	if err != nil {
		return nil, err
	}
	act, err := c.enc.Forward(in)
	if err != nil {
		return nil, err
	}
	logits, _, err := c.head.Forward(act.Pooled, nil)

	return logits, err
}

// Predict returns the probability of the positive class for every text.
func (c *Classifier) Predict(texts []string) ([]float64, error) {
	logits, err := c.Logits(texts)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, len(logits))
	for i, x := range logits {
		probs[i] = Sigmoid(x)
	}

	return probs, nil
}

// TrainStep clears all gradients, then runs forward and backward passes
// over one batch. Parameters are left untouched; the optimizer applies the
// accumulated gradients.
func (c *Classifier) TrainStep(texts []string, labels []float64) (StepResult, error) {
	zeroGrads(c.Params())

	in, err := c.pre.Preprocess(texts)
	if err != nil {
		return StepResult{}, err
	}
	act, err := c.enc.Forward(in)
	if err != nil {
		return StepResult{}, err
	}
	logits, masks, err := c.head.Forward(act.Pooled, c.rng)
	if err != nil {
		return StepResult{}, err
	}
	loss, dLogits, err := BinaryCrossEntropy(logits, labels)
	if err != nil {
		return StepResult{}, err
	}
	dPooled, err := c.head.Backward(act.Pooled, masks, dLogits)
	if err != nil {
		return StepResult{}, err
	}
	if err := c.enc.Backward(act, dPooled); err != nil {
		return StepResult{}, err
	}

	return StepResult{
		Loss:    loss,
		Correct: CorrectPredictions(logits, labels),
		Size:    len(texts),
	}, nil
}

// Evaluate scores one batch without touching gradients.
func (c *Classifier) Evaluate(texts []string, labels []float64) (StepResult, error) {
	logits, err := c.Logits(texts)
	if err != nil {
		return StepResult{}, err
	}
	loss, _, err := BinaryCrossEntropy(logits, labels)
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{
		Loss:    loss,
		Correct: CorrectPredictions(logits, labels),
		Size:    len(texts),
	}, nil
}
