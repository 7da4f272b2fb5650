package model

import (
	"fmt"
	"math"
)

// BinaryCrossEntropy is the mean sigmoid cross-entropy of logits against
// 0/1 labels, computed without overflow. It also returns the gradient of
// the mean with respect to each logit.
func BinaryCrossEntropy(logits, labels []float64) (float64, []float64, error) {
	if len(logits) != len(labels) {
		return 0, nil, fmt.Errorf("%w: %d logits for %d labels", ErrShapeMismatch, len(logits), len(labels))
	}
	if len(logits) == 0 {
		return 0, nil, nil
	}

	n := float64(len(logits))
	grads := make([]float64, len(logits))
	var sum float64
	for i, x := range logits {
		y := labels[i]
		sum += math.Max(x, 0) - x*y + math.Log1p(math.Exp(-math.Abs(x)))
		grads[i] = (Sigmoid(x) - y) / n
	}

	return sum / n, grads, nil
}

// CorrectPredictions counts logits on the same side of zero as their label.
func CorrectPredictions(logits, labels []float64) int {
	correct := 0
	for i, x := range logits {
		pred := 0.0
		if x > 0 {
			pred = 1
		}
		if pred == labels[i] {
			correct++
		}
	}

	return correct
}

func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)

	return e / (1 + e)
}
