package model

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const logitFloor = 1e-9

// Softmax returns row-wise softmax probabilities for logits [N, C].
func Softmax(logits *tensor.Dense) *tensor.Dense {
	shape := logits.Shape()
	n, c := shape[0], shape[1]
	in := logits.Data().([]float64)
	out := make([]float64, len(in))
	for i := 0; i < n; i++ {
		copy(out[i*c:(i+1)*c], softmaxRow(in[i*c:(i+1)*c]))
	}
	return tensor.New(tensor.WithShape(n, c), tensor.WithBacking(out))
}

func softmaxRow(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		exp := math.Exp(v - maxLogit)
		out[i] = exp
		sum += exp
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}

// Losses returns the per-example cross-entropy of logits [N, C] against
// targets.
func Losses(logits *tensor.Dense, targets []int) ([]float64, error) {
	n, c, err := checkLogits(logits, targets)
	if err != nil {
		return nil, err
	}
	in := logits.Data().([]float64)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		probs := softmaxRow(in[i*c : (i+1)*c])
		out[i] = -math.Log(math.Max(probs[targets[i]], logitFloor))
	}
	return out, nil
}

// Errors returns a {0,1} misclassification indicator per example.
func Errors(logits *tensor.Dense, targets []int) ([]float64, error) {
	n, _, err := checkLogits(logits, targets)
	if err != nil {
		return nil, err
	}
	preds := Predictions(logits)
	out := make([]float64, n)
	for i, p := range preds {
		if p != targets[i] {
			out[i] = 1
		}
	}
	return out, nil
}

// Confidences returns the maximum softmax probability per example.
func Confidences(logits *tensor.Dense) []float64 {
	shape := logits.Shape()
	n, c := shape[0], shape[1]
	in := logits.Data().([]float64)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		probs := softmaxRow(in[i*c : (i+1)*c])
		best := probs[0]
		for _, p := range probs[1:] {
			if p > best {
				best = p
			}
		}
		out[i] = best
	}
	return out
}

// Predictions returns the argmax class per example.
func Predictions(logits *tensor.Dense) []int {
	shape := logits.Shape()
	n, c := shape[0], shape[1]
	in := logits.Data().([]float64)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		row := in[i*c : (i+1)*c]
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// LossGradient returns scale * (softmax(logits) - onehot(targets)), the
// gradient of the summed cross-entropy with respect to the logits.
func LossGradient(logits *tensor.Dense, targets []int, scale float64) (*tensor.Dense, error) {
	n, c, err := checkLogits(logits, targets)
	if err != nil {
		return nil, err
	}
	in := logits.Data().([]float64)
	out := make([]float64, len(in))
	for i := 0; i < n; i++ {
		probs := softmaxRow(in[i*c : (i+1)*c])
		probs[targets[i]] -= 1
		for j, v := range probs {
			out[i*c+j] = scale * v
		}
	}
	return tensor.New(tensor.WithShape(n, c), tensor.WithBacking(out)), nil
}

func checkLogits(logits *tensor.Dense, targets []int) (int, int, error) {
	shape := logits.Shape()
	if len(shape) != 2 {
		return 0, 0, errors.Errorf("expected rank-2 logits, got shape %v", shape)
	}
	n, c := shape[0], shape[1]
	if len(targets) != n {
		return 0, 0, errors.Errorf("%d targets for %d logit rows", len(targets), n)
	}
	for i, t := range targets {
		if t < 0 || t >= c {
			return 0, 0, errors.Errorf("target %d at index %d out of range for %d classes", t, i, c)
		}
	}
	return n, c, nil
}
