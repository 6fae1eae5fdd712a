package model

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Linear is a tiny linear classifier trained with softmax cross-entropy. It
// exposes both parameter gradients (for the optimizer) and input-space
// gradients (for attacks).
type Linear struct {
	classes   int
	inputSize int
	weights   []float64 // row-major [classes, inputSize]
	bias      []float64
	gradW     []float64
	gradB     []float64
	training  bool
}

// NewLinear constructs the model with small random initialization.
func NewLinear(classes, inputSize int, seed int64) *Linear {
	if classes <= 0 {
		classes = 10
	}
	if inputSize <= 0 {
		inputSize = 64
	}
	rng := rand.New(rand.NewSource(seed))
	weights := make([]float64, classes*inputSize)
	for i := range weights {
		weights[i] = (rng.Float64()*2 - 1) * 0.01
	}
	return &Linear{
		classes:   classes,
		inputSize: inputSize,
		weights:   weights,
		bias:      make([]float64, classes),
		gradW:     make([]float64, classes*inputSize),
		gradB:     make([]float64, classes),
	}
}

// Classes returns the number of output classes.
func (m *Linear) Classes() int { return m.classes }

// InputSize returns the expected feature dimension.
func (m *Linear) InputSize() int { return m.inputSize }

// Forward computes logits [N, classes] for inputs [N, inputSize].
func (m *Linear) Forward(inputs *tensor.Dense) (*tensor.Dense, error) {
	n, err := m.checkInputs(inputs)
	if err != nil {
		return nil, err
	}
	in := inputs.Data().([]float64)
	logits := make([]float64, n*m.classes)
	for i := 0; i < n; i++ {
		row := in[i*m.inputSize : (i+1)*m.inputSize]
		for c := 0; c < m.classes; c++ {
			sum := m.bias[c]
			w := m.weights[c*m.inputSize : (c+1)*m.inputSize]
			for j, v := range row {
				sum += w[j] * v
			}
			logits[i*m.classes+c] = sum
		}
	}
	return tensor.New(tensor.WithShape(n, m.classes), tensor.WithBacking(logits)), nil
}

// Backward accumulates parameter gradients for the upstream logit gradient.
func (m *Linear) Backward(inputs, logitGrad *tensor.Dense) error {
	n, err := m.checkPair(inputs, logitGrad)
	if err != nil {
		return err
	}
	in := inputs.Data().([]float64)
	g := logitGrad.Data().([]float64)
	for i := 0; i < n; i++ {
		row := in[i*m.inputSize : (i+1)*m.inputSize]
		for c := 0; c < m.classes; c++ {
			gc := g[i*m.classes+c]
			m.gradB[c] += gc
			w := m.gradW[c*m.inputSize : (c+1)*m.inputSize]
			for j, v := range row {
				w[j] += gc * v
			}
		}
	}
	return nil
}

// InputGradient backpropagates the logit gradient into the input space.
func (m *Linear) InputGradient(inputs, logitGrad *tensor.Dense) (*tensor.Dense, error) {
	n, err := m.checkPair(inputs, logitGrad)
	if err != nil {
		return nil, err
	}
	g := logitGrad.Data().([]float64)
	out := make([]float64, n*m.inputSize)
	for i := 0; i < n; i++ {
		for c := 0; c < m.classes; c++ {
			gc := g[i*m.classes+c]
			if gc == 0 {
				continue
			}
			w := m.weights[c*m.inputSize : (c+1)*m.inputSize]
			row := out[i*m.inputSize : (i+1)*m.inputSize]
			for j, v := range w {
				row[j] += gc * v
			}
		}
	}
	return tensor.New(tensor.WithShape(n, m.inputSize), tensor.WithBacking(out)), nil
}

// ZeroGrad clears accumulated parameter gradients.
func (m *Linear) ZeroGrad() {
	for i := range m.gradW {
		m.gradW[i] = 0
	}
	for i := range m.gradB {
		m.gradB[i] = 0
	}
}

// Parameters exposes the weight and bias tensors to an optimizer.
func (m *Linear) Parameters() []Parameter {
	return []Parameter{
		{Name: "weights", Value: m.weights, Grad: m.gradW},
		{Name: "bias", Value: m.bias, Grad: m.gradB},
	}
}

// SetTraining toggles training mode. The linear model has no mode-dependent
// layers; the flag is kept so the trainer's eval/train switching is observable.
func (m *Linear) SetTraining(on bool) { m.training = on }

// Training reports the current mode.
func (m *Linear) Training() bool { return m.training }

// SetWeights overwrites the weight matrix, for deterministic setups.
func (m *Linear) SetWeights(weights, bias []float64) error {
	if len(weights) != len(m.weights) || len(bias) != len(m.bias) {
		return errors.Errorf("weight dimensions %d/%d do not match model %d/%d",
			len(weights), len(bias), len(m.weights), len(m.bias))
	}
	copy(m.weights, weights)
	copy(m.bias, bias)
	return nil
}

func (m *Linear) checkInputs(inputs *tensor.Dense) (int, error) {
	shape := inputs.Shape()
	if len(shape) != 2 || shape[1] != m.inputSize {
		return 0, errors.Errorf("inputs shape %v does not match input size %d", shape, m.inputSize)
	}
	return shape[0], nil
}

func (m *Linear) checkPair(inputs, logitGrad *tensor.Dense) (int, error) {
	n, err := m.checkInputs(inputs)
	if err != nil {
		return 0, err
	}
	gs := logitGrad.Shape()
	if len(gs) != 2 || gs[0] != n || gs[1] != m.classes {
		return 0, errors.Errorf("logit gradient shape %v does not match [%d, %d]", gs, n, m.classes)
	}
	return n, nil
}
