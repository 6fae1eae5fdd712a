package model

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Batch represents a minibatch of flattened image features and class targets.
type Batch struct {
	Inputs  *tensor.Dense // shape [N, D], float64
	Targets []int         // length N
}

// Size returns the number of examples in the batch.
func (b Batch) Size() int {
	if b.Inputs == nil {
		return 0
	}
	return b.Inputs.Shape()[0]
}

// Parameter is one trainable tensor exposed to an optimizer. Value and Grad
// alias the model's own storage; optimizers update Value in place.
type Parameter struct {
	Name  string
	Value []float64
	Grad  []float64
}

// Classifier is the minimal model contract required by the training loops and
// by attacks. Implementations accumulate parameter gradients across Backward
// calls until ZeroGrad.
type Classifier interface {
	// Forward computes logits of shape [N, C] for inputs of shape [N, D].
	Forward(inputs *tensor.Dense) (*tensor.Dense, error)

	// Backward accumulates parameter gradients for the given upstream logit
	// gradient, which must match the shape Forward produced for inputs.
	Backward(inputs, logitGrad *tensor.Dense) error

	// InputGradient backpropagates the logit gradient to the input space.
	// Attacks use this to search for perturbations; parameters are untouched.
	InputGradient(inputs, logitGrad *tensor.Dense) (*tensor.Dense, error)

	ZeroGrad()
	Parameters() []Parameter

	// SetTraining toggles between training and evaluation mode.
	SetTraining(on bool)
}

// Device names a tensor placement backend.
type Device string

// CPU is the only supported backend.
const CPU Device = "cpu"

// ParseDevice validates a device name from configuration.
func ParseDevice(s string) (Device, error) {
	if s == "" || Device(s) == CPU {
		return CPU, nil
	}
	return "", errors.Errorf("unsupported device %q (have: %s)", s, CPU)
}

// OnDevice places t on d. Placement is a no-op for the CPU backend; the seam
// keeps trainer code agnostic of where tensors live.
func OnDevice(t *tensor.Dense, d Device) *tensor.Dense {
	return t
}

// SplitRows partitions t at row index split into a prefix of split rows and a
// suffix of the remaining rows. Both parts must be non-empty; callers that
// allow an empty partition branch before splitting.
func SplitRows(t *tensor.Dense, split int) (*tensor.Dense, *tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, nil, errors.Errorf("expected a rank-2 tensor, got shape %v", shape)
	}
	n, d := shape[0], shape[1]
	if split <= 0 || split >= n {
		return nil, nil, errors.Errorf("split index %d leaves an empty partition of %d rows", split, n)
	}
	data := t.Data().([]float64)
	head := tensor.New(tensor.WithShape(split, d),
		tensor.WithBacking(append([]float64(nil), data[:split*d]...)))
	tail := tensor.New(tensor.WithShape(n-split, d),
		tensor.WithBacking(append([]float64(nil), data[split*d:]...)))
	return head, tail, nil
}

// ConcatRows stacks a on top of b along the row axis.
func ConcatRows(a, b *tensor.Dense) (*tensor.Dense, error) {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 || as[1] != bs[1] {
		return nil, errors.Errorf("cannot concat shapes %v and %v", as, bs)
	}
	ad := a.Data().([]float64)
	bd := b.Data().([]float64)
	out := make([]float64, 0, len(ad)+len(bd))
	out = append(out, ad...)
	out = append(out, bd...)
	return tensor.New(tensor.WithShape(as[0]+bs[0], as[1]), tensor.WithBacking(out)), nil
}
