package attack

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"advforge/internal/model"
)

// Untargeted maximizes the cross-entropy of the model's logits against the
// bound ground-truth labels, pushing predictions away from the true class.
type Untargeted struct {
	targets []int
}

// NewUntargeted returns an unbound untargeted objective.
func NewUntargeted() *Untargeted {
	return &Untargeted{}
}

// Set binds the target labels.
func (o *Untargeted) Set(targets []int) {
	o.targets = append(o.targets[:0], targets...)
}

// Gradient returns d(cross-entropy)/d(logits) = softmax(logits) - onehot.
// Ascending this direction in input space increases the loss.
func (o *Untargeted) Gradient(logits *tensor.Dense) (*tensor.Dense, error) {
	if err := o.check(logits); err != nil {
		return nil, err
	}
	return model.LossGradient(logits, o.targets, 1)
}

// Score returns the per-example cross-entropy against the bound labels.
func (o *Untargeted) Score(logits *tensor.Dense) ([]float64, error) {
	if err := o.check(logits); err != nil {
		return nil, err
	}
	return model.Losses(logits, o.targets)
}

func (o *Untargeted) check(logits *tensor.Dense) error {
	if len(o.targets) == 0 {
		return errors.New("objective has no bound targets; call Set first")
	}
	if n := logits.Shape()[0]; n != len(o.targets) {
		return errors.Errorf("%d logit rows for %d bound targets", n, len(o.targets))
	}
	return nil
}
