package attack

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"advforge/internal/model"
)

// PGD is projected gradient descent: iterated sign steps of size epsilon/steps,
// projected back into the epsilon ball around the original inputs and clipped
// to the valid [0, 1] feature range after every step.
type PGD struct {
	epsilon float64
	steps   int
}

// NewPGD returns a PGD attack. steps below 1 are treated as 1, which collapses
// to FGSM.
func NewPGD(epsilon float64, steps int) *PGD {
	if steps < 1 {
		steps = 1
	}
	return &PGD{epsilon: epsilon, steps: steps}
}

// Run produces one perturbation per input row.
func (a *PGD) Run(m model.Classifier, inputs *tensor.Dense, obj Objective) (*tensor.Dense, []float64, error) {
	shape := inputs.Shape()
	if len(shape) != 2 {
		return nil, nil, errors.Errorf("expected rank-2 inputs, got shape %v", shape)
	}
	orig := inputs.Data().([]float64)
	adv := append([]float64(nil), orig...)
	alpha := a.epsilon / float64(a.steps)

	for step := 0; step < a.steps; step++ {
		current := tensor.New(tensor.WithShape(shape[0], shape[1]),
			tensor.WithBacking(append([]float64(nil), adv...)))
		logits, err := m.Forward(current)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "pgd forward at step %d", step)
		}
		logitGrad, err := obj.Gradient(logits)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "pgd objective gradient at step %d", step)
		}
		inputGrad, err := m.InputGradient(current, logitGrad)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "pgd input gradient at step %d", step)
		}
		g := inputGrad.Data().([]float64)
		for i := range adv {
			adv[i] += alpha * sign(g[i])
			// project to the epsilon ball, then to the valid range
			delta := clip(adv[i]-orig[i], -a.epsilon, a.epsilon)
			adv[i] = clip(orig[i]+delta, 0, 1)
		}
	}

	pert := make([]float64, len(orig))
	for i := range pert {
		pert[i] = adv[i] - orig[i]
	}
	perturbations := tensor.New(tensor.WithShape(shape[0], shape[1]), tensor.WithBacking(pert))

	objectives, err := scoreAdversarial(m, inputs, perturbations, obj)
	if err != nil {
		return nil, nil, err
	}
	return perturbations, objectives, nil
}

// Norm measures perturbations under the L-infinity norm the attack optimizes.
func (a *PGD) Norm(perturbations *tensor.Dense) ([]float64, error) {
	return LInfNorm(perturbations)
}
