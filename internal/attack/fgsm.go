package attack

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"advforge/internal/model"
)

// FGSM is the fast gradient sign method: a single epsilon-sized step along
// the sign of the input gradient, with the result clipped to the valid [0, 1]
// feature range.
type FGSM struct {
	epsilon float64
}

// NewFGSM returns an FGSM attack with the given step size.
func NewFGSM(epsilon float64) *FGSM {
	return &FGSM{epsilon: epsilon}
}

// Run produces one perturbation per input row.
func (a *FGSM) Run(m model.Classifier, inputs *tensor.Dense, obj Objective) (*tensor.Dense, []float64, error) {
	logits, err := m.Forward(inputs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fgsm forward")
	}
	logitGrad, err := obj.Gradient(logits)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fgsm objective gradient")
	}
	inputGrad, err := m.InputGradient(inputs, logitGrad)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fgsm input gradient")
	}

	shape := inputs.Shape()
	in := inputs.Data().([]float64)
	g := inputGrad.Data().([]float64)
	pert := make([]float64, len(in))
	for i, v := range in {
		step := a.epsilon * sign(g[i])
		pert[i] = clip(v+step, 0, 1) - v
	}
	perturbations := tensor.New(tensor.WithShape(shape[0], shape[1]), tensor.WithBacking(pert))

	objectives, err := scoreAdversarial(m, inputs, perturbations, obj)
	if err != nil {
		return nil, nil, err
	}
	return perturbations, objectives, nil
}

// Norm measures perturbations under the L-infinity norm the attack optimizes.
func (a *FGSM) Norm(perturbations *tensor.Dense) ([]float64, error) {
	return LInfNorm(perturbations)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	if v > 0 {
		return 1
	}
	return 0
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func scoreAdversarial(m model.Classifier, inputs, perturbations *tensor.Dense, obj Objective) ([]float64, error) {
	adv, err := AddPerturbation(inputs, perturbations)
	if err != nil {
		return nil, err
	}
	logits, err := m.Forward(adv)
	if err != nil {
		return nil, errors.Wrap(err, "scoring forward")
	}
	values, err := obj.Score(logits)
	if err != nil {
		return nil, errors.Wrap(err, "scoring objective")
	}
	return values, nil
}

// AddPerturbation applies perturbations elementwise to inputs.
func AddPerturbation(inputs, perturbations *tensor.Dense) (*tensor.Dense, error) {
	if !inputs.Shape().Eq(perturbations.Shape()) {
		return nil, errors.Errorf("perturbation shape %v does not match inputs %v",
			perturbations.Shape(), inputs.Shape())
	}
	out, err := tensor.Add(inputs, perturbations)
	if err != nil {
		return nil, errors.Wrap(err, "adding perturbation")
	}
	return out.(*tensor.Dense), nil
}
