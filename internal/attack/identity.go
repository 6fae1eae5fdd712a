package attack

import (
	"gorgonia.org/tensor"

	"advforge/internal/model"
)

// Identity returns a zero perturbation for every input. It serves as the
// deterministic baseline: training with it degenerates to clean training.
type Identity struct{}

// NewIdentity returns the zero-perturbation attack.
func NewIdentity() *Identity {
	return &Identity{}
}

// Run returns zero perturbations and the objective value on the unperturbed
// inputs.
func (a *Identity) Run(m model.Classifier, inputs *tensor.Dense, obj Objective) (*tensor.Dense, []float64, error) {
	shape := inputs.Shape()
	pert := tensor.New(tensor.WithShape(shape[0], shape[1]),
		tensor.WithBacking(make([]float64, shape.TotalSize())))
	objectives, err := scoreAdversarial(m, inputs, pert, obj)
	if err != nil {
		return nil, nil, err
	}
	return pert, objectives, nil
}

// Norm measures the (zero) perturbations under the L-infinity norm.
func (a *Identity) Norm(perturbations *tensor.Dense) ([]float64, error) {
	return LInfNorm(perturbations)
}
