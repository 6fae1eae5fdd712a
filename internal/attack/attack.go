package attack

import (
	"gorgonia.org/tensor"

	"advforge/internal/model"
)

// Objective scores candidate perturbations during an attack's search. It must
// be bound to the current target labels with Set before the attack runs.
type Objective interface {
	// Set binds the target labels for the examples about to be attacked.
	Set(targets []int)

	// Gradient returns the direction in logit space that increases the
	// objective, shaped like logits.
	Gradient(logits *tensor.Dense) (*tensor.Dense, error)

	// Score returns the per-example objective value for logits.
	Score(logits *tensor.Dense) ([]float64, error)
}

// Attack produces one perturbation per input row along with the per-example
// objective value achieved.
type Attack interface {
	Run(m model.Classifier, inputs *tensor.Dense, obj Objective) (perturbations *tensor.Dense, objectives []float64, err error)
}

// Normer measures perturbation magnitude per example. The training loop
// requires its attack to implement this; the check happens at construction.
type Normer interface {
	Norm(perturbations *tensor.Dense) ([]float64, error)
}
