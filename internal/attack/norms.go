package attack

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// LInfNorm returns the per-example maximum absolute perturbation.
func LInfNorm(perturbations *tensor.Dense) ([]float64, error) {
	return reduceRows(perturbations, func(row []float64) float64 {
		best := 0.0
		for _, v := range row {
			if a := math.Abs(v); a > best {
				best = a
			}
		}
		return best
	})
}

// L2Norm returns the per-example Euclidean perturbation magnitude.
func L2Norm(perturbations *tensor.Dense) ([]float64, error) {
	return reduceRows(perturbations, func(row []float64) float64 {
		sum := 0.0
		for _, v := range row {
			sum += v * v
		}
		return math.Sqrt(sum)
	})
}

func reduceRows(t *tensor.Dense, f func([]float64) float64) ([]float64, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("expected rank-2 perturbations, got shape %v", shape)
	}
	n, d := shape[0], shape[1]
	data := t.Data().([]float64)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = f(data[i*d : (i+1)*d])
	}
	return out, nil
}
