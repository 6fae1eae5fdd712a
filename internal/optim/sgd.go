package optim

import "advforge/internal/model"

// SGD is stochastic gradient descent with optional momentum.
type SGD struct {
	lr       float64
	momentum float64
	velocity map[string][]float64
}

// NewSGD returns an SGD optimizer. momentum of 0 disables velocity tracking.
func NewSGD(lr, momentum float64) *SGD {
	return &SGD{lr: lr, momentum: momentum, velocity: make(map[string][]float64)}
}

// Step applies one descent update in place.
func (o *SGD) Step(params []model.Parameter) {
	for _, p := range params {
		if o.momentum == 0 {
			for i, g := range p.Grad {
				p.Value[i] -= o.lr * g
			}
			continue
		}
		v := o.velocity[p.Name]
		if len(v) != len(p.Value) {
			v = make([]float64, len(p.Value))
			o.velocity[p.Name] = v
		}
		for i, g := range p.Grad {
			v[i] = o.momentum*v[i] + g
			p.Value[i] -= o.lr * v[i]
		}
	}
}

// SetLR replaces the learning rate.
func (o *SGD) SetLR(lr float64) { o.lr = lr }

// LR returns the current learning rate.
func (o *SGD) LR() float64 { return o.lr }
