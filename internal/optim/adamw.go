package optim

import (
	"math"

	"advforge/internal/model"
)

// AdamW is Adam with decoupled weight decay and bias correction.
type AdamW struct {
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	decay  float64
	t      int64
	pbeta1 float64 // beta1^t
	pbeta2 float64 // beta2^t
	m      map[string][]float64
	v      map[string][]float64
}

// NewAdamW returns an AdamW optimizer with the usual defaults for the moment
// coefficients.
func NewAdamW(lr, decay float64) *AdamW {
	return &AdamW{
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
		decay:  decay,
		pbeta1: 1,
		pbeta2: 1,
		m:      make(map[string][]float64),
		v:      make(map[string][]float64),
	}
}

// Step applies one bias-corrected update with decoupled decay in place.
func (o *AdamW) Step(params []model.Parameter) {
	o.t++
	o.pbeta1 *= o.beta1
	o.pbeta2 *= o.beta2
	bc1 := 1 - o.pbeta1
	bc2 := 1 - o.pbeta2

	for _, p := range params {
		m := o.state(o.m, p)
		v := o.state(o.v, p)
		for i, g := range p.Grad {
			m[i] = o.beta1*m[i] + (1-o.beta1)*g
			v[i] = o.beta2*v[i] + (1-o.beta2)*g*g
			mhat := m[i] / bc1
			vhat := v[i] / bc2
			p.Value[i] -= o.lr * (mhat/(math.Sqrt(vhat)+o.eps) + o.decay*p.Value[i])
		}
	}
}

// SetLR replaces the learning rate.
func (o *AdamW) SetLR(lr float64) { o.lr = lr }

// LR returns the current learning rate.
func (o *AdamW) LR() float64 { return o.lr }

func (o *AdamW) state(store map[string][]float64, p model.Parameter) []float64 {
	s := store[p.Name]
	if len(s) != len(p.Value) {
		s = make([]float64, len(p.Value))
		store[p.Name] = s
	}
	return s
}
