package optim

import "advforge/internal/model"

// Optimizer applies one update to a model's parameters from their accumulated
// gradients.
type Optimizer interface {
	Step(params []model.Parameter)

	// SetLR replaces the learning rate; schedulers drive this between epochs.
	SetLR(lr float64)
	LR() float64
}

// Scheduler adjusts an optimizer's learning rate at epoch boundaries. It is
// never invoked inside the batch loop.
type Scheduler interface {
	Epoch(epoch int)
}

// Constant leaves the learning rate untouched.
type Constant struct{}

// Epoch is a no-op.
func (Constant) Epoch(epoch int) {}

// StepDecay multiplies the base learning rate by gamma every interval epochs.
type StepDecay struct {
	opt      Optimizer
	base     float64
	gamma    float64
	interval int
}

// NewStepDecay returns a step-decay schedule over opt's learning rate.
func NewStepDecay(opt Optimizer, gamma float64, interval int) *StepDecay {
	if interval < 1 {
		interval = 1
	}
	return &StepDecay{opt: opt, base: opt.LR(), gamma: gamma, interval: interval}
}

// Epoch sets the learning rate for the given epoch.
func (s *StepDecay) Epoch(epoch int) {
	lr := s.base
	for i := 0; i < epoch/s.interval; i++ {
		lr *= s.gamma
	}
	s.opt.SetLR(lr)
}
