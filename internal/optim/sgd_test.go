package optim

import (
	"math"
	"testing"

	"advforge/internal/model"
)

func TestSGDStep(t *testing.T) {
	value := []float64{1, 2}
	grad := []float64{0.5, -0.5}
	o := NewSGD(0.1, 0)
	o.Step([]model.Parameter{{Name: "w", Value: value, Grad: grad}})
	if math.Abs(value[0]-0.95) > 1e-12 || math.Abs(value[1]-2.05) > 1e-12 {
		t.Fatalf("unexpected values %v", value)
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	value := []float64{0}
	grad := []float64{1}
	o := NewSGD(0.1, 0.9)
	p := []model.Parameter{{Name: "w", Value: value, Grad: grad}}

	o.Step(p) // v=1, w=-0.1
	o.Step(p) // v=1.9, w=-0.29
	if math.Abs(value[0]-(-0.29)) > 1e-12 {
		t.Fatalf("momentum value %f, want -0.29", value[0])
	}
}

func TestStepDecaySchedule(t *testing.T) {
	o := NewSGD(0.4, 0)
	s := NewStepDecay(o, 0.5, 2)

	for _, tc := range []struct {
		epoch int
		want  float64
	}{
		{0, 0.4}, {1, 0.4}, {2, 0.2}, {3, 0.2}, {4, 0.1},
	} {
		s.Epoch(tc.epoch)
		if math.Abs(o.LR()-tc.want) > 1e-12 {
			t.Fatalf("epoch %d: lr %f, want %f", tc.epoch, o.LR(), tc.want)
		}
	}
}
