package model

import (
	"math"
	"testing"

	"gorgonia.org/tensor"
)

func TestSoftmaxRowsSumToOne(t *testing.T) {
	logits := tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float64{
		1, 2, 3,
		-5, 0, 5,
	}))
	probs := Softmax(logits).Data().([]float64)
	for i := 0; i < 2; i++ {
		sum := probs[i*3] + probs[i*3+1] + probs[i*3+2]
		if math.Abs(sum-1) > 1e-12 {
			t.Fatalf("row %d sums to %f", i, sum)
		}
	}
}

func TestLossesUniformLogits(t *testing.T) {
	logits := tensor.New(tensor.WithShape(1, 4), tensor.WithBacking([]float64{0, 0, 0, 0}))
	losses, err := Losses(logits, []int{2})
	if err != nil {
		t.Fatalf("Losses: %v", err)
	}
	want := math.Log(4)
	if math.Abs(losses[0]-want) > 1e-12 {
		t.Fatalf("uniform loss: got %f, want %f", losses[0], want)
	}
}

func TestErrorsAndPredictions(t *testing.T) {
	logits := tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float64{
		5, 1, 1,
		1, 1, 5,
	}))
	preds := Predictions(logits)
	if preds[0] != 0 || preds[1] != 2 {
		t.Fatalf("unexpected predictions %v", preds)
	}
	errs, err := Errors(logits, []int{0, 0})
	if err != nil {
		t.Fatalf("Errors: %v", err)
	}
	if errs[0] != 0 || errs[1] != 1 {
		t.Fatalf("unexpected errors %v", errs)
	}
}

func TestLossGradientRowsSumToZero(t *testing.T) {
	logits := tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float64{
		0.3, 0.2, 0.1,
		-1, 2, 0,
	}))
	grad, err := LossGradient(logits, []int{1, 0}, 1)
	if err != nil {
		t.Fatalf("LossGradient: %v", err)
	}
	g := grad.Data().([]float64)
	for i := 0; i < 2; i++ {
		sum := g[i*3] + g[i*3+1] + g[i*3+2]
		if math.Abs(sum) > 1e-12 {
			t.Fatalf("gradient row %d sums to %g", i, sum)
		}
	}
}

func TestLossesRejectsBadTargets(t *testing.T) {
	logits := tensor.New(tensor.WithShape(1, 3), tensor.WithBacking([]float64{0, 0, 0}))
	if _, err := Losses(logits, []int{3}); err == nil {
		t.Fatal("expected error for out-of-range target")
	}
	if _, err := Losses(logits, []int{0, 1}); err == nil {
		t.Fatal("expected error for target count mismatch")
	}
}
