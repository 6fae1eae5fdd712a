package trainer

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"advforge/internal/dataset"
	"advforge/internal/metrics"
	"advforge/internal/model"
	"advforge/internal/optim"
	"advforge/internal/telemetry"
)

const sampleImages = 8

// Normal runs plain epoch-based training and testing: one forward/backward
// pass per batch, per-example metrics accumulated across the epoch and
// reduced to means at its end.
type Normal struct {
	model     model.Classifier
	trainset  dataset.Source
	testset   dataset.Source
	optimizer optim.Optimizer
	scheduler optim.Scheduler
	writer    telemetry.Writer
	device    model.Device
}

// NewNormal validates the collaborators and builds the base trainer.
func NewNormal(m model.Classifier, trainset, testset dataset.Source,
	optimizer optim.Optimizer, scheduler optim.Scheduler,
	writer telemetry.Writer, device model.Device) (*Normal, error) {

	if m == nil {
		return nil, errors.New("trainer: model is nil")
	}
	if trainset == nil || testset == nil {
		return nil, errors.New("trainer: train and test sources must be set")
	}
	if optimizer == nil {
		return nil, errors.New("trainer: optimizer is nil")
	}
	if scheduler == nil {
		scheduler = optim.Constant{}
	}
	if writer == nil {
		return nil, errors.New("trainer: writer is nil")
	}
	if _, err := model.ParseDevice(string(device)); err != nil {
		return nil, err
	}

	return &Normal{
		model:     m,
		trainset:  trainset,
		testset:   testset,
		optimizer: optimizer,
		scheduler: scheduler,
		writer:    writer,
		device:    device,
	}, nil
}

// Train runs one clean training epoch.
func (t *Normal) Train(ctx context.Context, epoch int) error {
	batches := t.trainset.Len()
	acc := metrics.NewAccumulator()
	var window metrics.Window

	for b := 0; b < batches; b++ {
		batch, err := t.trainset.Batch(ctx, b)
		if err != nil {
			return errors.Wrapf(err, "fetching training batch %d", b)
		}
		n := batch.Size()
		if n == 0 {
			return errors.Errorf("degenerate training batch %d: no examples", b)
		}
		inputs := model.OnDevice(batch.Inputs, t.device)

		start := time.Now()
		t.model.SetTraining(true)
		t.model.ZeroGrad()
		logits, err := t.model.Forward(inputs)
		if err != nil {
			return errors.Wrapf(err, "forward on batch %d", b)
		}
		if err := accumulateClassification(acc, "", logits, batch.Targets); err != nil {
			return errors.Wrapf(err, "metrics on batch %d", b)
		}
		logitGrad, err := model.LossGradient(logits, batch.Targets, 1/float64(n))
		if err != nil {
			return errors.Wrapf(err, "loss gradient on batch %d", b)
		}
		if err := t.model.Backward(inputs, logitGrad); err != nil {
			return errors.Wrapf(err, "backward on batch %d", b)
		}
		t.optimizer.Step(t.model.Parameters())
		window.Record(n, 0, time.Since(start), acc.Mean("loss"))

		if b == batches-1 {
			if err := t.emitScalars(acc, "train/", epoch); err != nil {
				return err
			}
			if img, err := telemetry.Grid(inputs, 0, sampleImages); err == nil {
				if err := t.writer.AddImages("train/images", epoch, img); err != nil {
					return errors.Wrap(err, "writing train images")
				}
			}
		}
	}

	snap := window.Snapshot()
	log.Printf("epoch=%d phase=train batches=%d examples_per_sec=%.1f compute_ms=%.2f loss=%.4f",
		epoch, batches, snap.ExamplesPerSec, snap.AvgComputeMS, snap.LastLoss)
	return nil
}

// Test runs one clean test epoch over the whole test source.
func (t *Normal) Test(ctx context.Context, epoch int) error {
	t.model.SetTraining(false)
	acc := metrics.NewAccumulator()

	for b := 0; b < t.testset.Len(); b++ {
		batch, err := t.testset.Batch(ctx, b)
		if err != nil {
			return errors.Wrapf(err, "fetching test batch %d", b)
		}
		if batch.Size() == 0 {
			return errors.Errorf("degenerate test batch %d: no examples", b)
		}
		inputs := model.OnDevice(batch.Inputs, t.device)
		logits, err := t.model.Forward(inputs)
		if err != nil {
			return errors.Wrapf(err, "forward on test batch %d", b)
		}
		if err := accumulateClassification(acc, "", logits, batch.Targets); err != nil {
			return errors.Wrapf(err, "metrics on test batch %d", b)
		}
	}

	return t.emitScalars(acc, "test/", epoch+1)
}

// Step advances the scheduler and runs one training epoch followed by one test
// epoch.
func (t *Normal) Step(ctx context.Context, epoch int) error {
	t.scheduler.Epoch(epoch)
	if err := t.Train(ctx, epoch); err != nil {
		return err
	}
	return t.Test(ctx, epoch)
}

func (t *Normal) emitScalars(acc *metrics.Accumulator, prefix string, step int) error {
	for _, name := range []string{"loss", "error", "confidence"} {
		if acc.Len(name) == 0 {
			continue
		}
		if err := t.writer.AddScalar(prefix+name, step, acc.Mean(name)); err != nil {
			return errors.Wrapf(err, "writing %s%s", prefix, name)
		}
	}
	return nil
}

// accumulateClassification appends per-example loss, error, and confidence
// series under an optional name prefix.
func accumulateClassification(acc *metrics.Accumulator, prefix string, logits *tensor.Dense, targets []int) error {
	losses, err := model.Losses(logits, targets)
	if err != nil {
		return err
	}
	errs, err := model.Errors(logits, targets)
	if err != nil {
		return err
	}
	acc.Append(prefix+"loss", losses...)
	acc.Append(prefix+"error", errs...)
	acc.Append(prefix+"confidence", model.Confidences(logits)...)
	return nil
}
