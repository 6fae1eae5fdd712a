package trainer

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"advforge/internal/attack"
	"advforge/internal/dataset"
	"advforge/internal/metrics"
	"advforge/internal/model"
	"advforge/internal/optim"
	"advforge/internal/telemetry"
)

// testBatchCap bounds how many test batches are attacked per epoch; batches
// past the cap are skipped entirely, trading coverage for a runtime bound.
const testBatchCap = 10

// Adversarial trains a classifier on batches that are part clean, part
// attacked. Each training batch is split at a deterministic index, the
// adversarial suffix is perturbed by the attack, and one optimizer step is
// taken on the recombined batch. The test pass attacks every example of a
// capped number of batches.
type Adversarial struct {
	*Normal

	attack    attack.Attack
	norm      attack.Normer
	objective attack.Objective

	// fractionClean is the stored complement of the requested adversarial
	// fraction; split-index arithmetic uses it directly.
	fractionClean float64
	maxBatches    int
}

// NewAdversarial validates the collaborators and builds the trainer. fraction
// is the requested adversarial share of each batch, in (0, 1]. The attack
// must measure its own perturbations: it has to implement attack.Normer.
func NewAdversarial(m model.Classifier, trainset, testset dataset.Source,
	optimizer optim.Optimizer, scheduler optim.Scheduler,
	atk attack.Attack, objective attack.Objective, fraction float64,
	writer telemetry.Writer, device model.Device) (*Adversarial, error) {

	base, err := NewNormal(m, trainset, testset, optimizer, scheduler, writer, device)
	if err != nil {
		return nil, err
	}
	if fraction <= 0 || fraction > 1 {
		return nil, errors.Errorf("adversarial fraction %g outside (0, 1]", fraction)
	}
	if atk == nil {
		return nil, errors.New("trainer: attack is nil")
	}
	if objective == nil {
		return nil, errors.New("trainer: objective is nil")
	}
	norm, ok := atk.(attack.Normer)
	if !ok {
		return nil, errors.Errorf("attack %T does not expose a perturbation norm", atk)
	}

	t := &Adversarial{
		Normal:        base,
		attack:        atk,
		norm:          norm,
		objective:     objective,
		fractionClean: 1 - fraction,
		maxBatches:    testBatchCap,
	}

	if err := writer.AddText("config/attack", fmt.Sprintf("%T", atk)); err != nil {
		return nil, errors.Wrap(err, "writing attack config")
	}
	if err := writer.AddText("config/objective", fmt.Sprintf("%T", objective)); err != nil {
		return nil, errors.Wrap(err, "writing objective config")
	}
	if err := writer.AddText("config/fraction", strconv.FormatFloat(fraction, 'g', -1, 64)); err != nil {
		return nil, errors.Wrap(err, "writing fraction config")
	}
	return t, nil
}

// Train runs one adversarial training epoch.
func (t *Adversarial) Train(ctx context.Context, epoch int) error {
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
		targets := batch.Targets

		split := int(t.fractionClean * float64(n))
		if split >= n {
			return errors.Errorf("degenerate split on batch %d: %d clean of %d leaves no adversarial examples", b, split, n)
		}
		// recompute from the realized split to keep the loss weighting exact
		advWeight := float64(n-split) / float64(n)

		var cleanInputs, advInputs *tensor.Dense
		if split > 0 {
			cleanInputs, advInputs, err = model.SplitRows(inputs, split)
			if err != nil {
				return errors.Wrapf(err, "splitting batch %d", b)
			}
		} else {
			advInputs = inputs
		}
		cleanTargets := targets[:split]
		advTargets := targets[split:]

		attackStart := time.Now()
		t.model.SetTraining(false)
		t.objective.Set(advTargets)
		perturbations, _, err := t.attack.Run(t.model, advInputs, t.objective)
		if err != nil {
			return errors.Wrapf(err, "attack on batch %d", b)
		}
		advInputs, err = attack.AddPerturbation(advInputs, perturbations)
		if err != nil {
			return errors.Wrapf(err, "perturbing batch %d", b)
		}
		attackTime := time.Since(attackStart)

		combined := advInputs
		if split > 0 {
			combined, err = model.ConcatRows(cleanInputs, advInputs)
			if err != nil {
				return errors.Wrapf(err, "recombining batch %d", b)
			}
		}

		computeStart := time.Now()
		t.model.SetTraining(true)
		t.model.ZeroGrad()
		logits, err := t.model.Forward(combined)
		if err != nil {
			return errors.Wrapf(err, "forward on batch %d", b)
		}

		var cleanLogits, advLogits *tensor.Dense
		if split > 0 {
			cleanLogits, advLogits, err = model.SplitRows(logits, split)
			if err != nil {
				return errors.Wrapf(err, "splitting logits on batch %d", b)
			}
		} else {
			advLogits = logits
		}

		if err := accumulateClassification(acc, "adversarial_", advLogits, advTargets); err != nil {
			return errors.Wrapf(err, "adversarial metrics on batch %d", b)
		}
		acc.Append("adversarial_success", successes(advLogits, advTargets)...)
		if split > 0 {
			if err := accumulateClassification(acc, "clean_", cleanLogits, cleanTargets); err != nil {
				return errors.Wrapf(err, "clean metrics on batch %d", b)
			}
		}

		logitGrad, err := t.backwardGradient(logits, cleanLogits, advLogits, cleanTargets, advTargets, split, advWeight)
		if err != nil {
			return errors.Wrapf(err, "loss gradient on batch %d", b)
		}
		if err := t.model.Backward(combined, logitGrad); err != nil {
			return errors.Wrapf(err, "backward on batch %d", b)
		}
		t.optimizer.Step(t.model.Parameters())
		window.Record(n, attackTime, time.Since(computeStart), acc.Mean("adversarial_loss"))

		if b == batches-1 {
			if err := t.emitTrainEpoch(acc, epoch, combined, split); err != nil {
				return err
			}
		}
	}

	snap := window.Snapshot()
	log.Printf("epoch=%d phase=train batches=%d examples_per_sec=%.1f attack_ms=%.2f compute_ms=%.2f adversarial_loss=%.4f",
		epoch, batches, snap.ExamplesPerSec, snap.AvgAttackMS, snap.AvgComputeMS, snap.LastLoss)
	return nil
}

// backwardGradient composes the logit gradient of the backward loss: the
// convex combination of clean and adversarial mean losses when both
// partitions exist, the adversarial mean loss alone otherwise.
func (t *Adversarial) backwardGradient(logits, cleanLogits, advLogits *tensor.Dense,
	cleanTargets, advTargets []int, split int, advWeight float64) (*tensor.Dense, error) {

	advCount := len(advTargets)
	if split == 0 {
		return model.LossGradient(advLogits, advTargets, 1/float64(advCount))
	}
	cleanGrad, err := model.LossGradient(cleanLogits, cleanTargets, (1-advWeight)/float64(split))
	if err != nil {
		return nil, err
	}
	advGrad, err := model.LossGradient(advLogits, advTargets, advWeight/float64(advCount))
	if err != nil {
		return nil, err
	}
	return model.ConcatRows(cleanGrad, advGrad)
}

func (t *Adversarial) emitTrainEpoch(acc *metrics.Accumulator, epoch int, combined *tensor.Dense, split int) error {
	if split > 0 {
		for _, name := range []string{"loss", "error", "confidence"} {
			if err := t.writer.AddScalar("train/"+name, epoch, acc.Mean("clean_"+name)); err != nil {
				return errors.Wrapf(err, "writing train/%s", name)
			}
		}
	}
	for _, name := range []string{"success", "loss", "error", "confidence"} {
		if err := t.writer.AddScalar("train/adversarial_"+name, epoch, acc.Mean("adversarial_"+name)); err != nil {
			return errors.Wrapf(err, "writing train/adversarial_%s", name)
		}
	}

	if split > 0 {
		if img, err := telemetry.Grid(combined, 0, min(sampleImages, split)); err == nil {
			if err := t.writer.AddImages("train/images", epoch, img); err != nil {
				return errors.Wrap(err, "writing train images")
			}
		}
	}
	if img, err := telemetry.Grid(combined, split, sampleImages); err == nil {
		if err := t.writer.AddImages("train/adversarial_images", epoch, img); err != nil {
			return errors.Wrap(err, "writing adversarial images")
		}
	}
	return nil
}

// Test runs the base trainer's clean test pass, then attacks up to maxBatches
// test batches and emits aggregate adversarial metrics.
func (t *Adversarial) Test(ctx context.Context, epoch int) error {
	if err := t.Normal.Test(ctx, epoch); err != nil {
		return err
	}

	t.model.SetTraining(false)
	acc := metrics.NewAccumulator()

	for b := 0; b < t.testset.Len() && b < t.maxBatches; b++ {
		batch, err := t.testset.Batch(ctx, b)
		if err != nil {
			return errors.Wrapf(err, "fetching test batch %d", b)
		}
		if batch.Size() == 0 {
			return errors.Errorf("degenerate test batch %d: no examples", b)
		}
		inputs := model.OnDevice(batch.Inputs, t.device)
		targets := batch.Targets

		t.objective.Set(targets)
		perturbations, objectives, err := t.attack.Run(t.model, inputs, t.objective)
		if err != nil {
			return errors.Wrapf(err, "attack on test batch %d", b)
		}
		acc.Append("objective", objectives...)

		adv, err := attack.AddPerturbation(inputs, perturbations)
		if err != nil {
			return errors.Wrapf(err, "perturbing test batch %d", b)
		}
		logits, err := t.model.Forward(adv)
		if err != nil {
			return errors.Wrapf(err, "forward on test batch %d", b)
		}
		if err := accumulateClassification(acc, "", logits, targets); err != nil {
			return errors.Wrapf(err, "metrics on test batch %d", b)
		}
		acc.Append("success", successes(logits, targets)...)

		norms, err := t.norm.Norm(perturbations)
		if err != nil {
			return errors.Wrapf(err, "norm on test batch %d", b)
		}
		acc.Append("norm", norms...)
	}

	for _, name := range []string{"loss", "error", "confidence", "success", "norm", "objective"} {
		if err := t.writer.AddScalar("test/adversarial_"+name, epoch+1, acc.Mean(name)); err != nil {
			return errors.Wrapf(err, "writing test/adversarial_%s", name)
		}
	}
	return nil
}

// Step advances the scheduler, then runs the adversarial training and test
// passes for the epoch. Failures propagate; there is no retry or rollback.
func (t *Adversarial) Step(ctx context.Context, epoch int) error {
	t.scheduler.Epoch(epoch)
	if err := t.Train(ctx, epoch); err != nil {
		return err
	}
	return t.Test(ctx, epoch)
}

// successes returns a {0,1} attack-success indicator per example: 1 when the
// predicted class disagrees with the target.
func successes(logits *tensor.Dense, targets []int) []float64 {
	preds := model.Predictions(logits)
	out := make([]float64, len(preds))
	for i, p := range preds {
		if p != targets[i] {
			out[i] = 1
		}
	}
	return out
}
