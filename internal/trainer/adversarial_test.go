package trainer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"advforge/internal/attack"
	"advforge/internal/dataset"
	"advforge/internal/model"
	"advforge/internal/optim"
	"advforge/internal/telemetry"
)

// spyAttack delegates to Identity while recording every Run call.
type spyAttack struct {
	inner *attack.Identity
	runs  int
	rows  []int
}

func newSpyAttack() *spyAttack {
	return &spyAttack{inner: attack.NewIdentity()}
}

func (a *spyAttack) Run(m model.Classifier, inputs *tensor.Dense, obj attack.Objective) (*tensor.Dense, []float64, error) {
	a.runs++
	a.rows = append(a.rows, inputs.Shape()[0])
	return a.inner.Run(m, inputs, obj)
}

func (a *spyAttack) Norm(perturbations *tensor.Dense) ([]float64, error) {
	return a.inner.Norm(perturbations)
}

// normlessAttack satisfies Attack but not Normer.
type normlessAttack struct{}

func (normlessAttack) Run(m model.Classifier, inputs *tensor.Dense, obj attack.Objective) (*tensor.Dense, []float64, error) {
	return nil, nil, nil
}

// uniformSource serves batches whose examples are all the same 2x2 image
// with the same target, so clean and adversarial partitions are statistically
// identical under the identity attack.
func uniformSource(t *testing.T, batches, examples int) *dataset.SliceSource {
	t.Helper()
	inputs := make([]float64, 0, examples*4)
	targets := make([]int, 0, examples)
	for i := 0; i < examples; i++ {
		inputs = append(inputs, 0.3, 0.6, 0.3, 0.6)
		targets = append(targets, 0)
	}
	out := make([]model.Batch, 0, batches)
	for i := 0; i < batches; i++ {
		out = append(out, makeBatch(t, inputs, 4, targets))
	}
	return dataset.NewSliceSource(out)
}

func newAdvTrainer(t *testing.T, atk attack.Attack, fraction float64,
	trainset, testset dataset.Source, opt optim.Optimizer) (*Adversarial, *telemetry.Memory) {

	t.Helper()
	w := telemetry.NewMemory()
	tr, err := NewAdversarial(model.NewLinear(2, 4, 1), trainset, testset,
		opt, nil, atk, attack.NewUntargeted(), fraction, w, model.CPU)
	require.NoError(t, err)
	return tr, w
}

func TestNewAdversarialValidation(t *testing.T) {
	m := model.NewLinear(2, 4, 1)
	src := uniformSource(t, 1, 4)
	w := telemetry.NewMemory()
	opt := frozenOptimizer{}
	obj := attack.NewUntargeted()

	for _, fraction := range []float64{0, -0.5, 1.01} {
		_, err := NewAdversarial(m, src, src, opt, nil, attack.NewIdentity(), obj, fraction, w, model.CPU)
		assert.Error(t, err, "fraction %g", fraction)
	}
	_, err := NewAdversarial(m, src, src, opt, nil, attack.NewIdentity(), obj, 1, w, model.CPU)
	assert.NoError(t, err, "fraction 1 is the all-adversarial edge")

	_, err = NewAdversarial(m, src, src, opt, nil, nil, obj, 0.5, w, model.CPU)
	assert.Error(t, err, "nil attack")

	_, err = NewAdversarial(m, src, src, opt, nil, attack.NewIdentity(), nil, 0.5, w, model.CPU)
	assert.Error(t, err, "nil objective")

	_, err = NewAdversarial(m, src, src, opt, nil, normlessAttack{}, obj, 0.5, w, model.CPU)
	assert.Error(t, err, "attack without a norm")
}

func TestNewAdversarialWritesConfig(t *testing.T) {
	src := uniformSource(t, 1, 4)
	_, w := newAdvTrainer(t, attack.NewFGSM(0.1), 0.5, src, src, frozenOptimizer{})

	texts := map[string]string{}
	for _, rec := range w.Texts {
		texts[rec.Tag] = rec.Text
	}
	assert.Equal(t, "*attack.FGSM", texts["config/attack"])
	assert.Equal(t, "*attack.Untargeted", texts["config/objective"])
	assert.Equal(t, "0.5", texts["config/fraction"])
}

func TestIdentityAttackMatchesCleanMetrics(t *testing.T) {
	src := uniformSource(t, 2, 10)
	tr, w := newAdvTrainer(t, attack.NewIdentity(), 0.5, src, src, frozenOptimizer{})

	require.NoError(t, tr.Step(context.Background(), 0))

	cleanLoss := w.ScalarSeries("train/loss")
	advLoss := w.ScalarSeries("train/adversarial_loss")
	require.Len(t, cleanLoss, 1)
	require.Len(t, advLoss, 1)
	assert.InDelta(t, cleanLoss[0], advLoss[0], 1e-12,
		"identity perturbations leave both partitions identical")

	cleanErr := w.ScalarSeries("train/error")
	advErr := w.ScalarSeries("train/adversarial_error")
	require.Len(t, cleanErr, 1)
	require.Len(t, advErr, 1)
	assert.InDelta(t, cleanErr[0], advErr[0], 1e-12)

	// Attack success mirrors the error indicator on an identity attack.
	success := w.ScalarSeries("train/adversarial_success")
	require.Len(t, success, 1)
	assert.InDelta(t, advErr[0], success[0], 1e-12)

	// Adversarial test metrics match the clean test pass for the same reason.
	assert.InDelta(t, w.ScalarSeries("test/loss")[0],
		w.ScalarSeries("test/adversarial_loss")[0], 1e-12)
	norms := w.ScalarSeries("test/adversarial_norm")
	require.Len(t, norms, 1)
	assert.Zero(t, norms[0])
}

func TestFullAdversarialFractionSkipsCleanMetrics(t *testing.T) {
	src := uniformSource(t, 1, 6)
	tr, w := newAdvTrainer(t, attack.NewIdentity(), 1, src, src, frozenOptimizer{})

	require.NoError(t, tr.Train(context.Background(), 0))

	assert.Empty(t, w.ScalarSeries("train/loss"))
	assert.Empty(t, w.ScalarSeries("train/error"))
	assert.Empty(t, w.ScalarSeries("train/confidence"))
	for _, tag := range []string{"train/adversarial_loss", "train/adversarial_error",
		"train/adversarial_confidence", "train/adversarial_success"} {
		assert.Len(t, w.ScalarSeries(tag), 1, tag)
	}

	var tags []string
	for _, rec := range w.Images {
		tags = append(tags, rec.Tag)
	}
	assert.NotContains(t, tags, "train/images")
	assert.Contains(t, tags, "train/adversarial_images")
}

func TestSplitIndexUsesCleanComplement(t *testing.T) {
	cases := []struct {
		fraction float64
		examples int
		advRows  int
	}{
		{0.5, 10, 5},
		{0.3, 10, 3},
		{0.25, 10, 3},
		{1, 7, 7},
	}
	for _, tc := range cases {
		src := uniformSource(t, 1, tc.examples)
		spy := newSpyAttack()
		tr, _ := newAdvTrainer(t, spy, tc.fraction, src, src, frozenOptimizer{})

		require.NoError(t, tr.Train(context.Background(), 0))
		require.Equal(t, 1, spy.runs)
		assert.Equal(t, tc.advRows, spy.rows[0],
			"fraction %g of %d examples", tc.fraction, tc.examples)
	}
}

func TestTestPassCapsAttackedBatches(t *testing.T) {
	trainset := uniformSource(t, 1, 4)

	for _, tc := range []struct{ batches, attacked int }{
		{15, 10},
		{3, 3},
	} {
		testset := uniformSource(t, tc.batches, 4)
		spy := newSpyAttack()
		tr, w := newAdvTrainer(t, spy, 0.5, trainset, testset, frozenOptimizer{})

		require.NoError(t, tr.Test(context.Background(), 0))
		assert.Equal(t, tc.attacked, spy.runs, "%d test batches", tc.batches)

		// Clean test metrics still cover every batch; the cap only bounds
		// the attacked pass.
		require.Len(t, w.ScalarSeries("test/loss"), 1)
	}
}

func TestAdversarialScalarSteps(t *testing.T) {
	src := uniformSource(t, 1, 4)
	tr, w := newAdvTrainer(t, attack.NewIdentity(), 0.5, src, src, frozenOptimizer{})

	require.NoError(t, tr.Step(context.Background(), 3))

	for _, rec := range w.Scalars {
		switch rec.Tag {
		case "train/loss", "train/adversarial_loss":
			assert.Equal(t, 3, rec.Step, rec.Tag)
		case "test/loss", "test/adversarial_loss", "test/adversarial_objective":
			assert.Equal(t, 4, rec.Step, rec.Tag)
		}
	}
}

func TestTrainIsRepeatableWithFrozenOptimizer(t *testing.T) {
	src := uniformSource(t, 3, 8)
	tr, w := newAdvTrainer(t, attack.NewFGSM(0.05), 0.5, src, src, frozenOptimizer{})

	require.NoError(t, tr.Train(context.Background(), 0))
	require.NoError(t, tr.Train(context.Background(), 1))

	for _, tag := range []string{"train/loss", "train/adversarial_loss",
		"train/adversarial_success"} {
		series := w.ScalarSeries(tag)
		require.Len(t, series, 2, tag)
		assert.Equal(t, series[0], series[1],
			"%s should repeat when the optimizer never moves", tag)
	}
}

func TestAdversarialTrainingReducesAdversarialLoss(t *testing.T) {
	src := separableSource(t, 4)
	w := telemetry.NewMemory()
	tr, err := NewAdversarial(model.NewLinear(2, 4, 1), src, src,
		optim.NewSGD(0.5, 0), nil, attack.NewFGSM(0.05), attack.NewUntargeted(),
		0.5, w, model.CPU)
	require.NoError(t, err)

	for epoch := 0; epoch < 6; epoch++ {
		require.NoError(t, tr.Step(context.Background(), epoch))
	}
	losses := w.ScalarSeries("train/adversarial_loss")
	require.Len(t, losses, 6)
	assert.Less(t, losses[5], losses[0])
}

func TestSuccessIndicatorIsBinary(t *testing.T) {
	m := model.NewLinear(2, 4, 1)
	logits, err := m.Forward(tensor.New(tensor.WithShape(3, 4),
		tensor.WithBacking([]float64{
			0.1, 0.2, 0.3, 0.4,
			0.9, 0.8, 0.7, 0.6,
			0.5, 0.5, 0.5, 0.5,
		})))
	require.NoError(t, err)

	for _, v := range successes(logits, []int{0, 1, 0}) {
		assert.True(t, v == 0 || v == 1, "indicator %f", v)
	}
}
