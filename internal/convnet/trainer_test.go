package convnet_test

import (
	"testing"

	"github.com/born-ml/digitnet/internal/convnet"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainer_StepReducesLoss(t *testing.T) {
	c := smallConfig()
	tr := newTrainer(t, c, convnet.TrainerOptions{})
	b := randomBatch(c, 8, 10)

	before, err := tr.Evaluate(b)
	require.NoError(t, err)

	var last convnet.StepResult
	for i := 0; i < 40; i++ {
		last, err = tr.Step(b, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(40), last.Step)
	assert.Equal(t, int64(40), tr.StepCount())
	assert.Equal(t, 40, tr.Optimizer().GetTimestep())

	after, err := tr.Evaluate(b)
	require.NoError(t, err)
	assert.Less(t, after.Loss, before.Loss)
}

func TestTrainer_StepLossMatchesEvaluate(t *testing.T) {
	c := smallConfig()
	tr := newTrainer(t, c, convnet.TrainerOptions{})
	b := randomBatch(c, 4, 11)

	m, err := tr.Evaluate(b)
	require.NoError(t, err)
	res, err := tr.Step(b, 1)
	require.NoError(t, err)

	// With dropout off the step's loss is the pre-update loss.
	assert.InDelta(t, m.Loss, res.Loss, 1e-6)
	assert.InDelta(t, m.Accuracy, res.Accuracy, 1e-6)
}

func TestTrainer_TapeIdleOutsideStep(t *testing.T) {
	c := smallConfig()
	tr := newTrainer(t, c, convnet.TrainerOptions{})
	b := randomBatch(c, 2, 12)

	_, err := tr.Step(b, 0.5)
	require.NoError(t, err)

	tape := tr.Network().Backend().Tape()
	assert.False(t, tape.IsRecording())
	assert.Zero(t, tape.NumOps())

	_, err = tr.Evaluate(b)
	require.NoError(t, err)
	assert.Zero(t, tape.NumOps())
}

func TestTrainer_RejectsBadInput(t *testing.T) {
	c := smallConfig()
	tr := newTrainer(t, c, convnet.TrainerOptions{})
	before := values(tr.Network().StateDict())

	b := randomBatch(c, 4, 13)
	b.Labels = b.Labels[:10]
	_, err := tr.Step(b, 0.5)
	assert.ErrorIs(t, err, convnet.ErrShapeMismatch)

	_, err = tr.Step(randomBatch(c, 4, 13), 0)
	assert.Error(t, err)
	_, err = tr.Step(randomBatch(c, 4, 13), 1.5)
	assert.Error(t, err)

	assert.Equal(t, before, values(tr.Network().StateDict()))
	assert.Zero(t, tr.StepCount())
}

func TestTrainer_SkipNonFinite(t *testing.T) {
	c := smallConfig()
	tr := newTrainer(t, c, convnet.TrainerOptions{SkipNonFinite: true})
	before := values(tr.Network().StateDict())

	b := randomBatch(c, 4, 14)
	b.Labels[3] = math32.NaN()

	res, err := tr.Step(b, 1)
	require.ErrorIs(t, err, convnet.ErrNonFiniteLoss)
	assert.True(t, math32.IsNaN(res.Loss))
	assert.Zero(t, tr.StepCount())
	assert.Zero(t, tr.Optimizer().GetTimestep())
	assert.Equal(t, before, values(tr.Network().StateDict()))

	_, err = tr.Step(randomBatch(c, 4, 14), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tr.StepCount())
}

func TestTrainer_LearningRate(t *testing.T) {
	c := smallConfig()
	assert.Equal(t, c.LearningRate, newTrainer(t, c, convnet.TrainerOptions{}).Optimizer().GetLR())
	assert.Equal(t, float32(0.5), newTrainer(t, c, convnet.TrainerOptions{LearningRate: 0.5}).Optimizer().GetLR())
	assert.InDelta(t, 1e-4, convnet.DefaultConfig().LearningRate, 1e-12)
}
