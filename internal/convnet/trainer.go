package convnet

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/born-ml/digitnet/internal/autodiff"
	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/optim"
	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/chewxy/math32"
)

// TrainerOptions configures a Trainer.
type TrainerOptions struct {
	// LearningRate overrides the network's configured rate when positive.
	LearningRate float32

	// SkipNonFinite rejects a step whose loss is NaN or infinite with
	// ErrNonFiniteLoss instead of applying its gradients.
	SkipNonFinite bool

	// Logger receives per-step debug records. Nil discards them.
	Logger *slog.Logger
}

// StepResult is the outcome of one training step. Both values come from the
// forward pass the gradients were taken on, so dropout was active.
type StepResult struct {
	Step     int64 // steps completed, including this one
	Loss     float32
	Accuracy float32
}

// Trainer fits a Network with Adam on softmax cross-entropy.
//
// The network must be assembled on an autodiff backend. The tape records only
// inside Step; evaluation and prediction through the same network run without
// recording.
type Trainer[B tensor.Backend] struct {
	net       *Network[*autodiff.AutodiffBackend[B]]
	backend   *autodiff.AutodiffBackend[B]
	optimizer optim.Optimizer

	step          int64
	skipNonFinite bool
	logger        *slog.Logger
}

// NewTrainer creates a trainer owning a fresh Adam optimizer over every
// network parameter.
func NewTrainer[B tensor.Backend](net *Network[*autodiff.AutodiffBackend[B]], opts TrainerOptions) *Trainer[B] {
	lr := net.config.LearningRate
	if opts.LearningRate > 0 {
		lr = opts.LearningRate
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	backend := net.Backend()
	backend.Tape().StopRecording()

	return &Trainer[B]{
		net:           net,
		backend:       backend,
		optimizer:     optim.NewAdam(net.Parameters(), optim.AdamConfig{LR: lr}, backend),
		skipNonFinite: opts.SkipNonFinite,
		logger:        logger,
	}
}

// Network returns the network being trained.
func (t *Trainer[B]) Network() *Network[*autodiff.AutodiffBackend[B]] {
	return t.net
}

// Optimizer returns the trainer's Adam optimizer.
func (t *Trainer[B]) Optimizer() optim.Optimizer {
	return t.optimizer
}

// StepCount returns the number of completed steps.
func (t *Trainer[B]) StepCount() int64 {
	return t.step
}

// Step runs forward, loss, backward and one Adam update on the batch with
// dropout keep probability keep.
//
// The update is all-or-nothing: on any error no parameter, moment or counter
// changes.
func (t *Trainer[B]) Step(b Batch, keep float32) (StepResult, error) {
	if keep <= 0 || keep > 1 {
		return StepResult{}, fmt.Errorf("convnet: keep probability %v outside (0, 1]", keep)
	}
	images, labels, err := batchTensors(t.net.config, b, t.backend)
	if err != nil {
		return StepResult{}, err
	}

	t.net.mu.Lock()
	defer t.net.mu.Unlock()

	tape := t.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	tape.Constant(images.Raw(), labels.Raw())
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	logits := t.net.trace(images, keep).Logits
	loss := nn.SoftmaxCrossEntropy(logits, labels)
	lossValue := loss.Item()

	if t.skipNonFinite && (math32.IsNaN(lossValue) || math32.IsInf(lossValue, 0)) {
		t.logger.Warn("skipping step", "step", t.step+1, "loss", lossValue)
		return StepResult{Step: t.step, Loss: lossValue}, fmt.Errorf("%w at step %d: %v", ErrNonFiniteLoss, t.step+1, lossValue)
	}

	grads := autodiff.Backward(loss, t.backend)
	if err := t.optimizer.Step(grads); err != nil {
		return StepResult{Step: t.step, Loss: lossValue}, fmt.Errorf("convnet: optimizer step %d: %w", t.step+1, err)
	}
	t.step++

	result := StepResult{
		Step:     t.step,
		Loss:     lossValue,
		Accuracy: nn.Accuracy(logits, labels),
	}
	t.logger.Debug("train step", "step", result.Step, "loss", result.Loss, "accuracy", result.Accuracy, "ops", tape.NumOps())
	return result, nil
}

// Evaluate measures the batch with dropout off and the tape paused.
func (t *Trainer[B]) Evaluate(b Batch) (Metrics, error) {
	tape := t.backend.Tape()
	if tape.IsRecording() {
		tape.StopRecording()
		defer tape.StartRecording()
	}
	return t.net.Evaluate(b)
}
