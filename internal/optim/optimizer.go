// Package optim implements the optimizers that train the network.
//
// Example usage:
//
//	optimizer := optim.NewAdam(params, optim.AdamConfig{LR: 1e-4}, backend)
//
//	backend.Tape().StartRecording()
//	loss := model.Loss(images, labels)
//	grads := autodiff.Backward(loss, backend)
//	if err := optimizer.Step(grads); err != nil {
//	    return err
//	}
package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
)

var (
	// ErrMissingGradient is returned when a parameter has no gradient in the
	// map passed to Step.
	ErrMissingGradient = errors.New("optim: missing gradient")

	// ErrGradientShape is returned when a gradient's shape differs from its
	// parameter's.
	ErrGradientShape = errors.New("optim: gradient shape mismatch")

	// ErrInvalidState is returned by LoadStateDict for incomplete or
	// mis-shaped optimizer state.
	ErrInvalidState = errors.New("optim: invalid state")
)

// Optimizer updates parameters from a gradient map produced by
// autodiff.Backward.
type Optimizer interface {
	// Step applies one update to every parameter. It either updates all
	// parameters or, on error, none of them.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor) error

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR replaces the learning rate for subsequent steps.
	SetLR(lr float32)

	// GetTimestep returns the number of completed steps.
	GetTimestep() int

	// StateDict returns a copy of the optimizer state keyed for
	// serialization, without the parameters themselves.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores state produced by StateDict. On error the
	// optimizer is unchanged.
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// gatherGradients looks up and validates the gradient of every parameter
// before any of them is touched.
func gatherGradients[B tensor.Backend](params []*nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	out := make([]*tensor.RawTensor, len(params))
	for i, p := range params {
		g, ok := grads[p.Raw()]
		if !ok || g == nil {
			return nil, fmt.Errorf("%w for %s", ErrMissingGradient, p.Name())
		}
		if !g.Shape().Equal(p.Raw().Shape()) {
			return nil, fmt.Errorf("%w for %s: got %v, want %v", ErrGradientShape, p.Name(), g.Shape(), p.Raw().Shape())
		}
		out[i] = g
	}
	return out, nil
}
