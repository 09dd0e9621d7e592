package autodiff

import (
	"github.com/born-ml/digitnet/internal/autodiff/ops"
	"github.com/born-ml/digitnet/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	gradients := tape.Backward(outputGrad, backend)
type GradientTape struct {
	operations []ops.Operation
	recording  bool
	constants  map[*tensor.RawTensor]struct{}
}

// NewGradientTape creates a new, non-recording gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 32),
		constants:  make(map[*tensor.RawTensor]struct{}),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape if recording is enabled. An operation
// whose inputs are all constant produces a constant.
func (t *GradientTape) Record(op ops.Operation) {
	if !t.recording {
		return
	}
	t.operations = append(t.operations, op)
	for _, input := range op.Inputs() {
		if !t.IsConstant(input) {
			return
		}
	}
	t.constants[op.Output()] = struct{}{}
}

// Constant marks tensors that need no gradient, such as an input batch.
// Marks last until Clear.
func (t *GradientTape) Constant(ts ...*tensor.RawTensor) {
	for _, raw := range ts {
		t.constants[raw] = struct{}{}
	}
}

// IsConstant reports whether raw was marked with Constant or derived only
// from constants.
func (t *GradientTape) IsConstant(raw *tensor.RawTensor) bool {
	_, ok := t.constants[raw]
	return ok
}

// Clear removes all recorded operations and constant marks. Recording state
// is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
	clear(t.constants)
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward walks the tape in reverse, seeding the last operation's output
// with outputGrad, and returns the accumulated gradient of every tensor that
// gradient reached. Tensors used more than once get the sum of their
// contributions.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	// Gradient computations must not land on the tape.
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads[t.operations[len(t.operations)-1].Output()] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outGrad, ok := grads[op.Output()]
		if !ok || t.IsConstant(op.Output()) {
			continue
		}
		inputGrads := op.Backward(outGrad, backend)
		for j, input := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				grads[input] = backend.Add(existing, inputGrads[j])
			} else {
				grads[input] = inputGrads[j]
			}
		}
	}

	return grads
}
