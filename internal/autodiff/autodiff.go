// Package autodiff implements reverse-mode automatic differentiation as a
// backend decorator.
//
// AutodiffBackend wraps any tensor.Backend and records every differentiable
// operation on a GradientTape while recording is enabled. Gradients are keyed
// by the *tensor.RawTensor that flowed into the operation, so parameters must
// be passed to operations directly rather than through copies.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := x.MatMul(w).Add(b)
//	grads := autodiff.Backward(loss, backend)
package autodiff

import (
	"github.com/born-ml/digitnet/internal/autodiff/ops"
	"github.com/born-ml/digitnet/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(x, y)
	b.tape.Record(ops.NewAddOp(x, y, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(x, y)
	b.tape.Record(ops.NewMulOp(x, y, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(x, y)
	b.tape.Record(ops.NewMatMulOp(x, y, result))
	return result
}

// Transpose delegates to the wrapped backend without recording. Only
// MatMulOp.Backward transposes, and the tape is paused during backward.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Transpose(x)
}

// Reshape changes the shape of a tensor and records the operation.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(x, shape)
	b.tape.Record(ops.NewReshapeOp(x, result))
	return result
}

// Conv2D performs 2D convolution and records the operation. The input
// gradient is only computed for inputs the tape does not hold constant.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride int, padding tensor.Padding) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, padding)
	b.tape.Record(ops.NewConv2DOp(input, kernel, result, stride, padding, !b.tape.IsConstant(input)))
	return result
}

// Conv2DInputBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride int, padding tensor.Padding) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride int, padding tensor.Padding) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

// MaxPool2D performs max pooling and records the operation.
//
// While recording, the output and the winning positions come from one scan so
// the backward pass routes gradients to exactly the elements that won.
func (b *AutodiffBackend[B]) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int, padding tensor.Padding) *tensor.RawTensor {
	if !b.tape.IsRecording() {
		return b.inner.MaxPool2D(input, kernelSize, stride, padding)
	}
	result, indices := b.inner.MaxPool2DWithIndices(input, kernelSize, stride, padding)
	b.tape.Record(ops.NewMaxPool2DOp(input, result, indices))
	return result
}

// MaxPool2DWithIndices delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) MaxPool2DWithIndices(input *tensor.RawTensor, kernelSize, stride int, padding tensor.Padding) (*tensor.RawTensor, []int) {
	return b.inner.MaxPool2DWithIndices(input, kernelSize, stride, padding)
}

// MaxPool2DBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int) *tensor.RawTensor {
	return b.inner.MaxPool2DBackward(input, grad, maxIndices)
}

// ReLU applies max(x, 0) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, result))
	return result
}

// Softmax normalizes the last dimension.
//
// Softmax only feeds predictions and accuracy, never the loss, so it is not
// recorded. Training goes through SoftmaxCrossEntropy.
func (b *AutodiffBackend[B]) Softmax(x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Softmax(x)
}

// SoftmaxCrossEntropy computes the fused loss and records the operation.
func (b *AutodiffBackend[B]) SoftmaxCrossEntropy(logits, labels *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.SoftmaxCrossEntropy(logits, labels)
	b.tape.Record(ops.NewSoftmaxCrossEntropyOp(logits, labels, result))
	return result
}

// Argmax is not differentiable and is never recorded.
func (b *AutodiffBackend[B]) Argmax(x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Argmax(x)
}
