// Package ops defines the differentiable operations recorded by the gradient
// tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and computes input gradients from the output gradient:
//   - AddOp, MulOp: element-wise, with broadcast reduction
//   - MatMulOp, ReshapeOp: dense layer plumbing
//   - Conv2DOp, MaxPool2DOp, ReLUOp: convolutional stages
//   - SoftmaxCrossEntropyOp: the fused training loss
package ops

import "github.com/born-ml/digitnet/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The returned slice is parallel to Inputs(); nil entries mean no
	// gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
