package ops

import "github.com/born-ml/digitnet/internal/tensor"

// MaxPool2DOp represents max pooling over NHWC windows.
//
// Each output element came from exactly one input position; the backward
// pass sends the gradient there and nowhere else.
type MaxPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	maxIndices []int
}

// NewMaxPool2DOp creates a new MaxPool2DOp from the forward-pass max positions.
func NewMaxPool2DOp(input, output *tensor.RawTensor, maxIndices []int) *MaxPool2DOp {
	return &MaxPool2DOp{input: input, output: output, maxIndices: maxIndices}
}

// Inputs returns [input].
func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the pooled output.
func (op *MaxPool2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward routes the output gradient to the recorded max positions.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices)}
}
