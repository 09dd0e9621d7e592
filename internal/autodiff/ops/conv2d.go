package ops

import "github.com/born-ml/digitnet/internal/tensor"

// Conv2DOp represents an NHWC 2D convolution.
//
// Forward:
//
//	output[n, oh, ow, co] = sum_{kh, kw, ci} input[n, oh*s+kh-p, ow*s+kw-p, ci] * kernel[kh, kw, ci, co]
//
// Backward:
//   - dL/dinput: the convolution transposed, applied to dL/doutput; skipped
//     when the input needs no gradient (the first layer's image batch)
//   - dL/dkernel: im2col(input)^T @ dL/doutput
type Conv2DOp struct {
	input     *tensor.RawTensor
	kernel    *tensor.RawTensor
	output    *tensor.RawTensor
	stride    int
	padding   tensor.Padding
	inputGrad bool
}

// NewConv2DOp creates a new Conv2DOp. inputGrad selects whether Backward
// computes the input gradient.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride int, padding tensor.Padding, inputGrad bool) *Conv2DOp {
	return &Conv2DOp{
		input:     input,
		kernel:    kernel,
		output:    output,
		stride:    stride,
		padding:   padding,
		inputGrad: inputGrad,
	}
}

// Inputs returns [input, kernel].
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the convolution output.
func (op *Conv2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the kernel gradient and, unless disabled, the input
// gradient. A skipped input gradient is nil.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	var gradInput *tensor.RawTensor
	if op.inputGrad {
		gradInput = backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	}
	gradKernel := backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	return []*tensor.RawTensor{gradInput, gradKernel}
}
