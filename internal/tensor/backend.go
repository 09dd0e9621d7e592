package tensor

// Backend defines the operations a compute backend provides to the layers.
//
// Image tensors use NHWC layout ([batch, height, width, channels]) and
// convolution kernels use [kernel_h, kernel_w, in_channels, out_channels].
// Implementations panic on shape errors: a malformed shape at this level is a
// wiring bug in the caller.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Transpose swaps the two axes of a 2D tensor.
	Transpose(x *RawTensor) *RawTensor

	// Reshape returns the same elements under a new shape.
	Reshape(x *RawTensor, shape Shape) *RawTensor

	// Conv2D convolves input [N, H, W, C_in] with kernel [K_h, K_w, C_in, C_out].
	Conv2D(input, kernel *RawTensor, stride int, padding Padding) *RawTensor
	// Conv2DInputBackward returns dL/dinput given dL/doutput.
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride int, padding Padding) *RawTensor
	// Conv2DKernelBackward returns dL/dkernel given dL/doutput.
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride int, padding Padding) *RawTensor

	// MaxPool2D takes the maximum over kernelSize x kernelSize windows of an
	// NHWC input. Padded cells never win the maximum.
	MaxPool2D(input *RawTensor, kernelSize, stride int, padding Padding) *RawTensor
	// MaxPool2DWithIndices is MaxPool2D that also returns, for every output
	// element, the flat input index that produced it.
	MaxPool2DWithIndices(input *RawTensor, kernelSize, stride int, padding Padding) (*RawTensor, []int)
	// MaxPool2DBackward routes dL/doutput to the recorded max positions.
	MaxPool2DBackward(input, grad *RawTensor, maxIndices []int) *RawTensor

	// ReLU computes max(x, 0) element-wise.
	ReLU(x *RawTensor) *RawTensor

	// Softmax normalizes the last dimension into a probability distribution.
	Softmax(x *RawTensor) *RawTensor

	// SoftmaxCrossEntropy returns the scalar mean over the batch of
	// -sum(labels * log_softmax(logits)) for [N, C] logits and labels.
	SoftmaxCrossEntropy(logits, labels *RawTensor) *RawTensor

	// Argmax returns int32 indices of the maximum along the last dimension.
	Argmax(x *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
