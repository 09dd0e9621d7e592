package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Conv2D is a 2D convolutional layer over NHWC input.
//
// Input shape:  [batch, height, width, in_channels]
// Weight shape: [kernel_h, kernel_w, in_channels, out_channels]
// Bias shape:   [out_channels]
// Output shape: [batch, out_h, out_w, out_channels]
//
// With SAME padding out_h = ceil(height / stride).
//
// Example:
//
//	conv := nn.NewConv2D("conv1", 1, 32, 5, 1, tensor.PaddingSame, 0.1, rng, backend)
//	out := conv.Forward(images) // [N, 28, 28, 1] -> [N, 28, 28, 32]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     tensor.Padding

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewConv2D creates a square-kernel convolution whose weights are drawn from a
// truncated normal with the given stddev and whose biases start at DefaultBias.
// Parameters are named name+".weight" and name+".bias".
func NewConv2D[B tensor.Backend](
	name string,
	inChannels, outChannels int,
	kernelSize, stride int,
	padding tensor.Padding,
	stddev float64,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel %d or stride %d", kernelSize, stride))
	}

	weight := TruncatedNormal(tensor.Shape{kernelSize, kernelSize, inChannels, outChannels}, stddev, rng, backend)
	bias := Constant(tensor.Shape{outChannels}, DefaultBias, backend)

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
		backend:     backend,
	}
}

// Forward convolves the input and adds the per-channel bias.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("Conv2D.Forward: expected 4D input [N,H,W,C], got shape %v", shape))
	}
	if shape[3] != c.inChannels {
		panic(fmt.Sprintf("Conv2D.Forward: expected %d input channels, got %d", c.inChannels, shape[3]))
	}

	out := c.backend.Conv2D(input.Raw(), c.weight.Raw(), c.stride, c.padding)
	return tensor.New[float32](out, c.backend).Add(c.bias.Tensor())
}

// Parameters returns [weight, bias].
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// OutChannels returns the number of filters.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// KernelSize returns the kernel's spatial extent.
func (c *Conv2D[B]) KernelSize() int {
	return c.kernelSize
}
