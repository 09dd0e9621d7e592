// Package convnet assembles the two-block convolutional digit classifier and
// provides its training step, evaluation, checkpointing and graph export.
//
// Architecture (NHWC):
//
//	Input:  [N, 784] -> reshape [N, 28, 28, 1]
//	conv1:  5x5, 1 -> 32, ReLU, 2x2 max pool   -> [N, 14, 14, 32]
//	conv2:  5x5, 32 -> 64, ReLU, 2x2 max pool  -> [N, 7, 7, 64]
//	fc1:    flatten 3136 -> 1028, ReLU, dropout
//	fc2:    1028 -> 10 logits
//	Output: softmax(logits)
//
// A Network is assembled once and then executed any number of times. The
// training step, evaluation and prediction all call the same Forward.
package convnet

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
)

// ConvBlock is convolution, ReLU and max pooling.
type ConvBlock[B tensor.Backend] struct {
	conv *nn.Conv2D[B]
	relu *nn.ReLU[B]
	pool *nn.MaxPool2D[B]
}

// NewConvBlock creates a SAME-padded stride-1 convolution followed by ReLU and
// a SAME-padded pool of the given size.
func NewConvBlock[B tensor.Backend](name string, in, out, filter, pool int, stddev float64, rng *rand.Rand, backend B) *ConvBlock[B] {
	return &ConvBlock[B]{
		conv: nn.NewConv2D(name, in, out, filter, 1, tensor.PaddingSame, stddev, rng, backend),
		relu: nn.NewReLU[B](),
		pool: nn.NewMaxPool2D(pool, pool, tensor.PaddingSame, backend),
	}
}

// Forward applies the block.
func (b *ConvBlock[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return b.pool.Forward(b.relu.Forward(b.conv.Forward(input)))
}

// Parameters returns [weight, bias].
func (b *ConvBlock[B]) Parameters() []*nn.Parameter[B] {
	return b.conv.Parameters()
}

// DenseBlock is a fully connected layer with an optional ReLU.
type DenseBlock[B tensor.Backend] struct {
	linear *nn.Linear[B]
	relu   *nn.ReLU[B]
}

// NewDenseBlock creates a dense block. The final classifier block is built
// with rectify=false so it emits raw logits.
func NewDenseBlock[B tensor.Backend](name string, in, out int, rectify bool, stddev float64, rng *rand.Rand, backend B) *DenseBlock[B] {
	d := &DenseBlock[B]{linear: nn.NewLinear(name, in, out, stddev, rng, backend)}
	if rectify {
		d.relu = nn.NewReLU[B]()
	}
	return d
}

// Forward applies the block.
func (d *DenseBlock[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := d.linear.Forward(input)
	if d.relu != nil {
		out = d.relu.Forward(out)
	}
	return out
}

// Parameters returns [weight, bias].
func (d *DenseBlock[B]) Parameters() []*nn.Parameter[B] {
	return d.linear.Parameters()
}

// Trace holds the intermediate activations of one forward pass.
type Trace[B tensor.Backend] struct {
	Image  *tensor.Tensor[float32, B] // [N, 28, 28, 1]
	Conv1  *tensor.Tensor[float32, B] // [N, 14, 14, 32]
	Conv2  *tensor.Tensor[float32, B] // [N, 7, 7, 64]
	Hidden *tensor.Tensor[float32, B] // [N, 1028] after dropout
	Logits *tensor.Tensor[float32, B] // [N, 10]
}

// Network owns every trainable parameter of the classifier.
//
// mu serializes forward passes, training steps and checkpoint I/O against the
// same parameter set; the dropout generator is not safe for concurrent use.
type Network[B tensor.Backend] struct {
	mu sync.Mutex

	config Config
	plan   ChannelPlan

	conv1   *ConvBlock[B]
	conv2   *ConvBlock[B]
	flatten *nn.Flatten[B]
	fc1     *DenseBlock[B]
	dropout *nn.Dropout[B]
	fc2     *DenseBlock[B]

	backend B
}

// NewNetwork assembles a network, drawing initial weights from a generator
// seeded with config.Seed.
func NewNetwork[B tensor.Backend](config Config, backend B) (*Network[B], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	plan := config.ChannelPlan()
	rng := nn.NewRand(config.Seed)
	std := config.InitStddev

	return &Network[B]{
		config:  config,
		plan:    plan,
		conv1:   NewConvBlock("conv1", config.InputChannels, config.Conv1Channels, config.FilterSize, config.PoolSize, std, rng, backend),
		conv2:   NewConvBlock("conv2", config.Conv1Channels, config.Conv2Channels, config.FilterSize, config.PoolSize, std, rng, backend),
		flatten: nn.NewFlatten[B](),
		fc1:     NewDenseBlock("fc1", plan.Flattened, plan.Hidden, true, std, rng, backend),
		dropout: nn.NewDropout(nn.NewRand(config.Seed+1), backend),
		fc2:     NewDenseBlock("fc2", plan.Hidden, plan.Classes, false, std, rng, backend),
		backend: backend,
	}, nil
}

// Config returns the assembly configuration.
func (n *Network[B]) Config() Config {
	return n.config
}

// Plan returns the derived activation geometry.
func (n *Network[B]) Plan() ChannelPlan {
	return n.plan
}

// Backend returns the computation backend.
func (n *Network[B]) Backend() B {
	return n.backend
}

// Parameters returns conv1, conv2, fc1 and fc2 weights and biases in order.
func (n *Network[B]) Parameters() []*nn.Parameter[B] {
	return nn.CollectParameters[B](n.conv1, n.conv2, n.fc1, n.fc2)
}

// StateDict maps parameter names to their live raw tensors.
func (n *Network[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.StateDict(n.Parameters())
}

// NumParameters counts trainable scalars.
func (n *Network[B]) NumParameters() int {
	total := 0
	for _, p := range n.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}

// Forward maps a [N, 784] image batch to [N, 10] logits. keep is the dropout
// keep probability in (0, 1]; pass 1 for inference.
func (n *Network[B]) Forward(images *tensor.Tensor[float32, B], keep float32) *tensor.Tensor[float32, B] {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trace(images, keep).Logits
}

// Trace runs Forward and returns every intermediate activation.
func (n *Network[B]) Trace(images *tensor.Tensor[float32, B], keep float32) Trace[B] {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trace(images, keep)
}

// Predict returns class probabilities for a [N, 784] batch with dropout off.
func (n *Network[B]) Predict(images *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return n.Forward(images, 1).Softmax()
}

func (n *Network[B]) trace(images *tensor.Tensor[float32, B], keep float32) Trace[B] {
	shape := images.Shape()
	if len(shape) != 2 || shape[1] != n.config.InputSize() {
		panic(fmt.Sprintf("Network.Forward: expected [N, %d] images, got %v", n.config.InputSize(), shape))
	}
	c := n.config

	var t Trace[B]
	t.Image = images.Reshape(shape[0], c.ImageSize, c.ImageSize, c.InputChannels)
	t.Conv1 = n.conv1.Forward(t.Image)
	t.Conv2 = n.conv2.Forward(t.Conv1)
	t.Hidden = n.dropout.Forward(n.fc1.Forward(n.flatten.Forward(t.Conv2)), keep)
	t.Logits = n.fc2.Forward(t.Hidden)
	return t
}

// String returns a summary of the architecture.
func (n *Network[B]) String() string {
	c, p := n.config, n.plan
	return fmt.Sprintf(`Network(
  conv1: Conv2D(%d->%d, %dx%d, SAME) ReLU MaxPool(%d) -> %dx%dx%d
  conv2: Conv2D(%d->%d, %dx%d, SAME) ReLU MaxPool(%d) -> %dx%dx%d
  fc1:   Linear(%d->%d) ReLU Dropout
  fc2:   Linear(%d->%d)
)`,
		c.InputChannels, c.Conv1Channels, c.FilterSize, c.FilterSize, c.PoolSize, p.Conv1.Height, p.Conv1.Width, p.Conv1.Channels,
		c.Conv1Channels, c.Conv2Channels, c.FilterSize, c.FilterSize, c.PoolSize, p.Conv2.Height, p.Conv2.Width, p.Conv2.Channels,
		p.Flattened, p.Hidden,
		p.Hidden, p.Classes,
	)
}
