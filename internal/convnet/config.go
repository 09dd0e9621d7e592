package convnet

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Config fixes the topology and initialization of a Network.
type Config struct {
	ImageSize     int     // square input side, 28 for MNIST
	InputChannels int     // 1 for grayscale
	Classes       int     // output classes
	FilterSize    int     // convolution kernel side
	Conv1Channels int     // filters in the first convolution block
	Conv2Channels int     // filters in the second convolution block
	PoolSize      int     // max-pool window and stride
	Hidden        int     // units in the first dense block
	InitStddev    float64 // truncated-normal stddev for weights
	LearningRate  float32 // Adam step size
	Seed          uint64  // initialization and dropout seed
}

// DefaultConfig returns the MNIST network: 5x5 convolutions with 32 and 64
// filters, 2x2 pooling and a 1028-unit hidden layer.
func DefaultConfig() Config {
	return Config{
		ImageSize:     28,
		InputChannels: 1,
		Classes:       10,
		FilterSize:    5,
		Conv1Channels: 32,
		Conv2Channels: 64,
		PoolSize:      2,
		Hidden:        1028,
		InitStddev:    0.1,
		LearningRate:  1e-4,
		Seed:          1,
	}
}

// Validate checks that every dimension is positive.
func (c Config) Validate() error {
	dims := []struct {
		name  string
		value int
	}{
		{"image_size", c.ImageSize},
		{"input_channels", c.InputChannels},
		{"classes", c.Classes},
		{"filter_size", c.FilterSize},
		{"conv1_channels", c.Conv1Channels},
		{"conv2_channels", c.Conv2Channels},
		{"pool_size", c.PoolSize},
		{"hidden", c.Hidden},
	}
	for _, d := range dims {
		if d.value <= 0 {
			return fmt.Errorf("convnet: %s must be positive, got %d", d.name, d.value)
		}
	}
	if c.InitStddev <= 0 {
		return fmt.Errorf("convnet: init_stddev must be positive, got %v", c.InitStddev)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("convnet: learning_rate must be positive, got %v", c.LearningRate)
	}
	return nil
}

// InputSize is the length of one flattened image.
func (c Config) InputSize() int {
	return c.ImageSize * c.ImageSize * c.InputChannels
}

// Stage is the activation geometry after one convolution block.
type Stage struct {
	Height   int
	Width    int
	Channels int
}

// Size returns Height*Width*Channels.
func (s Stage) Size() int {
	return s.Height * s.Width * s.Channels
}

// ChannelPlan is the activation geometry derived from a Config.
type ChannelPlan struct {
	Conv1     Stage
	Conv2     Stage
	Flattened int // dense input width
	Hidden    int
	Classes   int
}

// ChannelPlan derives the stage shapes. Convolutions use stride 1 with SAME
// padding and keep the spatial size; each pool divides it by PoolSize,
// rounding up.
func (c Config) ChannelPlan() ChannelPlan {
	pool := func(in int) int {
		return tensor.MustSlidingWindow(in, c.PoolSize, c.PoolSize, tensor.PaddingSame).Out
	}

	side1 := pool(c.ImageSize)
	side2 := pool(side1)
	conv1 := Stage{Height: side1, Width: side1, Channels: c.Conv1Channels}
	conv2 := Stage{Height: side2, Width: side2, Channels: c.Conv2Channels}

	return ChannelPlan{
		Conv1:     conv1,
		Conv2:     conv2,
		Flattened: conv2.Size(),
		Hidden:    c.Hidden,
		Classes:   c.Classes,
	}
}
