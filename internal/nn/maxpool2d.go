package nn

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// MaxPool2D downsamples NHWC input by taking window maxima per channel.
//
// With a 2x2 window, stride 2 and SAME padding the spatial size halves,
// rounding up.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    tensor.Padding
	backend    B
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, padding tensor.Padding, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel %d or stride %d", kernelSize, stride))
	}
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride, padding: padding, backend: backend}
}

// Forward applies max pooling.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := m.backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride, m.padding)
	return tensor.New[float32](out, m.backend)
}

// Parameters returns an empty slice.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}
