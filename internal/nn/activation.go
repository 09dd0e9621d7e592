package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/digitnet/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns an empty slice.
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// Flatten reshapes [N, d1, d2, ...] to [N, d1*d2*...].
type Flatten[B tensor.Backend] struct{}

// NewFlatten creates a flatten layer.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return &Flatten[B]{}
}

// Forward flattens all but the batch dimension.
func (f *Flatten[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("Flatten.Forward: expected at least 2D input, got shape %v", shape))
	}
	return input.Reshape(shape[0], input.NumElements()/shape[0])
}

// Parameters returns an empty slice.
func (f *Flatten[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// Dropout zeroes each element with probability 1-keep and scales survivors by
// 1/keep, so the expected activation is unchanged.
//
// The keep probability is supplied per call: training passes a value below 1,
// evaluation passes 1.0, which makes the layer an exact identity.
type Dropout[B tensor.Backend] struct {
	rng     *rand.Rand
	backend B
}

// NewDropout creates a dropout layer drawing masks from rng.
func NewDropout[B tensor.Backend](rng *rand.Rand, backend B) *Dropout[B] {
	return &Dropout[B]{rng: rng, backend: backend}
}

// Forward applies dropout with the given keep probability in (0, 1].
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B], keep float32) *tensor.Tensor[float32, B] {
	if keep <= 0 || keep > 1 {
		panic(fmt.Sprintf("Dropout.Forward: keep probability %v outside (0, 1]", keep))
	}
	if keep == 1 {
		return input
	}

	mask := tensor.Zeros[float32](input.Shape(), d.backend)
	scale := 1 / keep
	data := mask.Data()
	for i := range data {
		if d.rng.Float32() < keep {
			data[i] = scale
		}
	}
	return input.Mul(mask)
}

// Parameters returns an empty slice.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}
