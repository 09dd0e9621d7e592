package nn

import (
	"math/rand/v2"

	"github.com/born-ml/digitnet/internal/tensor"
	"gonum.org/v1/gonum/stat/distuv"
)

// TruncationBound is the number of standard deviations beyond which
// TruncatedNormal re-draws a sample.
const TruncationBound = 2.0

// DefaultBias is the constant every bias starts at, keeping ReLU units active
// at the beginning of training.
const DefaultBias = 0.1

// NewRand returns a deterministic generator for initialization and dropout.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// TruncatedNormal fills a tensor with samples from N(0, stddev^2), re-drawing
// any sample whose magnitude exceeds TruncationBound standard deviations.
//
// Example:
//
//	kernel := nn.TruncatedNormal(tensor.Shape{5, 5, 1, 32}, 0.1, rng, backend)
func TruncatedNormal[B tensor.Backend](shape tensor.Shape, stddev float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	dist := distuv.Normal{Mu: 0, Sigma: stddev, Src: rng}
	limit := TruncationBound * stddev

	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		v := dist.Rand()
		for v > limit || v < -limit {
			v = dist.Rand()
		}
		data[i] = float32(v)
	}
	return t
}

// Constant creates a tensor with every element set to value.
func Constant[B tensor.Backend](shape tensor.Shape, value float32, backend B) *tensor.Tensor[float32, B] {
	return tensor.Full(shape, value, backend)
}
