package cpu

import (
	"testing"

	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/stretchr/testify/assert"
)

func TestAdd_SameShape(t *testing.T) {
	backend := NewWithWorkers(1)
	a := rawFrom(t, []float32{1, 2, 3, 4}, 2, 2)
	b := rawFrom(t, []float32{10, 20, 30, 40}, 2, 2)

	got := backend.Add(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, got.Shape())
	assert.Equal(t, []float32{11, 22, 33, 44}, got.AsFloat32())
}

func TestAdd_BiasBroadcast(t *testing.T) {
	backend := New()
	// [1, 2, 2, 3] + [3] as a convolution bias.
	x := rawFrom(t, make([]float32, 12), 1, 2, 2, 3)
	bias := rawFrom(t, []float32{0.1, 0.2, 0.3}, 3)

	got := backend.Add(x, bias).AsFloat32()
	for i, v := range got {
		assert.InDelta(t, []float32{0.1, 0.2, 0.3}[i%3], v, 1e-7)
	}
}

func TestMul_GeneralBroadcast(t *testing.T) {
	backend := New()
	// [2, 1] * [1, 3] -> [2, 3]
	a := rawFrom(t, []float32{2, 3}, 2, 1)
	b := rawFrom(t, []float32{1, 10, 100}, 1, 3)

	got := backend.Mul(a, b)
	assert.Equal(t, tensor.Shape{2, 3}, got.Shape())
	assert.Equal(t, []float32{2, 20, 200, 3, 30, 300}, got.AsFloat32())
}

func TestAdd_IncompatiblePanics(t *testing.T) {
	backend := New()
	a := rawFrom(t, make([]float32, 6), 2, 3)
	b := rawFrom(t, make([]float32, 4), 4)
	assert.Panics(t, func() { backend.Add(a, b) })
}

func TestReLU(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{-2, -0.5, 0, 1.5}, 4)

	assert.Equal(t, []float32{0, 0, 0, 1.5}, backend.ReLU(x).AsFloat32())
	// Inputs are never modified.
	assert.Equal(t, []float32{-2, -0.5, 0, 1.5}, x.AsFloat32())
}

func TestMatMulAndTranspose(t *testing.T) {
	backend := New()
	a := rawFrom(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := rawFrom(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	got := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, got.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, got.AsFloat32())

	tr := backend.Transpose(a)
	assert.Equal(t, tensor.Shape{3, 2}, tr.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, tr.AsFloat32())

	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestReshape(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := backend.Reshape(x, tensor.Shape{3, 2})
	assert.Equal(t, tensor.Shape{3, 2}, got.Shape())
	assert.Equal(t, x.AsFloat32(), got.AsFloat32())
	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{4}) })
}
