package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawTensor_CloneIsDeep(t *testing.T) {
	r := MustNewRaw(Shape{2, 2}, Float32, CPU)
	copy(r.AsFloat32(), []float32{1, 2, 3, 4})

	c := r.Clone()
	c.AsFloat32()[0] = 42

	assert.Equal(t, float32(1), r.AsFloat32()[0])
	assert.Equal(t, float32(42), c.AsFloat32()[0])
}

func TestRawTensor_CopyFromKeepsIdentity(t *testing.T) {
	dst := MustNewRaw(Shape{3}, Float32, CPU)
	src := MustNewRaw(Shape{3}, Float32, CPU)
	copy(src.AsFloat32(), []float32{0.5, -1, 2})

	view := dst.AsFloat32()
	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, []float32{0.5, -1, 2}, view)

	assert.Error(t, dst.CopyFrom(MustNewRaw(Shape{1, 3}, Float32, CPU)))
	assert.Error(t, dst.CopyFrom(MustNewRaw(Shape{3}, Int32, CPU)))
}

func TestRawTensor_WithShape(t *testing.T) {
	r := MustNewRaw(Shape{2, 6}, Float32, CPU)
	r.AsFloat32()[7] = 3

	out, err := r.WithShape(Shape{3, 4})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 4}, out.Shape())
	assert.Equal(t, []int{4, 1}, out.Strides())
	assert.Equal(t, float32(3), out.AsFloat32()[7])

	_, err = r.WithShape(Shape{5})
	assert.Error(t, err)
}

func TestRawTensor_WrongDTypePanics(t *testing.T) {
	r := MustNewRaw(Shape{2}, Int32, CPU)
	assert.Panics(t, func() { r.AsFloat32() })
}
