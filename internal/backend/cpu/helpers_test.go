package cpu

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/stretchr/testify/require"
)

func randomRaw(t *testing.T, rng *rand.Rand, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = rng.Float32()*2 - 1
	}
	return r
}

func rawFrom(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func assertClose(t *testing.T, want, got []float32, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if d := float64(want[i] - got[i]); d > tol || d < -tol {
			t.Fatalf("element %d: want %v, got %v", i, want[i], got[i])
		}
	}
}
