package autodiff_test

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/digitnet/internal/autodiff"
	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendT = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func randomTensor(t *testing.T, rng *rand.Rand, b backendT, scale float32, shape ...int) *tensor.Tensor[float32, backendT] {
	t.Helper()
	x := tensor.Zeros[float32](tensor.Shape(shape), b)
	for i := range x.Data() {
		x.Data()[i] = (rng.Float32()*2 - 1) * scale
	}
	return x
}

func oneHot(t *testing.T, b backendT, classes int, labels ...int) *tensor.Tensor[float32, backendT] {
	t.Helper()
	y := tensor.Zeros[float32](tensor.Shape{len(labels), classes}, b)
	for i, l := range labels {
		y.Data()[i*classes+l] = 1
	}
	return y
}

// checkGradient compares the analytic gradient of loss() with respect to
// param against central differences on every element.
func checkGradient(t *testing.T, b backendT, param *tensor.Tensor[float32, backendT], loss func() *tensor.Tensor[float32, backendT]) {
	t.Helper()
	const eps, tol = 1e-2, 2e-3

	tape := b.Tape()
	tape.Clear()
	tape.StartRecording()
	grads := autodiff.Backward(loss(), b)
	tape.StopRecording()
	tape.Clear()

	analytic, ok := grads[param.Raw()]
	require.True(t, ok, "no gradient reached the parameter")
	require.Equal(t, param.Shape(), analytic.Shape())

	data := param.Data()
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		plus := loss().Item()
		data[i] = orig - eps
		minus := loss().Item()
		data[i] = orig

		numeric := (plus - minus) / (2 * eps)
		assert.InDelta(t, numeric, analytic.AsFloat32()[i], tol, "element %d", i)
	}
}

func TestGradientCheck_DenseSoftmaxCrossEntropy(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	b := autodiff.New(cpu.New())

	x := randomTensor(t, rng, b, 1, 4, 5)
	w := randomTensor(t, rng, b, 0.5, 5, 3)
	bias := randomTensor(t, rng, b, 0.1, 3)
	labels := oneHot(t, b, 3, 0, 2, 1, 2)

	loss := func() *tensor.Tensor[float32, backendT] {
		logits := x.MatMul(w).Add(bias)
		return tensor.New[float32](b.SoftmaxCrossEntropy(logits.Raw(), labels.Raw()), b)
	}

	checkGradient(t, b, w, loss)
	checkGradient(t, b, bias, loss)
	checkGradient(t, b, x, loss)
}

func TestGradientCheck_ConvReshapeDense(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 9))
	b := autodiff.New(cpu.NewWithWorkers(2))

	images := randomTensor(t, rng, b, 1, 2, 4, 4, 1)
	kernel := randomTensor(t, rng, b, 0.3, 3, 3, 1, 2)
	w := randomTensor(t, rng, b, 0.3, 4*4*2, 3)
	labels := oneHot(t, b, 3, 1, 0)

	loss := func() *tensor.Tensor[float32, backendT] {
		conv := tensor.New[float32](b.Conv2D(images.Raw(), kernel.Raw(), 1, tensor.PaddingSame), b)
		logits := conv.Reshape(2, 4*4*2).MatMul(w)
		return tensor.New[float32](b.SoftmaxCrossEntropy(logits.Raw(), labels.Raw()), b)
	}

	checkGradient(t, b, kernel, loss)
	checkGradient(t, b, images, loss)
}
