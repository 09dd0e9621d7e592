package optim_test

import (
	"testing"

	"github.com/born-ml/digitnet/internal/autodiff"
	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/optim"
	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendT = *autodiff.AutodiffBackend[*cpu.CPUBackend]

var _ optim.Optimizer = (*optim.Adam[backendT])(nil)

func newParam(t *testing.T, b backendT, name string, values ...float32) *nn.Parameter[backendT] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, b)
	require.NoError(t, err)
	return nn.NewParameter(name, x)
}

func gradOf(t *testing.T, values ...float32) *tensor.RawTensor {
	t.Helper()
	g, err := tensor.NewRaw(tensor.Shape{len(values)}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(g.AsFloat32(), values)
	return g
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := newParam(t, backend, "w", 1, -1)
	adam := optim.NewAdam([]*nn.Parameter[backendT]{p}, optim.AdamConfig{LR: 0.01}, backend)

	// After bias correction the first update is lr * sign(grad).
	err := adam.Step(map[*tensor.RawTensor]*tensor.RawTensor{p.Raw(): gradOf(t, 0.5, -3)})
	require.NoError(t, err)

	data := p.Tensor().Data()
	assert.InDelta(t, 0.99, data[0], 1e-6)
	assert.InDelta(t, -0.99, data[1], 1e-6)
	assert.Equal(t, 1, adam.GetTimestep())
}

func TestAdam_Defaults(t *testing.T) {
	backend := autodiff.New(cpu.New())
	adam := optim.NewAdam([]*nn.Parameter[backendT]{}, optim.AdamConfig{}, backend)
	assert.InDelta(t, 1e-4, adam.GetLR(), 1e-12)

	adam.SetLR(0.5)
	assert.InDelta(t, 0.5, adam.GetLR(), 1e-12)
}

func TestAdam_StepIsAtomic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := newParam(t, backend, "a", 1)
	b := newParam(t, backend, "b", 2, 3)
	adam := optim.NewAdam([]*nn.Parameter[backendT]{a, b}, optim.AdamConfig{}, backend)

	t.Run("missing", func(t *testing.T) {
		err := adam.Step(map[*tensor.RawTensor]*tensor.RawTensor{a.Raw(): gradOf(t, 1)})
		require.ErrorIs(t, err, optim.ErrMissingGradient)
	})

	t.Run("wrong_shape", func(t *testing.T) {
		err := adam.Step(map[*tensor.RawTensor]*tensor.RawTensor{
			a.Raw(): gradOf(t, 1),
			b.Raw(): gradOf(t, 1, 1, 1),
		})
		require.ErrorIs(t, err, optim.ErrGradientShape)
	})

	assert.Equal(t, []float32{1}, a.Tensor().Data())
	assert.Equal(t, []float32{2, 3}, b.Tensor().Data())
	assert.Equal(t, 0, adam.GetTimestep())
}

func TestAdam_MinimizesQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := newParam(t, backend, "x", 5)
	adam := optim.NewAdam([]*nn.Parameter[backendT]{x}, optim.AdamConfig{LR: 0.1}, backend)

	// f(x) = x², minimum at 0.
	for range 300 {
		backend.Tape().Clear()
		backend.Tape().StartRecording()
		y := x.Tensor().Mul(x.Tensor())
		grads := autodiff.Backward(y, backend)
		backend.Tape().StopRecording()
		require.NoError(t, adam.Step(grads))
	}

	assert.InDelta(t, 0, x.Tensor().Data()[0], 0.5)
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := newParam(t, backend, "w", 1, 2)
	adam := optim.NewAdam([]*nn.Parameter[backendT]{p}, optim.AdamConfig{LR: 0.01}, backend)
	for range 3 {
		require.NoError(t, adam.Step(map[*tensor.RawTensor]*tensor.RawTensor{p.Raw(): gradOf(t, 0.1, -0.2)}))
	}

	state := adam.StateDict()
	assert.Contains(t, state, "w.m")
	assert.Contains(t, state, "w.v")

	q := newParam(t, backend, "w", 1, 2)
	restored := optim.NewAdam([]*nn.Parameter[backendT]{q}, optim.AdamConfig{}, backend)
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, 3, restored.GetTimestep())
	assert.InDelta(t, 0.01, restored.GetLR(), 1e-9)

	// Identical weights, state and gradient give identical updates.
	copy(q.Tensor().Data(), p.Tensor().Data())
	require.NoError(t, adam.Step(map[*tensor.RawTensor]*tensor.RawTensor{p.Raw(): gradOf(t, 0.3, 0.3)}))
	require.NoError(t, restored.Step(map[*tensor.RawTensor]*tensor.RawTensor{q.Raw(): gradOf(t, 0.3, 0.3)}))
	assert.Equal(t, p.Tensor().Data(), q.Tensor().Data())
	assert.Equal(t, 4, restored.GetTimestep())
}

func TestAdam_LoadStateDictRejectsBadState(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := newParam(t, backend, "w", 1, 2)
	adam := optim.NewAdam([]*nn.Parameter[backendT]{p}, optim.AdamConfig{}, backend)

	state := adam.StateDict()
	delete(state, "w.v")
	require.ErrorIs(t, adam.LoadStateDict(state), optim.ErrInvalidState)

	state = adam.StateDict()
	state["w.m"] = gradOf(t, 1, 2, 3)
	require.ErrorIs(t, adam.LoadStateDict(state), optim.ErrInvalidState)
}
