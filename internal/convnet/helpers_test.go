package convnet_test

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/digitnet/internal/autodiff"
	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/convnet"
	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/stretchr/testify/require"
)

// smallConfig keeps the topology but shrinks every dimension so training
// tests run quickly.
func smallConfig() convnet.Config {
	c := convnet.DefaultConfig()
	c.ImageSize = 8
	c.FilterSize = 3
	c.Conv1Channels = 4
	c.Conv2Channels = 8
	c.Hidden = 16
	c.LearningRate = 1e-2
	return c
}

// randomBatch draws pixels in [0, 1] and a random one-hot label per example.
func randomBatch(c convnet.Config, n int, seed uint64) convnet.Batch {
	rng := rand.New(rand.NewPCG(seed, 7))
	b := convnet.Batch{
		Images: make([]float32, n*c.InputSize()),
		Labels: make([]float32, n*c.Classes),
		Size:   n,
	}
	for i := range b.Images {
		b.Images[i] = rng.Float32()
	}
	for i := 0; i < n; i++ {
		b.Labels[i*c.Classes+rng.IntN(c.Classes)] = 1
	}
	return b
}

func newNetwork(t *testing.T, c convnet.Config) *convnet.Network[*cpu.CPUBackend] {
	t.Helper()
	net, err := convnet.NewNetwork(c, cpu.New())
	require.NoError(t, err)
	return net
}

func newTrainer(t *testing.T, c convnet.Config, opts convnet.TrainerOptions) *convnet.Trainer[*cpu.CPUBackend] {
	t.Helper()
	net, err := convnet.NewNetwork(c, autodiff.New(cpu.New()))
	require.NoError(t, err)
	return convnet.NewTrainer(net, opts)
}

// values copies every parameter's data keyed by name.
func values(state map[string]*tensor.RawTensor) map[string][]float32 {
	out := make(map[string][]float32, len(state))
	for name, raw := range state {
		out[name] = append([]float32(nil), raw.AsFloat32()...)
	}
	return out
}

func logitsOf[B tensor.Backend](t *testing.T, net *convnet.Network[B], b convnet.Batch) []float32 {
	t.Helper()
	images, err := tensor.FromSlice(b.Images, tensor.Shape{b.Size, net.Config().InputSize()}, net.Backend())
	require.NoError(t, err)
	return net.Forward(images, 1).Data()
}
