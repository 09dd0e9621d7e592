// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package convnet_test

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/digitnet/convnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyConfig() convnet.Config {
	c := convnet.DefaultConfig()
	c.ImageSize = 8
	c.FilterSize = 3
	c.Conv1Channels = 2
	c.Conv2Channels = 4
	c.Hidden = 8
	return c
}

func constantBatch(c convnet.Config, n int) convnet.Batch {
	b := convnet.Batch{
		Images: make([]float32, n*c.InputSize()),
		Labels: make([]float32, n*c.Classes),
		Size:   n,
	}
	for i := range b.Images {
		b.Images[i] = float32(i%7) / 7
	}
	for i := 0; i < n; i++ {
		b.Labels[i*c.Classes+i%c.Classes] = 1
	}
	return b
}

func TestDefaultConfig(t *testing.T) {
	plan := convnet.DefaultConfig().ChannelPlan()
	assert.Equal(t, 3136, plan.Flattened)
	assert.Equal(t, 1028, plan.Hidden)
}

func TestTrainSaveRestore(t *testing.T) {
	c := tinyConfig()
	path := filepath.Join(t.TempDir(), "model.born")
	b := constantBatch(c, 4)

	trainer, err := convnet.NewCPUTrainer(c, convnet.TrainerOptions{})
	require.NoError(t, err)
	res, err := trainer.Step(b, 0.5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Step)
	require.NoError(t, trainer.Save(path, float64(res.Loss), false))

	want, err := trainer.Evaluate(b)
	require.NoError(t, err)

	net, err := convnet.NewCPUNetwork(c)
	require.NoError(t, err)
	_, err = net.Restore(path)
	require.NoError(t, err)
	got, err := net.Evaluate(b)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestErrors(t *testing.T) {
	net, err := convnet.NewCPUNetwork(tinyConfig())
	require.NoError(t, err)

	_, err = net.Evaluate(convnet.Batch{Size: 1})
	assert.ErrorIs(t, err, convnet.ErrShapeMismatch)

	_, err = net.Restore(filepath.Join(t.TempDir(), "missing.born"))
	assert.ErrorIs(t, err, convnet.ErrCheckpointNotFound)
}
