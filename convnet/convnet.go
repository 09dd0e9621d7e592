// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package convnet

import (
	"github.com/born-ml/digitnet/backend/cpu"
	"github.com/born-ml/digitnet/internal/autodiff"
	"github.com/born-ml/digitnet/internal/convnet"
	"github.com/born-ml/digitnet/internal/tensor"
)

// Config fixes the network topology and initialization.
type Config = convnet.Config

// ChannelPlan is the activation geometry derived from a Config.
type ChannelPlan = convnet.ChannelPlan

// Batch is N flattened images with one-hot labels.
type Batch = convnet.Batch

// Metrics summarizes the network's output on one batch.
type Metrics = convnet.Metrics

// Network is the classifier on an arbitrary backend.
type Network[B tensor.Backend] = convnet.Network[B]

// Trainer fits a Network with Adam.
type Trainer[B tensor.Backend] = convnet.Trainer[B]

// TrainerOptions configures a Trainer.
type TrainerOptions = convnet.TrainerOptions

// StepResult is the outcome of one training step.
type StepResult = convnet.StepResult

// CheckpointInfo is the training state stored with a checkpoint.
type CheckpointInfo = convnet.CheckpointInfo

// MismatchError lists differences between a checkpoint and a network.
type MismatchError = convnet.MismatchError

// GraphDef is the exported network structure.
type GraphDef = convnet.GraphDef

// Errors.
var (
	ErrShapeMismatch      = convnet.ErrShapeMismatch
	ErrCheckpointMismatch = convnet.ErrCheckpointMismatch
	ErrCheckpointNotFound = convnet.ErrCheckpointNotFound
	ErrNonFiniteLoss      = convnet.ErrNonFiniteLoss
)

// DefaultConfig returns the MNIST network configuration.
func DefaultConfig() Config {
	return convnet.DefaultConfig()
}

// NewNetwork assembles a network on the given backend.
func NewNetwork[B tensor.Backend](config Config, backend B) (*Network[B], error) {
	return convnet.NewNetwork(config, backend)
}

// NewCPUNetwork assembles an inference network on the CPU backend.
func NewCPUNetwork(config Config) (*Network[*cpu.Backend], error) {
	return convnet.NewNetwork(config, cpu.New())
}

// NewCPUTrainer assembles a trainable network on the CPU backend and wraps it
// in a Trainer.
func NewCPUTrainer(config Config, opts TrainerOptions) (*Trainer[*cpu.Backend], error) {
	net, err := convnet.NewNetwork(config, autodiff.New(cpu.New()))
	if err != nil {
		return nil, err
	}
	return convnet.NewTrainer(net, opts), nil
}

// WriteGraph writes g as JSON, or YAML for .yaml and .yml paths.
func WriteGraph(path string, g GraphDef) error {
	return convnet.WriteGraph(path, g)
}
