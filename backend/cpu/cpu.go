// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/tensor"
)

// Backend is the CPU backend.
//
// Convolutions run as im2col followed by a BLAS GEMM; per-sample work is
// spread over one goroutine per logical core.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend using every logical core.
func New() *Backend {
	return internalcpu.New()
}

// NewWithWorkers creates a CPU backend limited to the given number of
// goroutines for per-sample kernels.
func NewWithWorkers(workers int) *Backend {
	return internalcpu.NewWithWorkers(workers)
}
