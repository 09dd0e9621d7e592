// Package cpu implements the CPU backend: NHWC convolution through im2col and
// BLAS GEMM, max pooling, fused softmax cross-entropy and the element-wise
// operations the network layers need.
package cpu

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/klauspost/cpuid/v2"
)

// CPUBackend implements tensor.Backend on the host CPU.
//
// Per-sample work (im2col, col2im, pooling) is spread over a bounded number of
// goroutines; GEMM parallelism is left to gonum.
type CPUBackend struct {
	device  tensor.Device
	workers int
}

// New creates a CPU backend using one worker per logical core.
func New() *CPUBackend {
	return NewWithWorkers(detectWorkers())
}

// NewWithWorkers creates a CPU backend with an explicit worker limit.
// A limit below 1 is treated as 1.
func NewWithWorkers(workers int) *CPUBackend {
	return &CPUBackend{
		device:  tensor.CPU,
		workers: max(workers, 1),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the goroutine limit for per-sample kernels.
func (cpu *CPUBackend) Workers() int {
	return cpu.workers
}

// Describe reports the processor and the vector extensions gonum's kernels can
// take advantage of.
func (cpu *CPUBackend) Describe() string {
	var feats []string
	for _, f := range []cpuid.FeatureID{cpuid.SSE4, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F} {
		if cpuid.CPU.Supports(f) {
			feats = append(feats, f.String())
		}
	}
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("%s, %d workers, features=[%s]", brand, cpu.workers, strings.Join(feats, " "))
}

func detectWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// requireFloat32 panics unless every tensor holds float32 data.
func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s (only float32 supported)", op, t.DType()))
		}
	}
}
