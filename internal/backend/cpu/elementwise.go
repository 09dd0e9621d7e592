package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// ReLU computes max(x, 0) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("relu", x)
	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	dst := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v > 0 {
			dst[i] = v
		}
	}
	return result
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(op, a, b)
	outShape, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()

	switch {
	case len(x) == len(dst) && len(y) == len(dst):
		for i := range dst {
			dst[i] = f(x[i], y[i])
		}
	case len(x) == len(dst) && isTrailingBlock(b.Shape(), outShape):
		// Bias-style broadcast: b repeats every len(y) elements.
		n := len(y)
		for i := range dst {
			dst[i] = f(x[i], y[i%n])
		}
	case len(y) == len(dst) && isTrailingBlock(a.Shape(), outShape):
		n := len(x)
		for i := range dst {
			dst[i] = f(x[i%n], y[i])
		}
	default:
		ax := broadcastStrides(a.Shape(), outShape)
		bx := broadcastStrides(b.Shape(), outShape)
		idx := make([]int, len(outShape))
		for i := range dst {
			ai, bi := 0, 0
			for d := range idx {
				ai += idx[d] * ax[d]
				bi += idx[d] * bx[d]
			}
			dst[i] = f(x[ai], y[bi])
			for d := len(idx) - 1; d >= 0; d-- {
				idx[d]++
				if idx[d] < outShape[d] {
					break
				}
				idx[d] = 0
			}
		}
	}

	return result
}

// isTrailingBlock reports whether small (ignoring leading ones) equals the
// trailing dimensions of out, so its elements repeat contiguously.
func isTrailingBlock(small, out tensor.Shape) bool {
	for len(small) > 0 && small[0] == 1 {
		small = small[1:]
	}
	if len(small) > len(out) {
		return false
	}
	return small.Equal(out[len(out)-len(small):])
}

// broadcastStrides returns strides of in aligned to out, with zero stride on
// broadcast dimensions.
func broadcastStrides(in, out tensor.Shape) []int {
	strides := make([]int, len(out))
	inStrides := in.ComputeStrides()
	offset := len(out) - len(in)
	for d := range in {
		if in[d] != 1 {
			strides[d+offset] = inStrides[d]
		}
	}
	return strides
}
