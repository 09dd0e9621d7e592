package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// MatMul performs matrix multiplication through gonum's SGEMM.
// For 2D tensors: (M, K) @ (K, N) -> (M, N).
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("matmul", a, b)
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := tensor.MustNewRaw(tensor.Shape{m, n}, tensor.Float32, cpu.device)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		general(m, k, a.AsFloat32()),
		general(k, n, b.AsFloat32()),
		0, general(m, n, result.AsFloat32()))
	return result
}

// Transpose swaps the axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("transpose", x)
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("transpose: expected 2D tensor, got %dD", len(shape)))
	}

	rows, cols := shape[0], shape[1]
	result := tensor.MustNewRaw(tensor.Shape{cols, rows}, tensor.Float32, cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return result
}

// Reshape returns a copy of x under a new shape.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result, err := x.WithShape(shape)
	if err != nil {
		panic(err.Error())
	}
	return result
}

// general views a row-major slice as a BLAS matrix.
func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}
