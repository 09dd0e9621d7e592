package ops

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// reduceBroadcast sums a gradient down to targetShape, undoing the
// broadcasting applied in the forward pass.
//
// Example:
//
//	Forward:  x[N,H,W,C] + bias[C] -> y[N,H,W,C]
//	Backward: grad_y[N,H,W,C] -> grad_bias[C] (sum over N, H, W)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad
	}
	if len(targetShape) > len(gradShape) {
		panic(fmt.Sprintf("reduceBroadcast: target %v has more dimensions than gradient %v", targetShape, gradShape))
	}

	result := tensor.MustNewRaw(targetShape, tensor.Float32, grad.Device())
	dst, src := result.AsFloat32(), grad.AsFloat32()

	// Strides of the target aligned to the gradient's dimensions, zero where
	// the target was broadcast.
	offset := len(gradShape) - len(targetShape)
	targetStrides := targetShape.ComputeStrides()
	strides := make([]int, len(gradShape))
	for d := range targetShape {
		if targetShape[d] != 1 {
			strides[d+offset] = targetStrides[d]
		}
	}

	idx := make([]int, len(gradShape))
	for _, v := range src {
		at := 0
		for d := range idx {
			at += idx[d] * strides[d]
		}
		dst[at] += v
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < gradShape[d] {
				break
			}
			idx[d] = 0
		}
	}

	return result
}
