package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

type poolGeometry struct {
	n, h, w, c int
	k, stride  int
	rows, cols tensor.Window
}

func newPoolGeometry(op string, input *tensor.RawTensor, kernelSize, stride int, padding tensor.Padding) poolGeometry {
	requireFloat32(op, input)
	s := input.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,H,W,C], got %dD", op, len(s)))
	}
	rows, err := tensor.SlidingWindow(s[1], kernelSize, stride, padding)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	cols, err := tensor.SlidingWindow(s[2], kernelSize, stride, padding)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	return poolGeometry{n: s[0], h: s[1], w: s[2], c: s[3], k: kernelSize, stride: stride, rows: rows, cols: cols}
}

func (g poolGeometry) outShape() tensor.Shape {
	return tensor.Shape{g.n, g.rows.Out, g.cols.Out, g.c}
}

// MaxPool2D takes the window maximum of an NHWC input.
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int, padding tensor.Padding) *tensor.RawTensor {
	output, _ := cpu.MaxPool2DWithIndices(input, kernelSize, stride, padding)
	return output
}

// MaxPool2DWithIndices pools and also returns the flat input index of each
// maximum, from a single scan of the windows. Ties resolve to the first
// position in row-major window order.
func (cpu *CPUBackend) MaxPool2DWithIndices(input *tensor.RawTensor, kernelSize, stride int, padding tensor.Padding) (*tensor.RawTensor, []int) {
	g := newPoolGeometry("maxpool2d", input, kernelSize, stride, padding)
	src := input.AsFloat32()
	indices := cpu.maxIndices(g, src)

	output := tensor.MustNewRaw(g.outShape(), tensor.Float32, cpu.device)
	dst := output.AsFloat32()
	for i, at := range indices {
		dst[i] = src[at]
	}
	return output, indices
}

// MaxPool2DBackward scatters the output gradient onto the positions returned
// by MaxPool2DWithIndices. Every other input position receives zero.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int) *tensor.RawTensor {
	requireFloat32("maxpool2d_backward", input, grad)
	if grad.NumElements() != len(maxIndices) {
		panic(fmt.Sprintf("maxpool2d_backward: gradient has %d elements, but %d indices were recorded",
			grad.NumElements(), len(maxIndices)))
	}

	dInput := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	dst := dInput.AsFloat32()
	for i, g := range grad.AsFloat32() {
		dst[maxIndices[i]] += g
	}
	return dInput
}

func (cpu *CPUBackend) maxIndices(g poolGeometry, src []float32) []int {
	outPerSample := g.rows.Out * g.cols.Out * g.c
	indices := make([]int, g.n*outPerSample)

	forEach(g.n, cpu.workers, func(b int) {
		base := b * g.h * g.w * g.c
		out := indices[b*outPerSample : (b+1)*outPerSample]
		i := 0
		for oh := 0; oh < g.rows.Out; oh++ {
			for ow := 0; ow < g.cols.Out; ow++ {
				for ch := 0; ch < g.c; ch++ {
					best := -1
					for ki := 0; ki < g.k; ki++ {
						ih := oh*g.stride + ki - g.rows.Before
						if ih < 0 || ih >= g.h {
							continue
						}
						for kj := 0; kj < g.k; kj++ {
							iw := ow*g.stride + kj - g.cols.Before
							if iw < 0 || iw >= g.w {
								continue
							}
							at := base + (ih*g.w+iw)*g.c + ch
							if best < 0 || src[at] > src[best] {
								best = at
							}
						}
					}
					out[i] = best
					i++
				}
			}
		}
	})

	return indices
}
