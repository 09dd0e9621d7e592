package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// convGeometry holds the dimensions of an NHWC convolution.
type convGeometry struct {
	n, h, w, cin  int
	kh, kw, cout  int
	stride        int
	rows, cols    tensor.Window
	patch         int // kh * kw * cin, one im2col row
	outH, outW    int
	outPerSample  int // outH * outW
	inPerSample   int // h * w * cin
	colsPerSample int // outPerSample * patch
}

func newConvGeometry(op string, input, kernel *tensor.RawTensor, stride int, padding tensor.Padding) convGeometry {
	requireFloat32(op, input, kernel)
	is, ks := input.Shape(), kernel.Shape()
	if len(is) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,H,W,C], got %dD", op, len(is)))
	}
	if len(ks) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [K_h,K_w,C_in,C_out], got %dD", op, len(ks)))
	}
	if is[3] != ks[2] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, is[3], ks[2]))
	}

	rows, err := tensor.SlidingWindow(is[1], ks[0], stride, padding)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	cols, err := tensor.SlidingWindow(is[2], ks[1], stride, padding)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	g := convGeometry{
		n: is[0], h: is[1], w: is[2], cin: is[3],
		kh: ks[0], kw: ks[1], cout: ks[3],
		stride: stride,
		rows:   rows,
		cols:   cols,
		outH:   rows.Out,
		outW:   cols.Out,
	}
	g.patch = g.kh * g.kw * g.cin
	g.outPerSample = g.outH * g.outW
	g.inPerSample = g.h * g.w * g.cin
	g.colsPerSample = g.outPerSample * g.patch
	return g
}

func (g convGeometry) outShape() tensor.Shape {
	return tensor.Shape{g.n, g.outH, g.outW, g.cout}
}

// Conv2D convolves an NHWC input with a [K_h, K_w, C_in, C_out] kernel.
//
// Algorithm: im2col
//  1. Unfold every receptive field into one row of a [N*H_out*W_out, K_h*K_w*C_in] matrix
//  2. Multiply by the kernel viewed as [K_h*K_w*C_in, C_out]
//  3. The product is already the NHWC output
//
// Out-of-bounds taps read as zero.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride int, padding tensor.Padding) *tensor.RawTensor {
	g := newConvGeometry("conv2d", input, kernel, stride, padding)

	cols := cpu.im2col(g, input.AsFloat32())
	output := tensor.MustNewRaw(g.outShape(), tensor.Float32, cpu.device)

	m := g.n * g.outPerSample
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		general(m, g.patch, cols),
		general(g.patch, g.cout, kernel.AsFloat32()),
		0, general(m, g.cout, output.AsFloat32()))

	return output
}

// Conv2DInputBackward computes dL/dinput = col2im(dL/doutput @ kernel^T).
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride int, padding tensor.Padding) *tensor.RawTensor {
	g := newConvGeometry("conv2d_input_backward", input, kernel, stride, padding)
	g.checkGrad("conv2d_input_backward", grad)

	m := g.n * g.outPerSample
	dCols := make([]float32, m*g.patch)
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		general(m, g.cout, grad.AsFloat32()),
		general(g.patch, g.cout, kernel.AsFloat32()),
		0, general(m, g.patch, dCols))

	dInput := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	cpu.col2im(g, dCols, dInput.AsFloat32())
	return dInput
}

// Conv2DKernelBackward computes dL/dkernel = im2col(input)^T @ dL/doutput.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride int, padding tensor.Padding) *tensor.RawTensor {
	g := newConvGeometry("conv2d_kernel_backward", input, kernel, stride, padding)
	g.checkGrad("conv2d_kernel_backward", grad)

	cols := cpu.im2col(g, input.AsFloat32())
	dKernel := tensor.MustNewRaw(kernel.Shape(), tensor.Float32, cpu.device)

	m := g.n * g.outPerSample
	blas32.Gemm(blas.Trans, blas.NoTrans, 1,
		general(m, g.patch, cols),
		general(m, g.cout, grad.AsFloat32()),
		0, general(g.patch, g.cout, dKernel.AsFloat32()))

	return dKernel
}

func (g convGeometry) checkGrad(op string, grad *tensor.RawTensor) {
	requireFloat32(op, grad)
	if !grad.Shape().Equal(g.outShape()) {
		panic(fmt.Sprintf("%s: gradient shape %v, expected %v", op, grad.Shape(), g.outShape()))
	}
}

// im2col unfolds the input into a [N*H_out*W_out, K_h*K_w*C_in] row-major
// matrix. Column (ki*K_w+kj)*C_in+c holds tap (ki, kj) of channel c.
func (cpu *CPUBackend) im2col(g convGeometry, src []float32) []float32 {
	cols := make([]float32, g.n*g.colsPerSample)

	forEach(g.n, cpu.workers, func(b int) {
		in := src[b*g.inPerSample : (b+1)*g.inPerSample]
		out := cols[b*g.colsPerSample : (b+1)*g.colsPerSample]
		row := 0
		for oh := 0; oh < g.outH; oh++ {
			for ow := 0; ow < g.outW; ow++ {
				dst := out[row*g.patch : (row+1)*g.patch]
				for ki := 0; ki < g.kh; ki++ {
					ih := oh*g.stride + ki - g.rows.Before
					if ih < 0 || ih >= g.h {
						continue
					}
					for kj := 0; kj < g.kw; kj++ {
						iw := ow*g.stride + kj - g.cols.Before
						if iw < 0 || iw >= g.w {
							continue
						}
						at := (ki*g.kw + kj) * g.cin
						base := (ih*g.w + iw) * g.cin
						copy(dst[at:at+g.cin], in[base:base+g.cin])
					}
				}
				row++
			}
		}
	})

	return cols
}

// col2im is the adjoint of im2col: it scatter-adds column gradients back into
// dst, which must be zeroed.
func (cpu *CPUBackend) col2im(g convGeometry, cols, dst []float32) {
	forEach(g.n, cpu.workers, func(b int) {
		out := dst[b*g.inPerSample : (b+1)*g.inPerSample]
		in := cols[b*g.colsPerSample : (b+1)*g.colsPerSample]
		row := 0
		for oh := 0; oh < g.outH; oh++ {
			for ow := 0; ow < g.outW; ow++ {
				src := in[row*g.patch : (row+1)*g.patch]
				for ki := 0; ki < g.kh; ki++ {
					ih := oh*g.stride + ki - g.rows.Before
					if ih < 0 || ih >= g.h {
						continue
					}
					for kj := 0; kj < g.kw; kj++ {
						iw := ow*g.stride + kj - g.cols.Before
						if iw < 0 || iw >= g.w {
							continue
						}
						at := (ki*g.kw + kj) * g.cin
						base := (ih*g.w + iw) * g.cin
						for c := 0; c < g.cin; c++ {
							out[base+c] += src[at+c]
						}
					}
				}
				row++
			}
		}
	})
}
