package cpu

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/stretchr/testify/assert"
)

// naiveConv is a direct NHWC convolution used as the reference.
func naiveConv(in []float32, n, h, w, cin int, k []float32, kh, kw, cout, stride int, rows, cols tensor.Window) []float32 {
	out := make([]float32, n*rows.Out*cols.Out*cout)
	for b := 0; b < n; b++ {
		for oh := 0; oh < rows.Out; oh++ {
			for ow := 0; ow < cols.Out; ow++ {
				for co := 0; co < cout; co++ {
					var sum float32
					for ki := 0; ki < kh; ki++ {
						for kj := 0; kj < kw; kj++ {
							ih, iw := oh*stride+ki-rows.Before, ow*stride+kj-cols.Before
							if ih < 0 || ih >= h || iw < 0 || iw >= w {
								continue
							}
							for ci := 0; ci < cin; ci++ {
								sum += in[((b*h+ih)*w+iw)*cin+ci] * k[((ki*kw+kj)*cin+ci)*cout+co]
							}
						}
					}
					out[((b*rows.Out+oh)*cols.Out+ow)*cout+co] = sum
				}
			}
		}
	}
	return out
}

func TestConv2D_SamePaddingKeepsSpatialSize(t *testing.T) {
	backend := New()
	input := rawFrom(t, make([]float32, 2*28*28*1), 2, 28, 28, 1)
	kernel := rawFrom(t, make([]float32, 5*5*1*32), 5, 5, 1, 32)

	out := backend.Conv2D(input, kernel, 1, tensor.PaddingSame)
	assert.Equal(t, tensor.Shape{2, 28, 28, 32}, out.Shape())
}

func TestConv2D_MatchesNaive(t *testing.T) {
	tests := []struct {
		name    string
		h, w    int
		k       int
		stride  int
		padding tensor.Padding
	}{
		{"same_5x5", 7, 6, 5, 1, tensor.PaddingSame},
		{"same_stride2", 7, 7, 3, 2, tensor.PaddingSame},
		{"valid_3x3", 6, 5, 3, 1, tensor.PaddingValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, 2))
			backend := New()
			const n, cin, cout = 3, 2, 4

			input := randomRaw(t, rng, n, tt.h, tt.w, cin)
			kernel := randomRaw(t, rng, tt.k, tt.k, cin, cout)
			rows := tensor.MustSlidingWindow(tt.h, tt.k, tt.stride, tt.padding)
			cols := tensor.MustSlidingWindow(tt.w, tt.k, tt.stride, tt.padding)

			got := backend.Conv2D(input, kernel, tt.stride, tt.padding)
			assert.Equal(t, tensor.Shape{n, rows.Out, cols.Out, cout}, got.Shape())
			want := naiveConv(input.AsFloat32(), n, tt.h, tt.w, cin, kernel.AsFloat32(), tt.k, tt.k, cout, tt.stride, rows, cols)
			assertClose(t, want, got.AsFloat32(), 1e-4)
		})
	}
}

func TestConv2D_BackwardMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	backend := NewWithWorkers(2)
	const n, h, w, cin, k, cout, stride = 2, 5, 6, 3, 3, 2, 1

	input := randomRaw(t, rng, n, h, w, cin)
	kernel := randomRaw(t, rng, k, k, cin, cout)
	grad := randomRaw(t, rng, n, h, w, cout)
	rows := tensor.MustSlidingWindow(h, k, stride, tensor.PaddingSame)
	cols := tensor.MustSlidingWindow(w, k, stride, tensor.PaddingSame)

	in, ker, g := input.AsFloat32(), kernel.AsFloat32(), grad.AsFloat32()
	wantIn := make([]float32, len(in))
	wantK := make([]float32, len(ker))
	for b := 0; b < n; b++ {
		for oh := 0; oh < rows.Out; oh++ {
			for ow := 0; ow < cols.Out; ow++ {
				for co := 0; co < cout; co++ {
					dOut := g[((b*rows.Out+oh)*cols.Out+ow)*cout+co]
					for ki := 0; ki < k; ki++ {
						for kj := 0; kj < k; kj++ {
							ih, iw := oh*stride+ki-rows.Before, ow*stride+kj-cols.Before
							if ih < 0 || ih >= h || iw < 0 || iw >= w {
								continue
							}
							for ci := 0; ci < cin; ci++ {
								ii := ((b*h+ih)*w+iw)*cin + ci
								kk := ((ki*k+kj)*cin+ci)*cout + co
								wantIn[ii] += dOut * ker[kk]
								wantK[kk] += dOut * in[ii]
							}
						}
					}
				}
			}
		}
	}

	dIn := backend.Conv2DInputBackward(input, kernel, grad, stride, tensor.PaddingSame)
	dK := backend.Conv2DKernelBackward(input, kernel, grad, stride, tensor.PaddingSame)
	assert.Equal(t, input.Shape(), dIn.Shape())
	assert.Equal(t, kernel.Shape(), dK.Shape())
	assertClose(t, wantIn, dIn.AsFloat32(), 1e-4)
	assertClose(t, wantK, dK.AsFloat32(), 1e-4)
}

func TestConv2D_ChannelMismatchPanics(t *testing.T) {
	backend := New()
	input := rawFrom(t, make([]float32, 1*4*4*2), 1, 4, 4, 2)
	kernel := rawFrom(t, make([]float32, 3*3*1*1), 3, 3, 1, 1)
	assert.Panics(t, func() { backend.Conv2D(input, kernel, 1, tensor.PaddingSame) })
}
