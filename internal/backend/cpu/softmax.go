package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/chewxy/math32"
)

// Softmax normalizes the last dimension: exp(x - max) / sum(exp(x - max)).
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("softmax", x)
	rows, width := lastDim("softmax", x)

	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()
	for r := 0; r < rows; r++ {
		softmaxRow(src[r*width:(r+1)*width], dst[r*width:(r+1)*width])
	}
	return result
}

// SoftmaxCrossEntropy fuses softmax and cross-entropy:
//
//	loss = mean_n sum_c labels[n,c] * (logsumexp(logits[n]) - logits[n,c])
//
// which stays finite for any finite logits.
func (cpu *CPUBackend) SoftmaxCrossEntropy(logits, labels *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("softmax_cross_entropy", logits, labels)
	if len(logits.Shape()) != 2 || !logits.Shape().Equal(labels.Shape()) {
		panic(fmt.Sprintf("softmax_cross_entropy: logits %v and labels %v must be equal 2D shapes",
			logits.Shape(), labels.Shape()))
	}

	n, c := logits.Shape()[0], logits.Shape()[1]
	z, y := logits.AsFloat32(), labels.AsFloat32()

	var total float64
	for r := 0; r < n; r++ {
		row := z[r*c : (r+1)*c]
		lse := logSumExp(row)
		var sum float32
		for j, v := range row {
			sum += y[r*c+j] * (lse - v)
		}
		total += float64(sum)
	}

	result := tensor.MustNewRaw(tensor.Shape{}, tensor.Float32, cpu.device)
	result.AsFloat32()[0] = float32(total / float64(n))
	return result
}

// Argmax returns the int32 index of the largest element along the last
// dimension. The output drops that dimension. Ties resolve to the lowest index.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("argmax", x)
	rows, width := lastDim("argmax", x)

	shape := x.Shape()
	result := tensor.MustNewRaw(shape[:len(shape)-1].Clone(), tensor.Int32, cpu.device)
	src, dst := x.AsFloat32(), result.AsInt32()
	for r := 0; r < rows; r++ {
		row := src[r*width : (r+1)*width]
		best := 0
		for j := 1; j < width; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		dst[r] = int32(best)
	}
	return result
}

func lastDim(op string, x *tensor.RawTensor) (rows, width int) {
	shape := x.Shape()
	if len(shape) == 0 {
		panic(fmt.Sprintf("%s: scalar input has no last dimension", op))
	}
	width = shape[len(shape)-1]
	return x.NumElements() / width, width
}

func softmaxRow(src, dst []float32) {
	m := src[0]
	for _, v := range src[1:] {
		m = math32.Max(m, v)
	}
	var sum float32
	for j, v := range src {
		e := math32.Exp(v - m)
		dst[j] = e
		sum += e
	}
	for j := range dst {
		dst[j] /= sum
	}
}

func logSumExp(row []float32) float32 {
	m := row[0]
	for _, v := range row[1:] {
		m = math32.Max(m, v)
	}
	var sum float32
	for _, v := range row {
		sum += math32.Exp(v - m)
	}
	return m + math32.Log(sum)
}
