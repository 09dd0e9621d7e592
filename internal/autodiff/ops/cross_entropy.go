package ops

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// SoftmaxCrossEntropyOp represents the fused softmax cross-entropy loss over
// soft or one-hot labels.
//
// Forward:
//
//	Loss = mean_n sum_c labels[n,c] * (logsumexp(logits[n]) - logits[n,c])
//
// Backward:
//
//	dL/dlogits[n,c] = (softmax(logits[n])[c] * sum_k labels[n,k] - labels[n,c]) / N
//
// For one-hot labels the row sum is 1 and this reduces to (softmax - y) / N.
// Labels receive no gradient.
type SoftmaxCrossEntropyOp struct {
	logits *tensor.RawTensor
	labels *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSoftmaxCrossEntropyOp creates a new SoftmaxCrossEntropyOp.
func NewSoftmaxCrossEntropyOp(logits, labels, output *tensor.RawTensor) *SoftmaxCrossEntropyOp {
	return &SoftmaxCrossEntropyOp{logits: logits, labels: labels, output: output}
}

// Inputs returns [logits, labels].
func (op *SoftmaxCrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits, op.labels}
}

// Output returns the scalar loss.
func (op *SoftmaxCrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the gradient with respect to the logits.
func (op *SoftmaxCrossEntropyOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("softmax_cross_entropy: backward expects 2D logits, got %v", shape))
	}
	n, c := shape[0], shape[1]

	probs := backend.Softmax(op.logits).AsFloat32()
	labels := op.labels.AsFloat32()
	scale := outputGrad.AsFloat32()[0] / float32(n)

	grad := tensor.MustNewRaw(shape, tensor.Float32, backend.Device())
	g := grad.AsFloat32()
	for r := 0; r < n; r++ {
		row := labels[r*c : (r+1)*c]
		var mass float32
		for _, y := range row {
			mass += y
		}
		for j, y := range row {
			g[r*c+j] = (probs[r*c+j]*mass - y) * scale
		}
	}

	return []*tensor.RawTensor{grad, nil}
}
