package convnet

import (
	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
)

// Metrics summarizes the network's output on one batch.
type Metrics struct {
	Accuracy float32 // fraction correct, in [0, 1]
	Loss     float32 // mean softmax cross-entropy
	Correct  int
	Size     int
}

// Evaluate runs the batch with dropout disabled and reports accuracy and
// loss. Parameters are not modified.
func (n *Network[B]) Evaluate(b Batch) (Metrics, error) {
	images, labels, err := batchTensors(n.config, b, n.backend)
	if err != nil {
		return Metrics{}, err
	}
	logits := n.Forward(images, 1)
	return measure(logits, labels, nn.SoftmaxCrossEntropy(logits, labels).Item()), nil
}

func measure[B tensor.Backend](logits, labels *tensor.Tensor[float32, B], loss float32) Metrics {
	correct := 0
	for _, ok := range nn.Correct(logits, labels) {
		if ok {
			correct++
		}
	}
	size := logits.Shape()[0]
	return Metrics{
		Accuracy: float32(correct) / float32(size),
		Loss:     loss,
		Correct:  correct,
		Size:     size,
	}
}
