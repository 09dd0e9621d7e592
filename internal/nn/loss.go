package nn

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// SoftmaxCrossEntropy returns the mean over the batch of the cross-entropy
// between labels and softmax(logits), computed in one numerically stable step.
//
// Both tensors are [batch, classes]. Labels are usually one-hot but may be any
// non-negative distribution.
func SoftmaxCrossEntropy[B tensor.Backend](logits, labels *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !logits.Shape().Equal(labels.Shape()) {
		panic(fmt.Sprintf("SoftmaxCrossEntropy: logits %v and labels %v differ", logits.Shape(), labels.Shape()))
	}
	b := logits.Backend()
	return tensor.New[float32](b.SoftmaxCrossEntropy(logits.Raw(), labels.Raw()), b)
}

// Correct reports, per example, whether the highest logit and the highest
// label fall on the same class.
func Correct[B tensor.Backend](logits, labels *tensor.Tensor[float32, B]) []bool {
	if !logits.Shape().Equal(labels.Shape()) {
		panic(fmt.Sprintf("Correct: logits %v and labels %v differ", logits.Shape(), labels.Shape()))
	}
	pred := logits.Argmax().Data()
	truth := labels.Argmax().Data()

	out := make([]bool, len(pred))
	for i := range pred {
		out[i] = pred[i] == truth[i]
	}
	return out
}

// Accuracy returns the fraction of examples classified correctly, in [0, 1].
func Accuracy[B tensor.Backend](logits, labels *tensor.Tensor[float32, B]) float32 {
	correct := Correct(logits, labels)
	hits := 0
	for _, ok := range correct {
		if ok {
			hits++
		}
	}
	return float32(hits) / float32(len(correct))
}
