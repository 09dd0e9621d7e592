// Package nn implements the layers of a convolutional digit classifier.
//
// This package provides:
//   - Module interface and trainable Parameter
//   - Conv2D, MaxPool2D, Linear, ReLU and Dropout layers (NHWC layout)
//   - Truncated-normal and constant initializers
//   - Softmax cross-entropy loss and accuracy metrics
//
// Layers are generic over the tensor backend. Wrapping the backend with
// autodiff.New makes every layer trainable without changes.
package nn

import (
	"github.com/born-ml/digitnet/internal/tensor"
)

// Module is the base interface for neural network components that map one
// tensor to another.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module, or an
	// empty slice for stateless modules.
	Parameters() []*Parameter[B]
}

// CollectParameters concatenates the parameters of several modules in order.
func CollectParameters[B tensor.Backend](modules ...Module[B]) []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range modules {
		params = append(params, m.Parameters()...)
	}
	return params
}
