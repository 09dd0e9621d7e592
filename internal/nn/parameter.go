package nn

import (
	"github.com/born-ml/digitnet/internal/tensor"
)

// Parameter is a named trainable tensor.
//
// The optimizer updates the tensor's data in place, so the underlying
// *tensor.RawTensor keeps its identity for the lifetime of the model. Gradient
// maps returned by autodiff.Backward are keyed by that pointer.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name, for example "conv1.weight".
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Raw returns the parameter's raw tensor, the key used in gradient maps.
func (p *Parameter[B]) Raw() *tensor.RawTensor {
	return p.tensor.Raw()
}

// StateDict maps parameter names to their raw tensors. The tensors are shared,
// not copied.
func StateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		state[p.name] = p.Raw()
	}
	return state
}
