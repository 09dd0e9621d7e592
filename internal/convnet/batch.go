package convnet

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Batch is N flattened images with one-hot labels, row-major.
type Batch struct {
	Images []float32 // N * InputSize, scaled to [0, 1]
	Labels []float32 // N * Classes, one-hot
	Size   int
}

// validate checks the batch against the network's input and output widths.
func (c Config) validate(b Batch) error {
	if b.Size <= 0 {
		return fmt.Errorf("%w: batch size %d", ErrShapeMismatch, b.Size)
	}
	if len(b.Images) != b.Size*c.InputSize() {
		return fmt.Errorf("%w: %d image values for %d examples of %d", ErrShapeMismatch, len(b.Images), b.Size, c.InputSize())
	}
	if len(b.Labels) != b.Size*c.Classes {
		return fmt.Errorf("%w: %d label values for %d examples of %d classes", ErrShapeMismatch, len(b.Labels), b.Size, c.Classes)
	}
	return nil
}

// batchTensors copies the batch onto backend.
func batchTensors[B tensor.Backend](c Config, b Batch, backend B) (images, labels *tensor.Tensor[float32, B], err error) {
	if err := c.validate(b); err != nil {
		return nil, nil, err
	}
	images, err = tensor.FromSlice(b.Images, tensor.Shape{b.Size, c.InputSize()}, backend)
	if err != nil {
		return nil, nil, err
	}
	labels, err = tensor.FromSlice(b.Labels, tensor.Shape{b.Size, c.Classes}, backend)
	if err != nil {
		return nil, nil, err
	}
	return images, labels, nil
}
