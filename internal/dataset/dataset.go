// Package dataset supplies MNIST training and test splits as shuffled
// mini-batches of flattened images with one-hot labels.
//
// Data comes from the four IDX files of the MNIST distribution (plain or
// gzip-compressed) or from a deterministic synthetic digit generator for
// offline runs.
package dataset

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/born-ml/digitnet/internal/convnet"
)

// Classes is the number of digit classes.
const Classes = 10

// Split is one partition of the data, served in shuffled batches.
//
// NextBatch walks a random permutation of the examples; when a batch crosses
// the end of the permutation the epoch counter advances, a new permutation is
// drawn and the batch is completed from its start.
type Split struct {
	pixels    []float32 // n*imageSize, scaled to [0, 1]
	labels    []uint8
	imageSize int

	order  []int
	pos    int
	epochs int
	rng    *rand.Rand
}

// NewSplit builds a split from flattened pixels and class labels. seed fixes
// the batch order.
func NewSplit(pixels []float32, labels []uint8, imageSize int, seed uint64) (*Split, error) {
	n := len(labels)
	if n == 0 {
		return nil, fmt.Errorf("dataset: empty split")
	}
	if imageSize <= 0 || len(pixels) != n*imageSize {
		return nil, fmt.Errorf("dataset: %d pixels for %d images of %d", len(pixels), n, imageSize)
	}
	for i, l := range labels {
		if int(l) >= Classes {
			return nil, fmt.Errorf("dataset: label %d of example %d out of range", l, i)
		}
	}

	s := &Split{
		pixels:    pixels,
		labels:    labels,
		imageSize: imageSize,
		order:     make([]int, n),
		rng:       rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
	}
	for i := range s.order {
		s.order[i] = i
	}
	s.shuffle()
	return s, nil
}

func (s *Split) shuffle() {
	s.rng.Shuffle(len(s.order), func(i, j int) {
		s.order[i], s.order[j] = s.order[j], s.order[i]
	})
}

// Len returns the number of examples.
func (s *Split) Len() int {
	return len(s.labels)
}

// ImageSize returns the flattened image length.
func (s *Split) ImageSize() int {
	return s.imageSize
}

// Epochs returns the number of completed passes over the split.
func (s *Split) Epochs() int {
	return s.epochs
}

// Example returns a view of image i in storage order and its label.
func (s *Split) Example(i int) ([]float32, int) {
	return s.pixels[i*s.imageSize : (i+1)*s.imageSize], int(s.labels[i])
}

// NextBatch returns the next n examples of the current permutation.
func (s *Split) NextBatch(n int) convnet.Batch {
	if n <= 0 {
		panic(fmt.Sprintf("dataset: batch size %d", n))
	}
	b := convnet.Batch{
		Images: make([]float32, n*s.imageSize),
		Labels: make([]float32, n*Classes),
		Size:   n,
	}
	for k := 0; k < n; k++ {
		if s.pos == len(s.order) {
			s.epochs++
			s.shuffle()
			s.pos = 0
		}
		s.fill(b, k, s.order[s.pos])
		s.pos++
	}
	return b
}

// Batch returns examples [start, start+n) in storage order, wrapping around.
// It does not disturb the NextBatch sequence.
func (s *Split) Batch(start, n int) convnet.Batch {
	b := convnet.Batch{
		Images: make([]float32, n*s.imageSize),
		Labels: make([]float32, n*Classes),
		Size:   n,
	}
	for k := 0; k < n; k++ {
		s.fill(b, k, (start+k)%s.Len())
	}
	return b
}

func (s *Split) fill(b convnet.Batch, slot, example int) {
	img, label := s.Example(example)
	copy(b.Images[slot*s.imageSize:], img)
	b.Labels[slot*Classes+label] = 1
}

// Sets holds the training and test splits.
type Sets struct {
	Train *Split
	Test  *Split
}

// Load reads the MNIST IDX files from dir. The training split shuffles with
// seed and the test split with seed+1.
func Load(dir string, seed uint64) (*Sets, error) {
	train, err := loadSplit(filepath.Join(dir, TrainImagesFile), filepath.Join(dir, TrainLabelsFile), seed)
	if err != nil {
		return nil, fmt.Errorf("dataset: training split: %w", err)
	}
	test, err := loadSplit(filepath.Join(dir, TestImagesFile), filepath.Join(dir, TestLabelsFile), seed+1)
	if err != nil {
		return nil, fmt.Errorf("dataset: test split: %w", err)
	}
	return &Sets{Train: train, Test: test}, nil
}

func loadSplit(imagesPath, labelsPath string, seed uint64) (*Split, error) {
	images, err := readImagesFile(imagesPath)
	if err != nil {
		return nil, err
	}
	labels, err := readLabelsFile(labelsPath)
	if err != nil {
		return nil, err
	}
	if images.Count != len(labels) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", images.Count, len(labels))
	}
	return NewSplit(Scale(images.Pixels), labels, images.Rows*images.Cols, seed)
}

// Scale maps 8-bit pixels to [0, 1].
func Scale(pixels []byte) []float32 {
	out := make([]float32, len(pixels))
	for i, p := range pixels {
		out[i] = float32(p) / 255
	}
	return out
}

