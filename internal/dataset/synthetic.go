package dataset

import (
	"fmt"
	"math/rand/v2"
)

// SyntheticSide is the side of generated images, matching MNIST.
const SyntheticSide = 28

// Seven-segment layout:
//
//	 aaa
//	f   b
//	 ggg
//	e   c
//	 ddd
const (
	segA = 1 << iota
	segB
	segC
	segD
	segE
	segF
	segG
)

var digitSegments = [Classes]int{
	0: segA | segB | segC | segD | segE | segF,
	1: segB | segC,
	2: segA | segB | segG | segE | segD,
	3: segA | segB | segG | segC | segD,
	4: segF | segG | segB | segC,
	5: segA | segF | segG | segC | segD,
	6: segA | segF | segG | segE | segC | segD,
	7: segA | segB | segC,
	8: segA | segB | segC | segD | segE | segF | segG,
	9: segA | segB | segC | segD | segF | segG,
}

// Synthetic generates n seven-segment digit images with random offsets,
// stroke widths and background noise. Labels cycle through the classes, so
// every class is equally represented. Output is a deterministic function of
// n and seed.
func Synthetic(n int, seed uint64) (*Split, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dataset: synthetic size %d", n)
	}
	rng := rand.New(rand.NewPCG(seed, 0xda3e39cb94b95bdb))
	const size = SyntheticSide * SyntheticSide

	pixels := make([]float32, n*size)
	labels := make([]uint8, n)
	for i := 0; i < n; i++ {
		labels[i] = uint8(i % Classes)
		drawDigit(pixels[i*size:(i+1)*size], int(labels[i]), rng)
	}
	return NewSplit(pixels, labels, size, seed+1)
}

// SyntheticSets returns independent training and test splits.
func SyntheticSets(trainSize, testSize int, seed uint64) (*Sets, error) {
	train, err := Synthetic(trainSize, seed)
	if err != nil {
		return nil, err
	}
	test, err := Synthetic(testSize, seed+1000)
	if err != nil {
		return nil, err
	}
	return &Sets{Train: train, Test: test}, nil
}

func drawDigit(img []float32, digit int, rng *rand.Rand) {
	for i := range img {
		img[i] = rng.Float32() * 0.1
	}

	// Glyph box: 10 wide, 18 tall, jittered by up to 3 pixels.
	left := 9 + rng.IntN(7) - 3
	top := 5 + rng.IntN(7) - 3
	const w, h = 10, 18
	stroke := 2 + rng.IntN(2)
	mid := top + h/2

	hline := func(y int) { paint(img, left, y, left+w, y+stroke) }
	vline := func(x, y0, y1 int) { paint(img, x, y0, x+stroke, y1) }

	seg := digitSegments[digit]
	if seg&segA != 0 {
		hline(top)
	}
	if seg&segG != 0 {
		hline(mid - stroke/2)
	}
	if seg&segD != 0 {
		hline(top + h - stroke)
	}
	if seg&segF != 0 {
		vline(left, top, mid)
	}
	if seg&segB != 0 {
		vline(left+w-stroke, top, mid)
	}
	if seg&segE != 0 {
		vline(left, mid, top+h)
	}
	if seg&segC != 0 {
		vline(left+w-stroke, mid, top+h)
	}
}

// paint sets the rectangle [x0, x1) x [y0, y1), clipped to the image.
func paint(img []float32, x0, y0, x1, y1 int) {
	for y := max(y0, 0); y < min(y1, SyntheticSide); y++ {
		for x := max(x0, 0); x < min(x1, SyntheticSide); x++ {
			img[y*SyntheticSide+x] = 1
		}
	}
}
