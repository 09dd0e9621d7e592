package tensor

import "fmt"

// Padding selects how a sliding window treats the borders of its input.
type Padding int

const (
	// PaddingSame zero-pads so that out = ceil(in / stride).
	PaddingSame Padding = iota
	// PaddingValid never pads; windows must fit entirely inside the input.
	PaddingValid
)

// String returns the conventional upper-case name ("SAME", "VALID").
func (p Padding) String() string {
	switch p {
	case PaddingSame:
		return "SAME"
	case PaddingValid:
		return "VALID"
	default:
		return fmt.Sprintf("Padding(%d)", int(p))
	}
}

// Window describes the geometry of a sliding window along one spatial axis.
type Window struct {
	In     int // input extent
	Out    int // output extent
	Before int // zero padding inserted before the first input element
}

// SlidingWindow computes the output extent and leading padding of a window of
// size kernel moved with the given stride over an axis of length in.
//
// SAME follows the usual convention: the total padding needed to produce
// ceil(in/stride) outputs is split with the smaller half before the input.
func SlidingWindow(in, kernel, stride int, padding Padding) (Window, error) {
	if in <= 0 || kernel <= 0 || stride <= 0 {
		return Window{}, fmt.Errorf("invalid window: in=%d kernel=%d stride=%d", in, kernel, stride)
	}

	switch padding {
	case PaddingSame:
		out := (in + stride - 1) / stride
		total := max((out-1)*stride+kernel-in, 0)
		return Window{In: in, Out: out, Before: total / 2}, nil
	case PaddingValid:
		if kernel > in {
			return Window{}, fmt.Errorf("kernel %d larger than input %d with VALID padding", kernel, in)
		}
		return Window{In: in, Out: (in-kernel)/stride + 1}, nil
	default:
		return Window{}, fmt.Errorf("unknown padding %v", padding)
	}
}

// MustSlidingWindow is SlidingWindow for geometry fixed at assembly time.
func MustSlidingWindow(in, kernel, stride int, padding Padding) Window {
	w, err := SlidingWindow(in, kernel, stride, padding)
	if err != nil {
		panic(err)
	}
	return w
}
