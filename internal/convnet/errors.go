package convnet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShapeMismatch is returned for a batch whose image or label width, or
	// example count, does not fit the network.
	ErrShapeMismatch = errors.New("convnet: batch shape mismatch")

	// ErrCheckpointMismatch is returned when a checkpoint's parameter set or
	// shapes differ from the assembled network.
	ErrCheckpointMismatch = errors.New("convnet: checkpoint does not match network")

	// ErrCheckpointNotFound is returned when no checkpoint exists at the path.
	ErrCheckpointNotFound = errors.New("convnet: checkpoint not found")

	// ErrNonFiniteLoss is returned by a guarded training step whose loss is NaN
	// or infinite. The step is skipped.
	ErrNonFiniteLoss = errors.New("convnet: non-finite loss")
)

// ShapeDiff records one parameter whose stored shape differs.
type ShapeDiff struct {
	Name string
	Want []int
	Got  []int
}

// MismatchError lists every difference between a checkpoint and a network.
type MismatchError struct {
	Path       string
	Missing    []string    // in the network, absent from the checkpoint
	Unexpected []string    // in the checkpoint, unknown to the network
	Shapes     []ShapeDiff // present in both with different shapes or dtype
}

func (e *MismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ", "))
	}
	for _, d := range e.Shapes {
		parts = append(parts, fmt.Sprintf("%s has shape %v, want %v", d.Name, d.Got, d.Want))
	}
	return fmt.Sprintf("%v: %s: %s", ErrCheckpointMismatch, e.Path, strings.Join(parts, "; "))
}

// Unwrap returns ErrCheckpointMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrCheckpointMismatch
}

func (e *MismatchError) empty() bool {
	return len(e.Missing) == 0 && len(e.Unexpected) == 0 && len(e.Shapes) == 0
}
