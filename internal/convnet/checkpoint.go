package convnet

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/born-ml/digitnet/internal/serialization"
	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/google/uuid"
)

// ModelType is written to every checkpoint header.
const ModelType = "digitnet-cnn"

// optimizerPrefix namespaces optimizer state inside a checkpoint.
const optimizerPrefix = "optimizer."

// CheckpointInfo is the training state recorded alongside parameter values.
type CheckpointInfo struct {
	RunID        string
	Step         int64
	Loss         float64
	HasOptimizer bool
}

// Save writes every parameter to path, replacing any existing file.
func (n *Network[B]) Save(path string, info CheckpointInfo) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return writeCheckpoint(path, n.config, n.StateDict(), nil, info)
}

// Restore loads parameter values from path into the assembled network.
//
// The checkpoint must hold exactly the network's parameter set with identical
// shapes; optimizer entries are ignored. Nothing is modified unless every
// parameter matches.
func (n *Network[B]) Restore(path string) (CheckpointInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	state, info, err := readCheckpoint(path, n.backend.Device())
	if err != nil {
		return CheckpointInfo{}, err
	}
	params, _ := splitOptimizer(state)
	if err := n.checkState(path, params); err != nil {
		return CheckpointInfo{}, err
	}
	n.loadState(params)
	return info, nil
}

// Save writes parameters and, when withOptimizer is set, Adam's moments and
// timestep so training can resume exactly.
func (t *Trainer[B]) Save(path string, loss float64, withOptimizer bool) error {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()

	var opt map[string]*tensor.RawTensor
	if withOptimizer {
		opt = t.optimizer.StateDict()
	}
	info := CheckpointInfo{Step: t.step, Loss: loss, HasOptimizer: withOptimizer}
	return writeCheckpoint(path, t.net.config, t.net.StateDict(), opt, info)
}

// Restore loads parameters and, if the checkpoint carries it, optimizer
// state. The step counter resumes from the checkpoint.
func (t *Trainer[B]) Restore(path string) (CheckpointInfo, error) {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()

	state, info, err := readCheckpoint(path, t.backend.Device())
	if err != nil {
		return CheckpointInfo{}, err
	}
	params, opt := splitOptimizer(state)
	if err := t.net.checkState(path, params); err != nil {
		return CheckpointInfo{}, err
	}
	if info.HasOptimizer {
		// LoadStateDict validates before applying.
		if err := t.optimizer.LoadStateDict(opt); err != nil {
			return CheckpointInfo{}, fmt.Errorf("%w: %s: %w", ErrCheckpointMismatch, path, err)
		}
	}
	t.net.loadState(params)
	t.step = info.Step
	return info, nil
}

// checkState compares state with the network's parameters.
func (n *Network[B]) checkState(path string, state map[string]*tensor.RawTensor) error {
	mismatch := &MismatchError{Path: path}
	known := make(map[string]bool)
	for _, p := range n.Parameters() {
		known[p.Name()] = true
		got, ok := state[p.Name()]
		switch {
		case !ok:
			mismatch.Missing = append(mismatch.Missing, p.Name())
		case got.DType() != tensor.Float32 || !got.Shape().Equal(p.Raw().Shape()):
			mismatch.Shapes = append(mismatch.Shapes, ShapeDiff{
				Name: p.Name(),
				Want: p.Raw().Shape().Clone(),
				Got:  got.Shape().Clone(),
			})
		}
	}
	for _, name := range slices.Sorted(maps.Keys(state)) {
		if !known[name] {
			mismatch.Unexpected = append(mismatch.Unexpected, name)
		}
	}
	if mismatch.empty() {
		return nil
	}
	return mismatch
}

// loadState copies values into the live parameters. state must have passed
// checkState.
func (n *Network[B]) loadState(state map[string]*tensor.RawTensor) {
	for _, p := range n.Parameters() {
		if err := p.Raw().CopyFrom(state[p.Name()]); err != nil {
			panic(fmt.Sprintf("convnet: restore %s: %v", p.Name(), err))
		}
	}
}

func splitOptimizer(state map[string]*tensor.RawTensor) (params, opt map[string]*tensor.RawTensor) {
	params = make(map[string]*tensor.RawTensor, len(state))
	opt = make(map[string]*tensor.RawTensor)
	for name, raw := range state {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			opt[rest] = raw
		} else {
			params[name] = raw
		}
	}
	return params, opt
}

func writeCheckpoint(path string, c Config, params, opt map[string]*tensor.RawTensor, info CheckpointInfo) error {
	state := maps.Clone(params)
	for name, raw := range opt {
		state[optimizerPrefix+name] = raw
	}

	runID := info.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	header := serialization.Header{
		ModelType: ModelType,
		Metadata: map[string]string{
			"image_size":     strconv.Itoa(c.ImageSize),
			"filter_size":    strconv.Itoa(c.FilterSize),
			"conv1_channels": strconv.Itoa(c.Conv1Channels),
			"conv2_channels": strconv.Itoa(c.Conv2Channels),
			"hidden":         strconv.Itoa(c.Hidden),
			"classes":        strconv.Itoa(c.Classes),
		},
		CheckpointMeta: &serialization.CheckpointMeta{
			RunID:        runID,
			Step:         info.Step,
			Loss:         info.Loss,
			HasOptimizer: info.HasOptimizer,
		},
	}
	if info.HasOptimizer {
		header.CheckpointMeta.OptimizerType = "adam"
	}

	if err := serialization.WriteFile(path, state, header); err != nil {
		return fmt.Errorf("convnet: save checkpoint: %w", err)
	}
	return nil
}

func readCheckpoint(path string, device tensor.Device) (map[string]*tensor.RawTensor, CheckpointInfo, error) {
	r, err := serialization.OpenFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, CheckpointInfo{}, fmt.Errorf("%w: %s: %w", ErrCheckpointNotFound, path, err)
	}
	if err != nil {
		return nil, CheckpointInfo{}, fmt.Errorf("convnet: open checkpoint: %w", err)
	}

	state, err := r.ReadStateDict(device)
	if err != nil {
		return nil, CheckpointInfo{}, fmt.Errorf("convnet: read checkpoint: %w", err)
	}

	var info CheckpointInfo
	if meta := r.Header().CheckpointMeta; meta != nil {
		info = CheckpointInfo{
			RunID:        meta.RunID,
			Step:         meta.Step,
			Loss:         meta.Loss,
			HasOptimizer: meta.HasOptimizer,
		}
	}
	return state, info, nil
}
