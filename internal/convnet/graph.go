package convnet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/digitnet/internal/nn"
	"gopkg.in/yaml.v3"
)

// GraphDef is the static structure of the network: named operations, their
// inputs and output shapes. It carries no parameter values.
type GraphDef struct {
	Producer string `json:"producer" yaml:"producer"`
	Nodes    []Node `json:"nodes" yaml:"nodes"`
}

// Node is one operation. Shape uses -1 for the batch dimension.
type Node struct {
	Name   string         `json:"name" yaml:"name"`
	Op     string         `json:"op" yaml:"op"`
	Inputs []string       `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Shape  []int          `json:"shape" yaml:"shape,flow"`
	Attrs  map[string]any `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// Node returns the node with the given name.
func (g GraphDef) Node(name string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

type graphBuilder struct {
	nodes []Node
}

func (b *graphBuilder) add(name, op string, shape []int, attrs map[string]any, inputs ...string) string {
	b.nodes = append(b.nodes, Node{Name: name, Op: op, Inputs: inputs, Shape: shape, Attrs: attrs})
	return name
}

func (b *graphBuilder) variable(name string, shape []int, init string, value float64) string {
	attr := "stddev"
	if init == "constant" {
		attr = "value"
	}
	return b.add(name, "Variable", shape, map[string]any{"initializer": init, attr: value})
}

func (b *graphBuilder) convBlock(scope, input string, c Config, in, out Stage) string {
	f := c.FilterSize
	w := b.variable(scope+"/W", []int{f, f, in.Channels, out.Channels}, "truncated_normal", c.InitStddev)
	bias := b.variable(scope+"/b", []int{out.Channels}, "constant", nn.DefaultBias)

	// Stride-1 SAME convolution keeps the input side; pooling produces out.
	full := []int{-1, in.Height, in.Width, out.Channels}
	conv := b.add(scope+"/Conv2D", "Conv2D", full, map[string]any{
		"strides": []int{1, 1, 1, 1},
		"padding": "SAME",
	}, input, w)
	add := b.add(scope+"/BiasAdd", "BiasAdd", full, nil, conv, bias)
	relu := b.add(scope+"/Relu", "Relu", full, nil, add)
	return b.add(scope+"/MaxPool", "MaxPool", []int{-1, out.Height, out.Width, out.Channels}, map[string]any{
		"ksize":   []int{1, c.PoolSize, c.PoolSize, 1},
		"strides": []int{1, c.PoolSize, c.PoolSize, 1},
		"padding": "SAME",
	}, relu)
}

func (b *graphBuilder) dense(scope, input string, c Config, in, out int) string {
	w := b.variable(scope+"/W", []int{in, out}, "truncated_normal", c.InitStddev)
	bias := b.variable(scope+"/b", []int{out}, "constant", nn.DefaultBias)
	mm := b.add(scope+"/MatMul", "MatMul", []int{-1, out}, nil, input, w)
	return b.add(scope+"/BiasAdd", "BiasAdd", []int{-1, out}, nil, mm, bias)
}

// Graph describes the network's forward, training and validation operations.
func (n *Network[B]) Graph() GraphDef {
	c, p := n.config, n.plan
	b := &graphBuilder{}

	x := b.add("input/x", "Placeholder", []int{-1, c.InputSize()}, nil)
	y := b.add("input/y_", "Placeholder", []int{-1, c.Classes}, nil)
	keep := b.add("input/keep_prob", "Placeholder", []int{}, nil)
	image := b.add("input/x_image", "Reshape", []int{-1, c.ImageSize, c.ImageSize, c.InputChannels}, nil, x)

	h := b.convBlock("conv1", image, c, Stage{Height: c.ImageSize, Width: c.ImageSize, Channels: c.InputChannels}, p.Conv1)
	h = b.convBlock("conv2", h, c, p.Conv1, p.Conv2)

	flat := b.add("fc1/Flatten", "Reshape", []int{-1, p.Flattened}, nil, h)
	h = b.dense("fc1", flat, c, p.Flattened, p.Hidden)
	h = b.add("fc1/Relu", "Relu", []int{-1, p.Hidden}, nil, h)
	h = b.add("fc1/Dropout/dropout", "Dropout", []int{-1, p.Hidden}, nil, h, keep)

	logits := b.dense("fc2", h, c, p.Hidden, p.Classes)
	b.add("Output/Softmax", "Softmax", []int{-1, p.Classes}, nil, logits)

	xent := b.add("Training/Cost_Function/SoftmaxCrossEntropyWithLogits", "SoftmaxCrossEntropyWithLogits", []int{-1}, nil, logits, y)
	cost := b.add("Training/Cost_Function/Mean", "Mean", []int{}, nil, xent)
	b.add("Training/Optimizer/Adam", "Adam", []int{}, map[string]any{
		"learning_rate": float64(c.LearningRate),
		"beta1":         0.9,
		"beta2":         0.999,
		"epsilon":       1e-8,
	}, cost)

	predicted := b.add("Validation/Correct_Pred/ArgMax", "ArgMax", []int{-1}, nil, logits)
	truth := b.add("Validation/Correct_Pred/ArgMax_1", "ArgMax", []int{-1}, nil, y)
	equal := b.add("Validation/Correct_Pred/Equal", "Equal", []int{-1}, nil, predicted, truth)
	b.add("Validation/Mean_Accuracy/Mean", "Mean", []int{}, nil, equal)

	return GraphDef{Producer: "digitnet", Nodes: b.nodes}
}

// WriteGraph writes g to path as indented JSON, or as YAML when the path ends
// in .yaml or .yml. Parent directories are created.
func WriteGraph(path string, g GraphDef) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(g)
	default:
		data, err = json.MarshalIndent(g, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("convnet: encode graph: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("convnet: create graph directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("convnet: write graph: %w", err)
	}
	return nil
}
