package convnet_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/digitnet/internal/convnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGraph_Structure(t *testing.T) {
	g := newNetwork(t, convnet.DefaultConfig()).Graph()

	shapes := map[string][]int{
		"input/x":                       {-1, 784},
		"input/x_image":                 {-1, 28, 28, 1},
		"conv1/W":                       {5, 5, 1, 32},
		"conv1/Conv2D":                  {-1, 28, 28, 32},
		"conv1/MaxPool":                 {-1, 14, 14, 32},
		"conv2/Conv2D":                  {-1, 14, 14, 64},
		"conv2/MaxPool":                 {-1, 7, 7, 64},
		"fc1/Flatten":                   {-1, 3136},
		"fc1/W":                         {3136, 1028},
		"fc1/Dropout/dropout":           {-1, 1028},
		"fc2/BiasAdd":                   {-1, 10},
		"Output/Softmax":                {-1, 10},
		"Training/Cost_Function/Mean":   {},
		"Validation/Mean_Accuracy/Mean": {},
	}
	for name, shape := range shapes {
		node, ok := g.Node(name)
		require.True(t, ok, name)
		assert.Equal(t, shape, node.Shape, name)
	}

	adam, ok := g.Node("Training/Optimizer/Adam")
	require.True(t, ok)
	assert.InDelta(t, 1e-4, adam.Attrs["learning_rate"], 1e-10)

	dropout, _ := g.Node("fc1/Dropout/dropout")
	assert.Equal(t, []string{"fc1/Relu", "input/keep_prob"}, dropout.Inputs)

	pool, _ := g.Node("conv2/MaxPool")
	assert.Equal(t, "SAME", pool.Attrs["padding"])

	// Every input refers to an earlier node.
	seen := map[string]bool{}
	for _, n := range g.Nodes {
		for _, in := range n.Inputs {
			assert.True(t, seen[in], "%s uses %s before it is defined", n.Name, in)
		}
		assert.False(t, seen[n.Name], "duplicate node %s", n.Name)
		seen[n.Name] = true
	}
}

func TestWriteGraph(t *testing.T) {
	g := newNetwork(t, smallConfig()).Graph()
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "save", "graph.json")
	require.NoError(t, convnet.WriteGraph(jsonPath, g))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var fromJSON convnet.GraphDef
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Len(t, fromJSON.Nodes, len(g.Nodes))
	assert.Equal(t, g.Nodes[0].Name, fromJSON.Nodes[0].Name)

	yamlPath := filepath.Join(dir, "graph.yaml")
	require.NoError(t, convnet.WriteGraph(yamlPath, g))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var fromYAML convnet.GraphDef
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	require.Len(t, fromYAML.Nodes, len(g.Nodes))
	pool, ok := fromYAML.Node("conv1/MaxPool")
	require.True(t, ok)
	assert.Equal(t, []int{-1, 4, 4, 4}, pool.Shape)
}
