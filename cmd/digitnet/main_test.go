package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/digitnet/internal/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_UsageAndVersion(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage: digitnet")
	assert.Contains(t, stderr, "export-graph")

	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "digitnet "+version+"\n", stdout)

	code, _, stderr = runCLI(t, "fit")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "fit"`)

	code, _, _ = runCLI(t, "train", "-no-such-flag")
	assert.Equal(t, 2, code)
}

func TestRun_TrainEvaluatePredict(t *testing.T) {
	dir := t.TempDir()
	checkpoint := filepath.Join(dir, "save", "model.born")
	summaryPath := filepath.Join(dir, "summary.jsonl")
	graph := filepath.Join(dir, "graph.json")
	common := []string{"-synthetic", "-synthetic-size", "20", "-checkpoint", checkpoint, "-log-level", "error"}

	code, stdout, stderr := runCLI(t, append([]string{"train",
		"-steps", "3", "-batch", "4", "-log-every", "2", "-summary", summaryPath, "-save-optimizer"}, common...)...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Train Accuracy @Step 0:")
	assert.Contains(t, stdout, "Train Accuracy @Step 2:")
	assert.NotContains(t, stdout, "@Step 1:")
	assert.Contains(t, stdout, "Elapsed Training Time:")
	assert.Contains(t, stdout, "Model saved in file: "+checkpoint)
	assert.FileExists(t, checkpoint)

	f, err := os.Open(summaryPath)
	require.NoError(t, err)
	records, err := summary.Read(f)
	f.Close()
	require.NoError(t, err)
	require.Len(t, records, 9)
	assert.Equal(t, int64(0), records[0].Step)
	assert.Equal(t, int64(2), records[len(records)-1].Step)

	code, stdout, stderr = runCLI(t, append([]string{"train", "-resume", "-steps", "1", "-batch", "4", "-log-every", "3"}, common...)...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Train Accuracy @Step 3:", "step numbers continue after a resume")
	assert.Contains(t, stdout, "Model saved in file:")

	code, stdout, stderr = runCLI(t, append([]string{"evaluate", "-batch", "2", "-batches", "3", "-graph", graph}, common...)...)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 3, strings.Count(stdout, "Test Accuracy @Step"))
	assert.Contains(t, stdout, "Mean Test Accuracy:")
	assert.FileExists(t, graph)

	code, stdout, stderr = runCLI(t, append([]string{"predict", "-n", "3"}, common...)...)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 3, strings.Count(stdout, "predicted"))
}

func TestRun_EvaluateMissingCheckpoint(t *testing.T) {
	code, _, stderr := runCLI(t, "evaluate", "-synthetic", "-synthetic-size", "10",
		"-checkpoint", filepath.Join(t.TempDir(), "none.born"), "-log-level", "error")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "checkpoint not found")
}

func TestRun_ExportGraph(t *testing.T) {
	out := filepath.Join(t.TempDir(), "graph.yaml")
	code, stdout, stderr := runCLI(t, "export-graph", "-out", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Graph written to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: conv1/Conv2D")
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "digitnet.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("train:\n  keep_probability: 2\n"), 0o644))

	code, _, stderr := runCLI(t, "train", "-config", cfgPath, "-synthetic")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "train.keep_probability")

	// An explicit flag overrides the file.
	code, _, stderr = runCLI(t, "train", "-config", cfgPath, "-synthetic", "-synthetic-size", "10",
		"-keep", "1", "-steps", "0", "-checkpoint", filepath.Join(dir, "m.born"), "-log-level", "error")
	assert.Equal(t, 0, code, stderr)
}
