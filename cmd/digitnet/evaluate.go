package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/config"
	"github.com/born-ml/digitnet/internal/convnet"
	"github.com/born-ml/digitnet/internal/tensor"
)

// restoreNetwork assembles an inference network and loads the checkpoint.
func restoreNetwork(cfg config.Config) (*convnet.Network[*cpu.CPUBackend], convnet.CheckpointInfo, error) {
	net, err := convnet.NewNetwork(networkConfig(cfg), cpu.New())
	if err != nil {
		return nil, convnet.CheckpointInfo{}, err
	}
	info, err := net.Restore(cfg.Paths.Checkpoint)
	if err != nil {
		return nil, info, err
	}
	return net, info, nil
}

func runEvaluate(args []string, stdout, stderr io.Writer) error {
	f := newFlagSet("evaluate", stderr)
	f.integer("batch", "test batch size", func(c *config.Config) *int { return &c.Eval.BatchSize })
	f.integer("batches", "number of test batches", func(c *config.Config) *int { return &c.Eval.Batches })
	f.str("graph", "graph export path (.json, .yaml or .yml); empty to skip", func(c *config.Config) *string { return &c.Paths.Graph })

	cfg, err := f.parse(args)
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(stderr)

	sets, err := loadData(cfg, logger)
	if err != nil {
		return err
	}
	net, info, err := restoreNetwork(cfg)
	if err != nil {
		return err
	}
	logger.Info("restored", "checkpoint", cfg.Paths.Checkpoint, "step", info.Step, "run_id", info.RunID)

	var correct, total int
	for i := 0; i < cfg.Eval.Batches; i++ {
		m, err := net.Evaluate(sets.Test.NextBatch(cfg.Eval.BatchSize))
		if err != nil {
			return err
		}
		correct += m.Correct
		total += m.Size
		fmt.Fprintf(stdout, "Test Accuracy @Step %d: %.1f%%\n", i, m.Accuracy*100)
	}
	fmt.Fprintf(stdout, "Mean Test Accuracy: %.1f%%\n", float64(correct)/float64(total)*100)

	if cfg.Paths.Graph != "" {
		if err := convnet.WriteGraph(cfg.Paths.Graph, net.Graph()); err != nil {
			return err
		}
		logger.Info("exported graph", "path", cfg.Paths.Graph)
	}
	return nil
}

func runPredict(args []string, stdout, stderr io.Writer) error {
	f := newFlagSet("predict", stderr)
	n := f.fs.Int("n", 10, "number of test images to classify")
	start := f.fs.Int("start", 0, "index of the first test image")

	cfg, err := f.parse(args)
	if err != nil {
		return err
	}
	if *n <= 0 || *start < 0 {
		return errors.New("-n must be positive and -start non-negative")
	}
	logger := cfg.Log.NewLogger(stderr)

	sets, err := loadData(cfg, logger)
	if err != nil {
		return err
	}
	net, _, err := restoreNetwork(cfg)
	if err != nil {
		return err
	}

	batch := sets.Test.Batch(*start, *n)
	images, err := tensor.FromSlice(batch.Images, tensor.Shape{batch.Size, net.Config().InputSize()}, net.Backend())
	if err != nil {
		return err
	}
	probs := net.Predict(images)
	predicted := probs.Argmax().Data()
	truth, err := tensor.FromSlice(batch.Labels, tensor.Shape{batch.Size, net.Config().Classes}, net.Backend())
	if err != nil {
		return err
	}
	labels := truth.Argmax().Data()

	for i, p := range predicted {
		fmt.Fprintf(stdout, "Image %d: predicted %d (p=%.3f), label %d\n",
			(*start+i)%sets.Test.Len(), p, probs.At(i, int(p)), labels[i])
	}
	return nil
}

func runExportGraph(args []string, stdout, stderr io.Writer) error {
	f := newFlagSet("export-graph", stderr)
	f.str("out", "output path (.json, .yaml or .yml)", func(c *config.Config) *string { return &c.Paths.Graph })

	cfg, err := f.parse(args)
	if err != nil {
		return err
	}
	if cfg.Paths.Graph == "" {
		return errors.New("-out is required")
	}

	net, err := convnet.NewNetwork(networkConfig(cfg), cpu.New())
	if err != nil {
		return err
	}
	if err := convnet.WriteGraph(cfg.Paths.Graph, net.Graph()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Graph written to %s (%d nodes)\n", cfg.Paths.Graph, len(net.Graph().Nodes))
	return nil
}
