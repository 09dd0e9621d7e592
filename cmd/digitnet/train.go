package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/born-ml/digitnet/internal/autodiff"
	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/config"
	"github.com/born-ml/digitnet/internal/convnet"
	"github.com/born-ml/digitnet/internal/summary"
)

func runTrain(args []string, stdout, stderr io.Writer) error {
	f := newFlagSet("train", stderr)
	f.integer("steps", "number of training steps", func(c *config.Config) *int { return &c.Train.Steps })
	f.integer("batch", "training batch size", func(c *config.Config) *int { return &c.Train.BatchSize })
	f.float("keep", "dropout keep probability", func(c *config.Config) *float32 { return &c.Train.KeepProbability })
	f.float("lr", "Adam learning rate", func(c *config.Config) *float32 { return &c.Train.LearningRate })
	f.integer("log-every", "report training accuracy every n steps", func(c *config.Config) *int { return &c.Train.LogEvery })
	f.unsigned("seed", "weight initialization and dropout seed", func(c *config.Config) *uint64 { return &c.Train.Seed })
	f.boolean("skip-non-finite", "skip steps whose loss is NaN or infinite", func(c *config.Config) *bool { return &c.Train.SkipNonFinite })
	f.boolean("save-optimizer", "store optimizer state in the checkpoint", func(c *config.Config) *bool { return &c.Train.SaveOptimizer })
	f.str("summary", "write per-step scalars to this JSON-lines file", func(c *config.Config) *string { return &c.Paths.Summary })
	resume := f.fs.Bool("resume", false, "continue from the checkpoint")

	cfg, err := f.parse(args)
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(stderr)

	sets, err := loadData(cfg, logger)
	if err != nil {
		return err
	}

	base := cpu.New()
	logger.Info("backend", "name", base.Name(), "workers", base.Workers(), "cpu", base.Describe())
	net, err := convnet.NewNetwork(networkConfig(cfg), autodiff.New(base))
	if err != nil {
		return err
	}
	logger.Info("network assembled", "parameters", net.NumParameters())
	logger.Debug(net.String())

	trainer := convnet.NewTrainer(net, convnet.TrainerOptions{
		LearningRate:  cfg.Train.LearningRate,
		SkipNonFinite: cfg.Train.SkipNonFinite,
		Logger:        logger,
	})
	if *resume {
		info, err := trainer.Restore(cfg.Paths.Checkpoint)
		if err != nil {
			return err
		}
		trainer.Optimizer().SetLR(cfg.Train.LearningRate)
		logger.Info("resumed", "checkpoint", cfg.Paths.Checkpoint, "step", info.Step, "run_id", info.RunID, "optimizer", info.HasOptimizer)
	}

	var sw *summary.Writer
	if cfg.Paths.Summary != "" {
		if sw, err = summary.Create(cfg.Paths.Summary); err != nil {
			return err
		}
		defer sw.Close()
	}

	keep := cfg.Train.KeepProbability
	var lastLoss float32
	start := time.Now()
	for i := 0; i < cfg.Train.Steps; i++ {
		// Zero-based index of the step about to run, continuing across resumes.
		step := trainer.StepCount()
		batch := sets.Train.NextBatch(cfg.Train.BatchSize)

		if step%int64(cfg.Train.LogEvery) == 0 {
			m, err := trainer.Evaluate(batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Train Accuracy @Step %d: %.1f%%\n", step, m.Accuracy*100)
		}

		res, err := trainer.Step(batch, keep)
		if errors.Is(err, convnet.ErrNonFiniteLoss) {
			continue
		}
		if err != nil {
			return err
		}
		lastLoss = res.Loss
		sw.Step(step, res.Accuracy, res.Loss, keep)
	}
	fmt.Fprintf(stdout, "Elapsed Training Time: %s\n", time.Since(start).Round(time.Millisecond))

	if err := trainer.Save(cfg.Paths.Checkpoint, float64(lastLoss), cfg.Train.SaveOptimizer); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Model saved in file: %s\n", cfg.Paths.Checkpoint)
	logger.Info("saved checkpoint", "path", cfg.Paths.Checkpoint, "step", trainer.StepCount(), "loss", lastLoss)
	return sw.Close()
}
