// Package config holds run configuration for the digitnet command: defaults,
// an optional YAML file and validation.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete run configuration.
type Config struct {
	Data  Data  `yaml:"data"`
	Train Train `yaml:"train"`
	Eval  Eval  `yaml:"eval"`
	Paths Paths `yaml:"paths"`
	Log   Log   `yaml:"log"`
}

// Data selects the dataset.
type Data struct {
	Dir           string `yaml:"dir"`            // directory with the MNIST IDX files
	Synthetic     bool   `yaml:"synthetic"`      // generate digits instead of reading Dir
	SyntheticSize int    `yaml:"synthetic_size"` // training examples when synthetic; test gets a fifth
	Seed          uint64 `yaml:"seed"`           // batch shuffling
}

// Train configures the training loop.
type Train struct {
	BatchSize       int     `yaml:"batch_size"`
	Steps           int     `yaml:"steps"`
	KeepProbability float32 `yaml:"keep_probability"`
	LearningRate    float32 `yaml:"learning_rate"`
	LogEvery        int     `yaml:"log_every"`
	SkipNonFinite   bool    `yaml:"skip_non_finite"`
	SaveOptimizer   bool    `yaml:"save_optimizer"`
	Seed            uint64  `yaml:"seed"` // weight initialization and dropout
}

// Eval configures the evaluation loop.
type Eval struct {
	BatchSize int `yaml:"batch_size"`
	Batches   int `yaml:"batches"`
}

// Paths locates the files a run reads and writes.
type Paths struct {
	Checkpoint string `yaml:"checkpoint"`
	Graph      string `yaml:"graph"`
	Summary    string `yaml:"summary"` // empty disables summaries
}

// Log configures diagnostics on stderr.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration of the reference MNIST run: 20000 steps
// of 50 examples at keep probability 0.5, evaluated on ten test batches.
func Default() Config {
	return Config{
		Data: Data{
			Dir:           "MNIST_data",
			SyntheticSize: 2000,
			Seed:          1,
		},
		Train: Train{
			BatchSize:       50,
			Steps:           20000,
			KeepProbability: 0.5,
			LearningRate:    1e-4,
			LogEvery:        100,
			Seed:            1,
		},
		Eval: Eval{
			BatchSize: 50,
			Batches:   10,
		},
		Paths: Paths{
			Checkpoint: "save/mnistNN.born",
			Graph:      "save/mnistNN.json",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Data.Synthetic || c.Data.Dir != "", "data.dir is required unless data.synthetic is set")
	check(!c.Data.Synthetic || c.Data.SyntheticSize > 0, "data.synthetic_size must be positive, got %d", c.Data.SyntheticSize)
	check(c.Train.BatchSize > 0, "train.batch_size must be positive, got %d", c.Train.BatchSize)
	check(c.Train.Steps >= 0, "train.steps must not be negative, got %d", c.Train.Steps)
	check(c.Train.KeepProbability > 0 && c.Train.KeepProbability <= 1,
		"train.keep_probability must be in (0, 1], got %v", c.Train.KeepProbability)
	check(c.Train.LearningRate > 0, "train.learning_rate must be positive, got %v", c.Train.LearningRate)
	check(c.Train.LogEvery > 0, "train.log_every must be positive, got %d", c.Train.LogEvery)
	check(c.Eval.BatchSize > 0, "eval.batch_size must be positive, got %d", c.Eval.BatchSize)
	check(c.Eval.Batches > 0, "eval.batches must be positive, got %d", c.Eval.Batches)
	check(c.Paths.Checkpoint != "", "paths.checkpoint is required")

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}
