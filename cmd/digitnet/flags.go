package main

import (
	"errors"
	"flag"
	"io"
	"log/slog"

	"github.com/born-ml/digitnet/internal/config"
	"github.com/born-ml/digitnet/internal/convnet"
	"github.com/born-ml/digitnet/internal/dataset"
)

// errUsage marks a flag parsing failure that flag has already reported.
var errUsage = errors.New("usage")

// flagSet binds command-line flags to configuration fields. Only flags given
// on the command line override the configuration file.
type flagSet struct {
	fs         *flag.FlagSet
	configPath string
	setters    map[string]func(*config.Config)
	defaults   config.Config
}

func newFlagSet(name string, stderr io.Writer) *flagSet {
	f := &flagSet{
		fs:       flag.NewFlagSet("digitnet "+name, flag.ContinueOnError),
		setters:  make(map[string]func(*config.Config)),
		defaults: config.Default(),
	}
	f.fs.SetOutput(stderr)
	f.fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	f.str("data", "directory containing the MNIST IDX files", func(c *config.Config) *string { return &c.Data.Dir })
	f.boolean("synthetic", "use generated digits instead of MNIST files", func(c *config.Config) *bool { return &c.Data.Synthetic })
	f.integer("synthetic-size", "number of generated training digits", func(c *config.Config) *int { return &c.Data.SyntheticSize })
	f.str("checkpoint", "checkpoint path", func(c *config.Config) *string { return &c.Paths.Checkpoint })
	f.str("log-level", "log level: debug, info, warn, error", func(c *config.Config) *string { return &c.Log.Level })
	f.str("log-format", "log format: text or json", func(c *config.Config) *string { return &c.Log.Format })
	return f
}

func (f *flagSet) str(name, usage string, field func(*config.Config) *string) {
	v := f.fs.String(name, *field(&f.defaults), usage)
	f.setters[name] = func(c *config.Config) { *field(c) = *v }
}

func (f *flagSet) integer(name, usage string, field func(*config.Config) *int) {
	v := f.fs.Int(name, *field(&f.defaults), usage)
	f.setters[name] = func(c *config.Config) { *field(c) = *v }
}

func (f *flagSet) unsigned(name, usage string, field func(*config.Config) *uint64) {
	v := f.fs.Uint64(name, *field(&f.defaults), usage)
	f.setters[name] = func(c *config.Config) { *field(c) = *v }
}

func (f *flagSet) float(name, usage string, field func(*config.Config) *float32) {
	v := f.fs.Float64(name, float64(*field(&f.defaults)), usage)
	f.setters[name] = func(c *config.Config) { *field(c) = float32(*v) }
}

func (f *flagSet) boolean(name, usage string, field func(*config.Config) *bool) {
	v := f.fs.Bool(name, *field(&f.defaults), usage)
	f.setters[name] = func(c *config.Config) { *field(c) = *v }
}

// parse reads args, loads the configuration file if one was given, applies
// explicit flags and validates the result.
func (f *flagSet) parse(args []string) (config.Config, error) {
	if err := f.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return config.Config{}, err
		}
		return config.Config{}, errUsage
	}

	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, err
		}
	}
	f.fs.Visit(func(fl *flag.Flag) {
		if set, ok := f.setters[fl.Name]; ok {
			set(&cfg)
		}
	})
	return cfg, cfg.Validate()
}

// networkConfig derives the network assembly from the run configuration.
func networkConfig(cfg config.Config) convnet.Config {
	c := convnet.DefaultConfig()
	c.Seed = cfg.Train.Seed
	c.LearningRate = cfg.Train.LearningRate
	return c
}

// loadData reads MNIST from disk or generates synthetic digits; the
// synthetic test split is a fifth of the training size.
func loadData(cfg config.Config, logger *slog.Logger) (*dataset.Sets, error) {
	if cfg.Data.Synthetic {
		size := cfg.Data.SyntheticSize
		logger.Info("generating synthetic digits", "train", size, "test", max(size/5, 1))
		return dataset.SyntheticSets(size, max(size/5, 1), cfg.Data.Seed)
	}
	logger.Info("loading MNIST", "dir", cfg.Data.Dir)
	sets, err := dataset.Load(cfg.Data.Dir, cfg.Data.Seed)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded MNIST", "train", sets.Train.Len(), "test", sets.Test.Len())
	return sets, nil
}
