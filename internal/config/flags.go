package config

import (
	"flag"
	"fmt"
	"io"
)

// Options is the parsed command line.
type Options struct {
	Config     Config
	ConfigPath string
	DataDir    string
	// Synthetic, when positive, replaces CIFAR-10 with that many generated
	// training samples.
	Synthetic int
	Evaluate  bool
}

// FromArgs parses args (without the program name). Settings are layered as
// defaults, then the -config file, then explicitly set flags. The result is
// validated.
func FromArgs(args []string, output io.Writer) (Options, error) {
	fs := flag.NewFlagSet("cifarnet", flag.ContinueOnError)
	fs.SetOutput(output)

	var opts Options
	flags := Default()
	fs.StringVar(&opts.ConfigPath, "config", "", "YAML config file")
	fs.StringVar(&opts.DataDir, "data", "./cifar-10-batches-bin", "directory containing the CIFAR-10 binary batches")
	fs.IntVar(&opts.Synthetic, "synthetic", 0, "train on N generated samples instead of CIFAR-10")
	fs.BoolVar(&opts.Evaluate, "evaluate", false, "evaluate on the test split after training")

	fs.IntVar(&flags.BatchSize, "batch-size", flags.BatchSize, "batch size")
	fs.IntVar(&flags.Epochs, "epochs", flags.Epochs, "number of epochs")
	fs.Float64Var(&flags.LearningRate, "lr", flags.LearningRate, "learning rate")
	fs.IntVar(&flags.PrintFreq, "print-freq", flags.PrintFreq, "epoch interval for summaries")
	fs.IntVar(&flags.ShuffleBufferSize, "shuffle-buffer", flags.ShuffleBufferSize, "shuffle buffer size")
	fs.IntVar(&flags.CropSize, "crop-size", flags.CropSize, "training crop size")
	fs.StringVar(&flags.Backend, "backend", flags.Backend, "compute backend (cpu, cpu-serial)")
	fs.Uint64Var(&flags.Seed, "seed", flags.Seed, "random seed")
	fs.StringVar(&flags.Optimizer, "optimizer", flags.Optimizer, "optimizer (adam, sgd)")
	fs.Float64Var(&flags.Momentum, "momentum", flags.Momentum, "sgd momentum")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if fs.NArg() > 0 {
		return Options{}, fmt.Errorf("%w: unexpected arguments %v", ErrInvalid, fs.Args())
	}

	cfg := Default()
	if opts.ConfigPath != "" {
		loaded, err := Load(opts.ConfigPath)
		if err != nil {
			return Options{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "batch-size":
			cfg.BatchSize = flags.BatchSize
		case "epochs":
			cfg.Epochs = flags.Epochs
		case "lr":
			cfg.LearningRate = flags.LearningRate
		case "print-freq":
			cfg.PrintFreq = flags.PrintFreq
		case "shuffle-buffer":
			cfg.ShuffleBufferSize = flags.ShuffleBufferSize
		case "crop-size":
			cfg.CropSize = flags.CropSize
		case "backend":
			cfg.Backend = flags.Backend
		case "seed":
			cfg.Seed = flags.Seed
		case "optimizer":
			cfg.Optimizer = flags.Optimizer
		case "momentum":
			cfg.Momentum = flags.Momentum
		}
	})

	if opts.Synthetic < 0 {
		return Options{}, fmt.Errorf("%w: synthetic must not be negative, got %d", ErrInvalid, opts.Synthetic)
	}
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	opts.Config = cfg
	return opts, nil
}
