// Package main provides the cifarnet training CLI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/backend"
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/config"
	"github.com/born-ml/cifarnet/internal/dataloader"
	"github.com/born-ml/cifarnet/internal/dataset"
	"github.com/born-ml/cifarnet/internal/model"
	"github.com/born-ml/cifarnet/internal/optim"
	"github.com/born-ml/cifarnet/internal/train"
	"github.com/born-ml/cifarnet/internal/vision"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("cifarnet %s\n", version)
		return
	}

	opts, err := config.FromArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(opts, os.Stdout, logger); err != nil {
		log.Fatalf("cifarnet: %v", err)
	}
}

func run(opts config.Options, out io.Writer, logger *slog.Logger) error {
	cfg := opts.Config

	inner, err := backend.Resolve(cfg.Backend)
	if err != nil {
		return err
	}
	ad := autodiff.New(inner)
	logger.Info("backend", "name", ad.Name(), "cpu", inner.Describe())

	trainSplit, testSplit, err := loadData(opts)
	if err != nil {
		return err
	}
	aug := cfg.Augment()
	trainDS, err := dataset.FromSplit(trainSplit, vision.TrainTransforms(aug), cfg.Seed)
	if err != nil {
		return fmt.Errorf("train dataset: %w", err)
	}
	loader := dataloader.New(trainDS, dataloader.Config{
		BatchSize:         cfg.BatchSize,
		Shuffle:           true,
		ShuffleBufferSize: cfg.ShuffleBufferSize,
		Seed:              cfg.Seed,
	})

	net := model.NewCNN(ad, rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)))
	logger.Info("model", "parameters", net.NumParameters(), "samples", trainDS.Len(), "batches", loader.NumBatches())

	optimizer := newOptimizer(cfg, net, ad)
	trainer := train.New(net, optimizer, ad, loader, train.Config{PrintFreq: cfg.PrintFreq}, out, logger)
	if err := trainer.Run(cfg.Epochs); err != nil {
		return fmt.Errorf("train: %w", err)
	}

	if !opts.Evaluate {
		return nil
	}
	testDS, err := dataset.FromSplit(testSplit, vision.EvalTransforms(aug), cfg.Seed)
	if err != nil {
		return fmt.Errorf("test dataset: %w", err)
	}
	result, err := trainer.Evaluate(dataloader.New(testDS, dataloader.Config{BatchSize: cfg.BatchSize}))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "   test loss: %.6f\n   test acc:  %.6f\n", result.Loss, result.Accuracy)
	return nil
}

// loadData returns CIFAR-10 from the data directory, or generated splits
// when -synthetic is set. The generated test split is a fifth of the
// training size.
func loadData(opts config.Options) (trainSplit, testSplit dataset.Split, err error) {
	if opts.Synthetic > 0 {
		seed := opts.Config.Seed
		return dataset.Synthetic(opts.Synthetic, 32, 32, seed),
			dataset.Synthetic(max(opts.Synthetic/5, 1), 32, 32, seed+1), nil
	}
	trainSplit, testSplit, err = dataset.LoadCIFAR10(opts.DataDir)
	if err != nil {
		return dataset.Split{}, dataset.Split{}, fmt.Errorf("load CIFAR-10 from %s: %w", opts.DataDir, err)
	}
	return trainSplit, testSplit, nil
}

func newOptimizer(cfg config.Config, net *model.CNN[*autodiff.AutodiffBackend[*cpu.CPUBackend]], ad *autodiff.AutodiffBackend[*cpu.CPUBackend]) optim.Optimizer {
	if cfg.Optimizer == config.OptimizerSGD {
		return optim.NewSGD(net.Parameters(), optim.SGDConfig{
			LR:       float32(cfg.LearningRate),
			Momentum: float32(cfg.Momentum),
		}, ad)
	}
	return optim.NewAdam(net.Parameters(), optim.AdamConfig{
		LR:    float32(cfg.LearningRate),
		Betas: [2]float32{0.9, 0.999},
		Eps:   1e-8,
	}, ad)
}
