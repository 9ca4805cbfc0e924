// Package train runs the supervised training loop for the CIFAR-10 model.
package train

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/dataloader"
	"github.com/born-ml/cifarnet/internal/model"
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/optim"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// ErrNoBatches is returned when a pass produced no batches.
var ErrNoBatches = errors.New("loader produced no batches")

// BatchSource yields one pass of batches per call.
type BatchSource interface {
	Batches() iter.Seq2[*dataloader.Batch, error]
}

// Config controls reporting.
type Config struct {
	// PrintFreq is the epoch interval for the structured summary. The first
	// epoch is always summarized.
	PrintFreq int
}

// Result holds averaged metrics of a pass.
type Result struct {
	Loss     float64
	Accuracy float64
	Batches  int
}

// Trainer owns the model, optimizer and gradient tape for one training run.
type Trainer[B tensor.Backend] struct {
	model     *model.CNN[*autodiff.AutodiffBackend[B]]
	optimizer optim.Optimizer
	backend   *autodiff.AutodiffBackend[B]
	loss      *nn.CrossEntropyLoss[*autodiff.AutodiffBackend[B]]
	loader    BatchSource
	cfg       Config
	out       io.Writer
	logger    *slog.Logger

	metrics    RunningMetrics
	iterations int
}

// New creates a trainer. Per-batch progress lines go to out; epoch summaries
// go to logger. A nil logger discards summaries.
func New[B tensor.Backend](
	m *model.CNN[*autodiff.AutodiffBackend[B]],
	optimizer optim.Optimizer,
	backend *autodiff.AutodiffBackend[B],
	loader BatchSource,
	cfg Config,
	out io.Writer,
	logger *slog.Logger,
) *Trainer[B] {
	if cfg.PrintFreq <= 0 {
		cfg.PrintFreq = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Trainer[B]{
		model:     m,
		optimizer: optimizer,
		backend:   backend,
		loss:      nn.NewCrossEntropyLoss(backend),
		loader:    loader,
		cfg:       cfg,
		out:       out,
		logger:    logger,
	}
}

// Iterations returns the number of optimizer steps taken so far.
func (t *Trainer[B]) Iterations() int {
	return t.iterations
}

// Run trains for the given number of epochs. After every batch a progress
// line with the running epoch averages is written. A loader error aborts the
// run.
func (t *Trainer[B]) Run(epochs int) error {
	for epoch := 1; epoch <= epochs; epoch++ {
		t.metrics.Reset()
		start := time.Now()

		for batch, err := range t.loader.Batches() {
			if err != nil {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
			loss, acc, err := t.Step(batch)
			if err != nil {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
			t.metrics.Add(loss, acc)
			fmt.Fprintf(t.out, "Epoch %d of %d took %s   train loss: %.6f   train acc: %.6f\n",
				epoch, epochs, time.Since(start).Round(time.Millisecond), t.metrics.Loss(), t.metrics.Accuracy())
		}
		if t.metrics.Batches() == 0 {
			return fmt.Errorf("epoch %d: %w", epoch, ErrNoBatches)
		}

		if epoch == 1 || epoch%t.cfg.PrintFreq == 0 {
			t.logger.Info("epoch complete",
				"epoch", epoch,
				"epochs", epochs,
				"elapsed", time.Since(start).Round(time.Millisecond),
				"loss", t.metrics.Loss(),
				"accuracy", t.metrics.Accuracy(),
				"iterations", t.iterations,
			)
		}
	}
	return nil
}

// Step performs one optimization step on a batch and returns its loss and
// accuracy.
func (t *Trainer[B]) Step(batch *dataloader.Batch) (loss, accuracy float32, err error) {
	images, labels, err := dataloader.Tensors(batch, t.backend)
	if err != nil {
		return 0, 0, err
	}

	tape := t.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	t.optimizer.ZeroGrad()

	logits := t.model.Forward(images, nn.Train)
	lossT := t.loss.Forward(logits, labels)
	grads := autodiff.Backward(lossT, t.backend)
	t.optimizer.Step(grads)

	tape.Clear()
	t.iterations++
	return lossT.Item(), nn.Accuracy(logits, labels), nil
}

// Evaluate runs the model in eval mode over one pass of loader without
// recording gradients or changing any state.
func (t *Trainer[B]) Evaluate(loader BatchSource) (Result, error) {
	tape := t.backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	var m RunningMetrics
	for batch, err := range loader.Batches() {
		if err != nil {
			return Result{}, fmt.Errorf("evaluate: %w", err)
		}
		images, labels, err := dataloader.Tensors(batch, t.backend)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate: %w", err)
		}
		logits := t.model.Forward(images, nn.Eval)
		m.Add(t.loss.Forward(logits, labels).Item(), nn.Accuracy(logits, labels))
	}
	if m.Batches() == 0 {
		return Result{}, fmt.Errorf("evaluate: %w", ErrNoBatches)
	}
	return Result{Loss: m.Loss(), Accuracy: m.Accuracy(), Batches: m.Batches()}, nil
}
