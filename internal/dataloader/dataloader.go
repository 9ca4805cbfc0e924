// Package dataloader groups dataset samples into training batches.
package dataloader

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"

	"github.com/born-ml/cifarnet/internal/dataset"
)

// ErrMixedShapes is returned when samples within one batch differ in shape.
var ErrMixedShapes = errors.New("samples in batch have different shapes")

// Config controls batching.
type Config struct {
	BatchSize int
	// Shuffle enables the bounded shuffle buffer. Disabled means dataset order.
	Shuffle bool
	// ShuffleBufferSize is the number of indices held for random selection.
	// Values below 1 are treated as 1 (no shuffling).
	ShuffleBufferSize int
	Seed              uint64
}

// DataLoader yields batches of samples from a dataset.
//
// Each call to Batches starts a new pass over the dataset. The loader's
// random source keeps advancing between passes, so every epoch is shuffled
// differently while the whole sequence stays reproducible from Seed.
type DataLoader struct {
	ds  dataset.Dataset
	cfg Config
	rng *rand.Rand
}

// New creates a loader. It panics if BatchSize is not positive.
func New(ds dataset.Dataset, cfg Config) *DataLoader {
	if cfg.BatchSize <= 0 {
		panic(fmt.Sprintf("dataloader: batch size must be positive, got %d", cfg.BatchSize))
	}
	return &DataLoader{
		ds:  ds,
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xda7a10ad)),
	}
}

// NumBatches returns the number of batches per pass; the last may be short.
func (dl *DataLoader) NumBatches() int {
	return (dl.ds.Len() + dl.cfg.BatchSize - 1) / dl.cfg.BatchSize
}

// Len returns the dataset size.
func (dl *DataLoader) Len() int {
	return dl.ds.Len()
}

// Batches iterates over one pass of the dataset. A dataset error ends the
// pass and is yielded with a nil batch.
func (dl *DataLoader) Batches() iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		var samples []dataset.Sample
		for idx := range dl.indices() {
			s, err := dl.ds.Get(idx)
			if err != nil {
				yield(nil, fmt.Errorf("load sample %d: %w", idx, err))
				return
			}
			samples = append(samples, s)
			if len(samples) < dl.cfg.BatchSize {
				continue
			}
			if !dl.emit(samples, yield) {
				return
			}
			samples = samples[:0]
		}
		if len(samples) > 0 {
			dl.emit(samples, yield)
		}
	}
}

func (dl *DataLoader) emit(samples []dataset.Sample, yield func(*Batch, error) bool) bool {
	b, err := collate(samples)
	if err != nil {
		yield(nil, err)
		return false
	}
	return yield(b, nil)
}

// indices yields dataset indices for one pass. With shuffling on, a buffer
// is filled from the sequential stream; a random slot is emitted and
// refilled until the stream ends, then the buffer drains in random order.
func (dl *DataLoader) indices() iter.Seq[int] {
	n := dl.ds.Len()
	if !dl.cfg.Shuffle || dl.cfg.ShuffleBufferSize <= 1 {
		return func(yield func(int) bool) {
			for i := range n {
				if !yield(i) {
					return
				}
			}
		}
	}
	return func(yield func(int) bool) {
		buf := make([]int, 0, dl.cfg.ShuffleBufferSize)
		next := 0
		for ; next < n && len(buf) < cap(buf); next++ {
			buf = append(buf, next)
		}
		for ; next < n; next++ {
			slot := dl.rng.IntN(len(buf))
			if !yield(buf[slot]) {
				return
			}
			buf[slot] = next
		}
		for len(buf) > 0 {
			slot := dl.rng.IntN(len(buf))
			if !yield(buf[slot]) {
				return
			}
			last := len(buf) - 1
			buf[slot] = buf[last]
			buf = buf[:last]
		}
	}
}
