package dataloader

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/dataset"
	"github.com/born-ml/cifarnet/internal/tensor"
	"github.com/born-ml/cifarnet/internal/vision"
)

// indexDataset returns 1x1x1 images whose single pixel is the index.
type indexDataset struct {
	n      int
	failAt int
}

func (d indexDataset) Len() int { return d.n }

func (d indexDataset) Get(i int) (dataset.Sample, error) {
	if i == d.failAt {
		return dataset.Sample{}, dataset.ErrIndexOutOfRange
	}
	img := vision.New(1, 1, 1)
	img.Pix[0] = float32(i)
	return dataset.Sample{Image: img, Label: int64(i)}, nil
}

func collect(t *testing.T, dl *DataLoader) (order []int64, sizes []int) {
	t.Helper()
	for b, err := range dl.Batches() {
		require.NoError(t, err)
		order = append(order, b.Labels...)
		sizes = append(sizes, b.Size)
	}
	return order, sizes
}

func TestBatches_EveryIndexOncePerEpoch(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"sequential", Config{BatchSize: 16}},
		{"shuffled", Config{BatchSize: 16, Shuffle: true, ShuffleBufferSize: 8, Seed: 3}},
		{"buffer larger than dataset", Config{BatchSize: 7, Shuffle: true, ShuffleBufferSize: 500, Seed: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dl := New(indexDataset{n: 100, failAt: -1}, tt.cfg)
			for range 2 {
				order, _ := collect(t, dl)
				sorted := slices.Clone(order)
				slices.Sort(sorted)
				want := make([]int64, 100)
				for i := range want {
					want[i] = int64(i)
				}
				assert.Equal(t, want, sorted)
			}
		})
	}
}

func TestBatches_SequentialKeepsOrderAndShortTail(t *testing.T) {
	dl := New(indexDataset{n: 10, failAt: -1}, Config{BatchSize: 4})
	order, sizes := collect(t, dl)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	assert.Equal(t, []int{4, 4, 2}, sizes)
	assert.Equal(t, 3, dl.NumBatches())
}

func TestBatches_ShuffleChangesAcrossEpochs(t *testing.T) {
	dl := New(indexDataset{n: 64, failAt: -1}, Config{BatchSize: 64, Shuffle: true, ShuffleBufferSize: 64, Seed: 1})
	first, _ := collect(t, dl)
	second, _ := collect(t, dl)
	assert.NotEqual(t, first, second)

	again := New(indexDataset{n: 64, failAt: -1}, Config{BatchSize: 64, Shuffle: true, ShuffleBufferSize: 64, Seed: 1})
	replay, _ := collect(t, again)
	assert.Equal(t, first, replay, "same seed gives the same order")
}

func TestBatches_DatasetErrorStopsIteration(t *testing.T) {
	dl := New(indexDataset{n: 10, failAt: 5}, Config{BatchSize: 4})
	var batches int
	var gotErr error
	for b, err := range dl.Batches() {
		if err != nil {
			gotErr = err
			continue
		}
		require.NotNil(t, b)
		batches++
	}
	assert.Equal(t, 1, batches)
	assert.True(t, errors.Is(gotErr, dataset.ErrIndexOutOfRange))
}

func TestBatches_EarlyBreak(t *testing.T) {
	dl := New(indexDataset{n: 10, failAt: -1}, Config{BatchSize: 2, Shuffle: true, ShuffleBufferSize: 4})
	n := 0
	for range dl.Batches() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestNew_InvalidBatchSize(t *testing.T) {
	assert.Panics(t, func() { New(indexDataset{n: 1}, Config{}) })
}

func TestTensors_NHWCToNCHW(t *testing.T) {
	b := &Batch{
		// One 1x2 image with 3 channels: pixel0 = (1,2,3), pixel1 = (4,5,6).
		Images: []float32{1, 2, 3, 4, 5, 6},
		Labels: []int64{7},
		Size:   1, Height: 1, Width: 2, Channels: 3,
	}
	images, labels, err := Tensors(b, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 1, 2}, images.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, images.Data())
	assert.Equal(t, []int64{7}, labels.Data())
}

func TestCollate_MixedShapes(t *testing.T) {
	_, err := collate([]dataset.Sample{
		{Image: vision.New(2, 2, 3)},
		{Image: vision.New(3, 2, 3)},
	})
	assert.ErrorIs(t, err, ErrMixedShapes)
}
