package train

import (
	"bytes"
	"iter"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/dataloader"
	"github.com/born-ml/cifarnet/internal/dataset"
	"github.com/born-ml/cifarnet/internal/model"
	"github.com/born-ml/cifarnet/internal/optim"
	"github.com/born-ml/cifarnet/internal/vision"
)

type fixture struct {
	trainer *Trainer[*cpu.CPUBackend]
	model   *model.CNN[*autodiff.AutodiffBackend[*cpu.CPUBackend]]
	loader  *dataloader.DataLoader
	out     *bytes.Buffer
	log     *bytes.Buffer
}

func newFixture(t *testing.T, samples int, transform vision.Transform) fixture {
	t.Helper()
	ds, err := dataset.FromSplit(dataset.Synthetic(samples, 32, 32, 1), transform, 2)
	require.NoError(t, err)
	loader := dataloader.New(ds, dataloader.Config{BatchSize: 128, Shuffle: true, ShuffleBufferSize: 128, Seed: 3})

	backend := autodiff.New(cpu.New())
	m := model.NewCNN(backend, rand.New(rand.NewPCG(1, 2)))
	opt := optim.NewAdam(m.Parameters(), optim.AdamConfig{LR: 1e-4}, backend)

	f := fixture{model: m, loader: loader, out: &bytes.Buffer{}, log: &bytes.Buffer{}}
	logger := slog.New(slog.NewTextHandler(f.log, nil))
	f.trainer = New(m, opt, backend, loader, Config{PrintFreq: 5}, f.out, logger)
	return f
}

func TestRun_OneLinePerBatch(t *testing.T) {
	f := newFixture(t, 256, vision.TrainTransforms(vision.DefaultAugment()))
	require.NoError(t, f.trainer.Run(1))

	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "Epoch 1 of 1 took "), line)
		assert.Contains(t, line, "train loss: ")
		assert.Contains(t, line, "train acc: ")
		assert.NotContains(t, line, "train loss: -")
		assert.NotContains(t, line, "train acc: -")
	}
	assert.Equal(t, 2, f.trainer.Iterations())
	assert.Contains(t, f.log.String(), "epoch complete")
}

func TestStep_ChangesParameters(t *testing.T) {
	f := newFixture(t, 8, vision.EvalTransforms(vision.DefaultAugment()))
	before := make([][]float32, 0)
	for _, p := range f.model.Parameters() {
		before = append(before, append([]float32(nil), p.Tensor().Data()...))
	}

	var batch *dataloader.Batch
	for b, err := range f.loader.Batches() {
		require.NoError(t, err)
		batch = b
	}
	loss, acc, err := f.trainer.Step(batch)
	require.NoError(t, err)
	assert.Greater(t, loss, float32(0))
	assert.GreaterOrEqual(t, acc, float32(0))

	changed := false
	for i, p := range f.model.Parameters() {
		if !assert.ObjectsAreEqual(before[i], p.Tensor().Data()) {
			changed = true
		}
		assert.NotNil(t, p.Grad(), "parameter %d has no gradient", i)
	}
	assert.True(t, changed)
}

func TestEvaluate_LeavesStateUntouched(t *testing.T) {
	f := newFixture(t, 16, vision.EvalTransforms(vision.DefaultAugment()))
	before := append([]float32(nil), f.model.Parameters()[0].Tensor().Data()...)

	first, err := f.trainer.Evaluate(f.loader)
	require.NoError(t, err)
	second, err := f.trainer.Evaluate(f.loader)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Batches)
	assert.InDelta(t, first.Loss, second.Loss, 1e-5)
	assert.Equal(t, before, f.model.Parameters()[0].Tensor().Data())
	assert.Equal(t, 0, f.trainer.Iterations())
}

type failingSource struct{}

func (failingSource) Batches() iter.Seq2[*dataloader.Batch, error] {
	return func(yield func(*dataloader.Batch, error) bool) {
		yield(nil, dataset.ErrIndexOutOfRange)
	}
}

func TestRun_LoaderErrorAborts(t *testing.T) {
	f := newFixture(t, 8, nil)
	f.trainer.loader = failingSource{}
	err := f.trainer.Run(3)
	assert.ErrorIs(t, err, dataset.ErrIndexOutOfRange)
	assert.Empty(t, f.out.String())
}

func TestRunningMetrics(t *testing.T) {
	var m RunningMetrics
	assert.Zero(t, m.Loss())
	m.Add(2, 0.5)
	m.Add(4, 1)
	assert.InDelta(t, 3, m.Loss(), 1e-9)
	assert.InDelta(t, 0.75, m.Accuracy(), 1e-9)
	m.Reset()
	assert.Equal(t, 0, m.Batches())
}
