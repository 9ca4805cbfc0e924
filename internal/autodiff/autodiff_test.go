package autodiff_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/autodiff/ops"
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func fromSlice(t *testing.T, data []float32, shape tensor.Shape, b adBackend) *tensor.Tensor[float32, adBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, b)
	require.NoError(t, err)
	return x
}

func TestBackward_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := fromSlice(t, []float32{3, -2}, tensor.Shape{2}, backend)
	y := x.Mul(x)

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, []float32{6, -4}, grads[x.Raw()].AsFloat32())
}

func TestBackward_BroadcastAddReducesBias(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	bias := fromSlice(t, []float32{0, 0, 0}, tensor.Shape{3}, backend)
	y := x.Add(bias)

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, tensor.Shape{3}, grads[bias.Raw()].Shape())
	assert.Equal(t, []float32{2, 2, 2}, grads[bias.Raw()].AsFloat32())
}

func TestBackward_MatMulTranspose(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	w := fromSlice(t, []float32{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2}, backend)
	y := a.MatMul(w.Transpose()) // [2, 3]

	grads := autodiff.Backward(y, backend)
	// d(sum(a @ wᵀ))/dw[j] = sum over rows of a.
	assert.Equal(t, []float32{4, 6, 4, 6, 4, 6}, grads[w.Raw()].AsFloat32())
	// d/da[i] = sum over rows of w.
	assert.Equal(t, []float32{2, 2, 2, 2}, grads[a.Raw()].AsFloat32())
}

func TestBackward_ReusedTensorAccumulates(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := fromSlice(t, []float32{2}, tensor.Shape{1}, backend)
	y := x.Add(x).Mul(x) // 2x²

	grads := autodiff.Backward(y, backend)
	assert.InDelta(t, 8, grads[x.Raw()].AsFloat32()[0], 1e-6)
}

func TestBackward_NoOpsPanics(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := fromSlice(t, []float32{1}, tensor.Shape{1}, backend)
	assert.Panics(t, func() { autodiff.Backward(x, backend) })
}

func TestTape_RecordingControl(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	x := fromSlice(t, []float32{1, 2}, tensor.Shape{2}, backend)
	x.Add(x)
	assert.Equal(t, 0, tape.NumOps(), "nothing recorded before StartRecording")

	tape.StartRecording()
	x.Add(x).ReLU()
	assert.Equal(t, 2, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording(), "Clear preserves recording state")
}

func TestBatchNorm2D_RecordsStatisticsSource(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	tape.StartRecording()

	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)
	gamma := fromSlice(t, []float32{1}, tensor.Shape{1}, backend)
	beta := fromSlice(t, []float32{0}, tensor.Shape{1}, backend)

	mean, variance := backend.BatchStats(x.Raw())
	backend.BatchNorm2D(x.Raw(), gamma.Raw(), beta.Raw(), mean, variance, 1e-5)

	running := fromSlice(t, []float32{0}, tensor.Shape{1}, backend)
	runningVar := fromSlice(t, []float32{1}, tensor.Shape{1}, backend)
	backend.BatchNorm2D(x.Raw(), gamma.Raw(), beta.Raw(), running.Raw(), runningVar.Raw(), 1e-5)

	recorded := tape.Operations()
	require.Len(t, recorded, 2)
	assert.True(t, recorded[0].(*ops.BatchNorm2DOp).BatchStats())
	assert.False(t, recorded[1].(*ops.BatchNorm2DOp).BatchStats())
}

// convNet describes a small conv -> batchnorm -> dense -> cross-entropy graph
// whose trainable values are packed into one flat vector.
type convNet struct {
	x       []float32
	targets []int64
}

var (
	kernelShape = tensor.Shape{2, 1, 3, 3}
	gammaShape  = tensor.Shape{2}
	betaShape   = tensor.Shape{2}
	weightShape = tensor.Shape{32, 3}
	biasShape   = tensor.Shape{3}
	paramShapes = []tensor.Shape{kernelShape, gammaShape, betaShape, weightShape, biasShape}
)

func numParams() int {
	n := 0
	for _, s := range paramShapes {
		n += s.NumElements()
	}
	return n
}

// split cuts a flat parameter vector into float32 slices per parameter.
func split(p []float64) [][]float32 {
	out := make([][]float32, len(paramShapes))
	off := 0
	for i, s := range paramShapes {
		out[i] = make([]float32, s.NumElements())
		for j := range out[i] {
			out[i][j] = float32(p[off+j])
		}
		off += s.NumElements()
	}
	return out
}

func (n convNet) loss(t *testing.T, b adBackend, p []float64) (*tensor.Tensor[float32, adBackend], []*tensor.Tensor[float32, adBackend]) {
	parts := split(p)
	params := make([]*tensor.Tensor[float32, adBackend], len(parts))
	for i := range parts {
		params[i] = fromSlice(t, parts[i], paramShapes[i], b)
	}
	x := fromSlice(t, n.x, tensor.Shape{2, 1, 4, 4}, b)
	targets, err := tensor.FromSlice(n.targets, tensor.Shape{2}, b)
	require.NoError(t, err)

	h := b.Conv2D(x.Raw(), params[0].Raw(), 1, 1)
	mean, variance := b.BatchStats(h)
	h = b.BatchNorm2D(h, params[1].Raw(), params[2].Raw(), mean, variance, 1e-5)
	h = b.Reshape(h, tensor.Shape{2, 32})
	h = b.Add(b.MatMul(h, params[3].Raw()), params[4].Raw())
	loss := b.CrossEntropy(h, targets.Raw())
	return tensor.New[float32](loss, b), params
}

func TestGradient_MatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	net := convNet{targets: []int64{0, 2}}
	for range 32 {
		net.x = append(net.x, float32(rng.NormFloat64()))
	}
	p := make([]float64, numParams())
	for i := range p {
		p[i] = 0.5 * rng.NormFloat64()
	}

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	loss, params := net.loss(t, backend, p)
	grads := autodiff.Backward(loss, backend)

	var analytic []float64
	for _, param := range params {
		g, ok := grads[param.Raw()]
		require.True(t, ok, "missing gradient for %v", param.Shape())
		for _, v := range g.AsFloat32() {
			analytic = append(analytic, float64(v))
		}
	}

	plain := autodiff.New(cpu.New())
	f := func(q []float64) float64 {
		l, _ := net.loss(t, plain, q)
		return float64(l.Item())
	}
	numeric := fd.Gradient(nil, f, p, &fd.Settings{Formula: fd.Central, Step: 3e-3})

	require.Len(t, analytic, len(numeric))
	for i := range numeric {
		assert.InDelta(t, numeric[i], analytic[i], 2e-3, "parameter %d", i)
	}
}

func TestGradient_MaxPoolReLU(t *testing.T) {
	// Well separated values keep every max and ReLU sign stable under the
	// finite-difference step.
	base := []float64{
		-4, 1, 7, -2,
		3, -6, 2, 9,
		5, 8, -1, -3,
		-7, 4, 6, -5,
	}
	build := func(b adBackend, v []float64) (*tensor.Tensor[float32, adBackend], *tensor.Tensor[float32, adBackend]) {
		data := make([]float32, len(v))
		for i := range v {
			data[i] = float32(v[i])
		}
		x := fromSlice(t, data, tensor.Shape{1, 1, 4, 4}, b)
		scale := fromSlice(t, []float32{1, -2, 3, 0.5}, tensor.Shape{1, 1, 2, 2}, b)
		h := x.ReLU()
		pooled := tensor.New[float32](b.MaxPool2D(h.Raw(), 3, 2, true), b)
		return pooled.Mul(scale), x
	}

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	y, x := build(backend, base)
	grads := autodiff.Backward(y, backend)

	plain := autodiff.New(cpu.New())
	f := func(v []float64) float64 {
		out, _ := build(plain, v)
		var s float64
		for _, o := range out.Data() {
			s += float64(o)
		}
		return s
	}
	numeric := fd.Gradient(nil, f, base, &fd.Settings{Formula: fd.Central, Step: 1e-2})

	got := grads[x.Raw()].AsFloat32()
	for i := range numeric {
		assert.InDelta(t, numeric[i], got[i], 1e-3, "input %d", i)
	}
}
