package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/optim"
	"github.com/born-ml/cifarnet/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func param(t *testing.T, b adBackend, values ...float32) *nn.Parameter[adBackend] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, b)
	require.NoError(t, err)
	return nn.NewParameter("x", x)
}

func gradFor(p *nn.Parameter[adBackend], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	g := tensor.MustNewRaw(tensor.Shape{len(values)}, tensor.Float32, tensor.CPU)
	copy(g.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): g}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 2)
	opt := optim.NewSGD([]*nn.Parameter[adBackend]{p}, optim.SGDConfig{LR: 0.1}, backend)

	opt.Step(gradFor(p, 1))
	assert.InDelta(t, 1.9, p.Tensor().Data()[0], 1e-6)
	require.NotNil(t, p.Grad())

	opt.ZeroGrad()
	assert.Nil(t, p.Grad())
}

func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1)
	opt := optim.NewSGD([]*nn.Parameter[adBackend]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	opt.Step(gradFor(p, 1)) // v = 1,    x = 0.9
	opt.Step(gradFor(p, 1)) // v = 1.9,  x = 0.71
	assert.InDelta(t, 0.71, p.Tensor().Data()[0], 1e-6)
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1, -1, 5)
	opt := optim.NewAdam([]*nn.Parameter[adBackend]{p}, optim.AdamConfig{LR: 1e-4}, backend)

	// With bias correction the first step is lr * sign(g) (up to ε).
	opt.Step(gradFor(p, 0.5, -3, 0))
	assert.InDeltaSlice(t, []float32{1 - 1e-4, -1 + 1e-4, 5}, p.Tensor().Data(), 1e-6)
	assert.Equal(t, 1, opt.StepCount())
	assert.InDelta(t, 1e-4, opt.GetLR(), 1e-9)
}

func TestAdam_SkipsParametersWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := param(t, backend, 1)
	b := param(t, backend, 2)
	opt := optim.NewAdam([]*nn.Parameter[adBackend]{a, b}, optim.AdamConfig{}, backend)

	opt.Step(gradFor(a, 1))
	assert.Less(t, a.Tensor().Data()[0], float32(1))
	assert.Equal(t, float32(2), b.Tensor().Data()[0])
	assert.Nil(t, b.Grad())
}

func TestAdam_MinimizesQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 3)
	opt := optim.NewAdam([]*nn.Parameter[adBackend]{p}, optim.AdamConfig{LR: 0.1}, backend)

	for range 200 {
		backend.Tape().Clear()
		backend.Tape().StartRecording()
		loss := p.Tensor().Mul(p.Tensor())
		grads := autodiff.Backward(loss, backend)
		backend.Tape().StopRecording()
		opt.Step(grads)
		opt.ZeroGrad()
	}
	assert.InDelta(t, 0, p.Tensor().Data()[0], 0.1)
}
