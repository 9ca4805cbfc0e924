package model

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/tensor"
)

func newInput(t *testing.T, b *cpu.CPUBackend, n int) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	rng := rand.New(rand.NewPCG(5, 6))
	data := make([]float32, n*InputChannels*InputSize*InputSize)
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	x, err := tensor.FromSlice(data, tensor.Shape{n, InputChannels, InputSize, InputSize}, b)
	require.NoError(t, err)
	return x
}

func TestCNN_OutputShape(t *testing.T) {
	b := cpu.New()
	m := NewCNN(b, rand.New(rand.NewPCG(1, 2)))

	for _, mode := range []nn.Mode{nn.Train, nn.Eval} {
		out := m.Forward(newInput(t, b, 3), mode)
		assert.Equal(t, tensor.Shape{3, NumClasses}, out.Shape(), "mode %v", mode)
	}
}

func TestCNN_EvalIsDeterministic(t *testing.T) {
	b := cpu.New()
	m := NewCNN(b, rand.New(rand.NewPCG(1, 2)))
	x := newInput(t, b, 2)

	first := m.Forward(x, nn.Eval).Data()
	second := m.Forward(x, nn.Eval).Data()
	assert.Equal(t, first, second)
}

func TestCNN_Parameters(t *testing.T) {
	m := NewCNN(cpu.New(), rand.New(rand.NewPCG(1, 2)))

	// conv1, bn1 (gamma, beta), conv2, bn2, three dense layers with bias.
	assert.Len(t, m.Parameters(), 1+2+1+2+2+2+2)
	want := 64*3*5*5 + 2*64 +
		64*64*5*5 + 2*64 +
		2304*384 + 384 +
		384*192 + 192 +
		192*10 + 10
	assert.Equal(t, want, m.NumParameters())
	assert.Contains(t, m.String(), "BatchNorm2D(64")
}

func TestCNN_SameSeedSameWeights(t *testing.T) {
	a := NewCNN(cpu.New(), rand.New(rand.NewPCG(9, 9)))
	b := NewCNN(cpu.New(), rand.New(rand.NewPCG(9, 9)))
	pa, pb := a.Parameters(), b.Parameters()
	for i := range pa {
		assert.Equal(t, pa[i].Tensor().Data(), pb[i].Tensor().Data())
	}
}

func TestCNN_RejectsWrongInput(t *testing.T) {
	b := cpu.New()
	m := NewCNN(b, rand.New(rand.NewPCG(1, 2)))
	x := tensor.Zeros[float32](tensor.Shape{1, 3, 32, 32}, b)
	assert.PanicsWithValue(t, "CNN.Forward: expected input [N, 3, 24, 24], got [1 3 32 32]", func() {
		m.Forward(x, nn.Eval)
	})
}
