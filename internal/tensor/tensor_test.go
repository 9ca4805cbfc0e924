package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/tensor"
)

func TestFromSlice(t *testing.T) {
	b := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, b)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))
	x.Set(9, 0, 1)
	assert.Equal(t, []float32{1, 9, 3, 4, 5, 6}, x.Data())
	assert.Panics(t, func() { x.At(2, 0) })

	_, err = tensor.FromSlice([]float32{1, 2}, tensor.Shape{3}, b)
	assert.Error(t, err)
}

func TestCreation(t *testing.T) {
	b := cpu.New()
	assert.Equal(t, []float32{0, 0}, tensor.Zeros[float32](tensor.Shape{2}, b).Data())
	assert.Equal(t, []int64{1, 1, 1}, tensor.Ones[int64](tensor.Shape{3}, b).Data())
	assert.Equal(t, []float32{2.5}, tensor.Full[float32](tensor.Shape{1}, 2.5, b).Data())
}

func TestOps(t *testing.T) {
	b := cpu.New()
	x, err := tensor.FromSlice([]float32{-1, 2, -3, 4, -5, 6}, tensor.Shape{2, 3}, b)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{3, 2}, x.Reshape(-1, 2).Shape())
	assert.Equal(t, []float32{-1, 4, 2, -5, -3, 6}, x.Transpose().Data())
	assert.Equal(t, []float32{0, 2, 0, 4, 0, 6}, x.ReLU().Data())
	assert.Equal(t, []float32{-2, 4, -6, 8, -10, 12}, x.Add(x).Data())

	clone := x.Clone()
	clone.Set(0, 0, 0)
	assert.Equal(t, float32(-1), x.At(0, 0))
	assert.Contains(t, x.String(), "float32")
}

func TestItem(t *testing.T) {
	b := cpu.New()
	s := tensor.Full[float32](tensor.Shape{}, 3, b)
	assert.Equal(t, float32(3), s.Item())
	assert.Panics(t, func() { tensor.Zeros[float32](tensor.Shape{2}, b).Item() })
}
