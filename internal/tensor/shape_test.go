package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_Basics(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Error(t, Shape{2, 0}.Validate())
	assert.True(t, Shape{2, 3}.Equal(Shape{2, 3}))
	assert.False(t, Shape{2, 3}.Equal(Shape{3, 2}))
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{2, 3}, Shape{3}, Shape{2, 3}, true, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		got, broadcast, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.broadcast, broadcast)
	}
}

func TestBroadcastStrides(t *testing.T) {
	assert.Equal(t, []int{0, 1}, BroadcastStrides(Shape{3}, Shape{2, 3}))
	assert.Equal(t, []int{1, 0}, BroadcastStrides(Shape{2, 1}, Shape{2, 3}))
}

func TestWindowOutput(t *testing.T) {
	tests := []struct {
		in, kernel, stride int
		same               bool
		out, pad           int
	}{
		{24, 5, 1, true, 24, 2},
		{24, 3, 2, true, 12, 0},
		{12, 3, 2, true, 6, 0},
		{5, 3, 2, true, 3, 1},
		{5, 3, 2, false, 2, 0},
	}
	for _, tt := range tests {
		out, pad := WindowOutput(tt.in, tt.kernel, tt.stride, tt.same)
		assert.Equal(t, tt.out, out, "%+v", tt)
		assert.Equal(t, tt.pad, pad, "%+v", tt)
	}
}

func TestRawTensor_ViewSharesData(t *testing.T) {
	r := MustNewRaw(Shape{2, 3}, Float32, CPU)
	v, err := r.View(Shape{3, 2})
	require.NoError(t, err)
	v.AsFloat32()[5] = 7
	assert.Equal(t, float32(7), r.AsFloat32()[5])

	_, err = r.View(Shape{4})
	assert.Error(t, err)

	c := r.Clone()
	c.AsFloat32()[0] = 1
	assert.Equal(t, float32(0), r.AsFloat32()[0])
}

func TestInferShape(t *testing.T) {
	assert.Equal(t, Shape{4, 6}, inferShape([]int{4, -1}, 24))
	assert.Panics(t, func() { inferShape([]int{-1, -1}, 24) })
	assert.Panics(t, func() { inferShape([]int{5, -1}, 24) })
}
