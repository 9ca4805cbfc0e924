package nn

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// MaxPool2D applies 2D max pooling over square windows.
//
// With Same padding the output is ceil(H/stride) x ceil(W/stride) and padded
// positions never contribute to the maximum.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    Padding
	backend    B
}

// NewMaxPool2D creates a new max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, padding Padding, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("MaxPool2D: invalid kernel %d or stride %d", kernelSize, stride))
	}
	return &MaxPool2D[B]{
		kernelSize: kernelSize,
		stride:     stride,
		padding:    padding,
		backend:    backend,
	}
}

// Forward applies max pooling to a 4D input.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("MaxPool2D.Forward: expected 4D input [N, C, H, W], got shape %v", input.Shape()))
	}
	out := m.backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride, m.padding == Same)
	return tensor.New[float32](out, m.backend)
}

// Parameters returns nil (pooling has no trainable parameters).
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a string representation of the layer.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d, padding=%s)", m.kernelSize, m.stride, m.padding)
}

// Flatten reshapes [N, ...] to [N, prod(...)].
type Flatten[B tensor.Backend] struct{}

// NewFlatten creates a Flatten module.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return &Flatten[B]{}
}

// Forward flattens every dimension after the first.
func (f *Flatten[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("Flatten.Forward: expected at least 2D input, got shape %v", shape))
	}
	return input.Reshape(shape[0], -1)
}

// Parameters returns nil.
func (f *Flatten[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns "Flatten()".
func (f *Flatten[B]) String() string {
	return "Flatten()"
}

// ReLU is a standalone Rectified Linear Unit module: f(x) = max(0, x).
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns "ReLU()".
func (r *ReLU[B]) String() string {
	return "ReLU()"
}
