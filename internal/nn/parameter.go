package nn

import (
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Parameter represents a trainable tensor in a neural network.
//
// Optimizers update the tensor's data in place, so the RawTensor pointer is
// stable for the life of the model and serves as the key into the gradient
// map returned by autodiff.Backward.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B]
}

// NewParameter creates a new trainable parameter around an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before a backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// CountParameters returns the total number of scalar values across params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.tensor.NumElements()
	}
	return n
}
