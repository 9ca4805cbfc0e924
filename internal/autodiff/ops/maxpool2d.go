package ops

import "github.com/born-ml/cifarnet/internal/tensor"

// MaxPool2DOp records a 2D max pooling. Gradients are routed only to the
// positions that produced each maximum.
type MaxPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	kernelSize int
	stride     int
	same       bool
}

// NewMaxPool2DOp creates a new MaxPool2D operation.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int, same bool) *MaxPool2DOp {
	return &MaxPool2DOp{
		input:      input,
		output:     output,
		kernelSize: kernelSize,
		stride:     stride,
		same:       same,
	}
}

// Inputs returns the input tensor.
func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxPool2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the input gradient.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(op.input, outputGrad, op.kernelSize, op.stride, op.same)}
}
