package ops

import "github.com/born-ml/cifarnet/internal/tensor"

// ReLUOp represents output = max(0, x). The gradient passes where x > 0.
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{
		input:  input,
		output: output,
	}
}

// Backward computes the input gradient for ReLU.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ReLUBackward(op.input, outputGrad)}
}

// Inputs returns the input tensor.
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}
