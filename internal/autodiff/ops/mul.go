package ops

import "github.com/born-ml/cifarnet/internal/tensor"

// MulOp represents an element-wise multiplication: output = a * b.
//
// Backward: grad_a = outputGrad * b, grad_b = outputGrad * a, each reduced
// to its operand's shape.
type MulOp struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor
}

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
	}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.SumToShape(backend.Mul(outputGrad, b), a.Shape()),
		backend.SumToShape(backend.Mul(outputGrad, a), b.Shape()),
	}
}

// Inputs returns the input tensors [a, b].
func (op *MulOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor a * b.
func (op *MulOp) Output() *tensor.RawTensor {
	return op.output
}
