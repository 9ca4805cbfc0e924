package ops

import "github.com/born-ml/cifarnet/internal/tensor"

// MatMulOp represents matrix multiplication: output = a @ b.
//
// For a [M, K] and b [K, N]:
//   - grad_a = outputGrad @ bᵀ  [M, K]
//   - grad_b = aᵀ @ outputGrad  [K, N]
type MatMulOp struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
	}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.MatMul(outputGrad, backend.Transpose(b, 1, 0))
	gradB := backend.MatMul(backend.Transpose(a, 1, 0), outputGrad)
	return []*tensor.RawTensor{gradA, gradB}
}

// Inputs returns the input tensors [a, b].
func (op *MatMulOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor a @ b.
func (op *MatMulOp) Output() *tensor.RawTensor {
	return op.output
}
