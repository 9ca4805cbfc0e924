package ops

import "github.com/born-ml/cifarnet/internal/tensor"

// TransposeOp records a dimension permutation. The gradient is permuted by
// the inverse permutation.
type TransposeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	axes   []int
}

// NewTransposeOp creates a new TransposeOp. Empty axes mean full reversal.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	if len(axes) == 0 {
		ndim := len(input.Shape())
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	return &TransposeOp{
		input:  input,
		output: output,
		axes:   append([]int(nil), axes...),
	}
}

// Inputs returns the input tensor.
func (op *TransposeOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *TransposeOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward applies the inverse permutation to the gradient.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}
