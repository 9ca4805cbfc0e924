package ops

import "github.com/born-ml/cifarnet/internal/tensor"

// Conv2DOp records a 2D convolution.
//
// Backward:
//   - d_input:  transposed convolution of d_output with the kernel
//   - d_kernel: correlation of the input with d_output
type Conv2DOp struct {
	input   *tensor.RawTensor
	kernel  *tensor.RawTensor
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConv2DOp creates a new Conv2D operation.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{
		input:   input,
		kernel:  kernel,
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Inputs returns the input tensors [input, kernel].
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *Conv2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward delegates both gradients to the backend kernels.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	kernelGrad := backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
