// Package ops defines the differentiable operations recorded on the gradient tape.
//
// Each operation keeps references to its forward inputs and output and
// delegates gradient computation to the backend's backward kernels:
//   - AddOp, MulOp: element-wise with broadcast reduction
//   - MatMulOp: d(A@B)/dA = grad@Bᵀ, d(A@B)/dB = Aᵀ@grad
//   - ReshapeOp, TransposeOp: layout changes, gradient is the inverse layout change
//   - ReLUOp, Conv2DOp, MaxPool2DOp, BatchNorm2DOp, CrossEntropyOp: fused kernels
package ops

import "github.com/born-ml/cifarnet/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The returned slice is aligned with Inputs; a nil entry means the
	// input receives no gradient (for example integer class targets).
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
