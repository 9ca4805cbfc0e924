// Package autodiff implements reverse-mode automatic differentiation using
// the decorator pattern.
//
// AutodiffBackend wraps a Backend and records every differentiable forward
// operation on a GradientTape. Backward kernels and batch statistics pass
// straight through to the wrapped backend.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := model.Forward(x, nn.Train) ...
//	grads := autodiff.Backward(loss, backend)
package autodiff

import (
	"github.com/born-ml/cifarnet/internal/autodiff/ops"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

var _ tensor.Backend = (*AutodiffBackend[tensor.Backend])(nil)

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.tape.Record(ops.NewAddOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.tape.Record(ops.NewMulOp(a, c, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.tape.Record(ops.NewMatMulOp(a, c, result))
	return result
}

// Reshape changes the shape and records the operation.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.tape.Record(ops.NewReshapeOp(t, result))
	return result
}

// Transpose permutes dimensions and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	result := b.inner.Transpose(t, axes...)
	b.tape.Record(ops.NewTransposeOp(t, result, axes))
	return result
}

// ReLU applies the activation and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, result))
	return result
}

// Conv2D performs 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, padding)
	b.tape.Record(ops.NewConv2DOp(input, kernel, result, stride, padding))
	return result
}

// MaxPool2D performs 2D max pooling and records the operation.
func (b *AutodiffBackend[B]) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int, same bool) *tensor.RawTensor {
	result := b.inner.MaxPool2D(input, kernelSize, stride, same)
	b.tape.Record(ops.NewMaxPool2DOp(input, result, kernelSize, stride, same))
	return result
}

// BatchStats computes per-channel statistics. It is not recorded as an
// operation; a following BatchNorm2D on the same input folds the statistics'
// gradient into its own backward pass.
func (b *AutodiffBackend[B]) BatchStats(input *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	mean, variance = b.inner.BatchStats(input)
	b.tape.markBatchStats(input, mean)
	return mean, variance
}

// BatchNorm2D normalizes per channel and records the operation.
func (b *AutodiffBackend[B]) BatchNorm2D(input, gamma, beta, mean, variance *tensor.RawTensor, eps float32) *tensor.RawTensor {
	result := b.inner.BatchNorm2D(input, gamma, beta, mean, variance, eps)
	if b.tape.IsRecording() {
		batchStats := b.tape.isBatchStats(input, mean)
		b.tape.Record(ops.NewBatchNorm2DOp(input, gamma, beta, mean, variance, result, eps, batchStats))
	}
	return result
}

// CrossEntropy computes the fused softmax cross-entropy and records the operation.
func (b *AutodiffBackend[B]) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.CrossEntropy(logits, targets)
	b.tape.Record(ops.NewCrossEntropyOp(logits, targets, result))
	return result
}

// SumToShape delegates to the inner backend.
func (b *AutodiffBackend[B]) SumToShape(grad *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return b.inner.SumToShape(grad, shape)
}

// ReLUBackward delegates to the inner backend.
func (b *AutodiffBackend[B]) ReLUBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.ReLUBackward(input, grad)
}

// Conv2DInputBackward delegates to the inner backend.
func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward delegates to the inner backend.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

// MaxPool2DBackward delegates to the inner backend.
func (b *AutodiffBackend[B]) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int, same bool) *tensor.RawTensor {
	return b.inner.MaxPool2DBackward(input, grad, kernelSize, stride, same)
}

// BatchNorm2DBackward delegates to the inner backend.
func (b *AutodiffBackend[B]) BatchNorm2DBackward(input, gamma, mean, variance, grad *tensor.RawTensor, eps float32, batchStats bool) (dInput, dGamma, dBeta *tensor.RawTensor) {
	return b.inner.BatchNorm2DBackward(input, gamma, mean, variance, grad, eps, batchStats)
}

// CrossEntropyBackward delegates to the inner backend.
func (b *AutodiffBackend[B]) CrossEntropyBackward(logits, targets, grad *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.CrossEntropyBackward(logits, targets, grad)
}
