package ops

import "github.com/born-ml/cifarnet/internal/tensor"

// CrossEntropyOp represents the fused softmax cross-entropy loss.
//
// Forward:
//
//	Loss = mean(-log_softmax(logits)[targets])
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// Targets are class indices and receive no gradient.
type CrossEntropyOp struct {
	logits  *tensor.RawTensor // [batch_size, num_classes]
	targets *tensor.RawTensor // [batch_size] int64
	output  *tensor.RawTensor // scalar
}

// NewCrossEntropyOp creates a new cross-entropy operation.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{
		logits:  logits,
		targets: targets,
		output:  output,
	}
}

// Inputs returns the input tensors [logits, targets].
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits, op.targets}
}

// Output returns the scalar loss tensor.
func (op *CrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the gradient with respect to logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.CrossEntropyBackward(op.logits, op.targets, outputGrad), nil}
}
