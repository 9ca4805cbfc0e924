package ops

import "github.com/born-ml/cifarnet/internal/tensor"

// BatchNorm2DOp records a fused per-channel batch normalization:
//
//	output = gamma * (x - mean) / sqrt(var + eps) + beta
//
// When batchStats is set, mean and var were computed from x in the same
// forward pass and the input gradient accounts for their dependence on x.
// Otherwise they are constants (running statistics).
type BatchNorm2DOp struct {
	input, gamma, beta *tensor.RawTensor
	mean, variance     *tensor.RawTensor
	output             *tensor.RawTensor
	eps                float32
	batchStats         bool
}

// NewBatchNorm2DOp creates a new BatchNorm2D operation.
func NewBatchNorm2DOp(input, gamma, beta, mean, variance, output *tensor.RawTensor, eps float32, batchStats bool) *BatchNorm2DOp {
	return &BatchNorm2DOp{
		input:      input,
		gamma:      gamma,
		beta:       beta,
		mean:       mean,
		variance:   variance,
		output:     output,
		eps:        eps,
		batchStats: batchStats,
	}
}

// Inputs returns the input tensors [input, gamma, beta].
func (op *BatchNorm2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.gamma, op.beta}
}

// Output returns the output tensor.
func (op *BatchNorm2DOp) Output() *tensor.RawTensor {
	return op.output
}

// BatchStats reports whether the op normalized with batch statistics.
func (op *BatchNorm2DOp) BatchStats() bool {
	return op.batchStats
}

// Backward returns gradients for input, gamma and beta.
func (op *BatchNorm2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dx, dGamma, dBeta := backend.BatchNorm2DBackward(op.input, op.gamma, op.mean, op.variance, outputGrad, op.eps, op.batchStats)
	return []*tensor.RawTensor{dx, dGamma, dBeta}
}
