package nn

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Defaults for BatchNorm2D.
const (
	DefaultBNMomentum = 0.9
	DefaultBNEpsilon  = 1e-5
)

// BatchNorm2D normalizes NCHW activations per channel, applies a learned
// affine transform and an optional fused activation.
//
// In Train mode it normalizes with the batch mean and biased variance and
// folds them into the running statistics:
//
//	running = momentum*running + (1-momentum)*batch
//
// In Eval mode it normalizes with the running statistics and changes nothing.
// Running mean starts at 0 and running variance at 1.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	momentum    float32
	eps         float32
	activation  Activation

	gamma *Parameter[B] // [C], starts at 1
	beta  *Parameter[B] // [C], starts at 0

	runningMean *tensor.Tensor[float32, B]
	runningVar  *tensor.Tensor[float32, B]

	backend B
}

// NewBatchNorm2D creates a batch normalization layer with default momentum
// and epsilon.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, activation Activation, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("BatchNorm2D: invalid feature count %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		momentum:    DefaultBNMomentum,
		eps:         DefaultBNEpsilon,
		activation:  activation,
		gamma:       NewParameter("gamma", tensor.Ones[float32](shape, backend)),
		beta:        NewParameter("beta", tensor.Zeros[float32](shape, backend)),
		runningMean: tensor.Zeros[float32](shape, backend),
		runningVar:  tensor.Ones[float32](shape, backend),
		backend:     backend,
	}
}

// Forward normalizes the input according to mode.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B], mode Mode) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("BatchNorm2D.Forward: expected [N, %d, H, W], got shape %v", bn.numFeatures, shape))
	}

	var mean, variance *tensor.RawTensor
	if mode == Train {
		mean, variance = bn.backend.BatchStats(input.Raw())
		bn.updateRunning(mean, variance)
	} else {
		mean, variance = bn.runningMean.Raw(), bn.runningVar.Raw()
	}

	out := bn.backend.BatchNorm2D(input.Raw(), bn.gamma.Tensor().Raw(), bn.beta.Tensor().Raw(), mean, variance, bn.eps)
	return activate(bn.activation, tensor.New[float32](out, bn.backend))
}

func (bn *BatchNorm2D[B]) updateRunning(mean, variance *tensor.RawTensor) {
	rm, rv := bn.runningMean.Data(), bn.runningVar.Data()
	bm, bv := mean.AsFloat32(), variance.AsFloat32()
	for i := range rm {
		rm[i] = bn.momentum*rm[i] + (1-bn.momentum)*bm[i]
		rv[i] = bn.momentum*rv[i] + (1-bn.momentum)*bv[i]
	}
}

// Parameters returns [gamma, beta].
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(%d, momentum=%g, eps=%g, act=%s)", bn.numFeatures, bn.momentum, bn.eps, bn.activation)
}
