// Package model defines the CIFAR-10 convolutional classifier.
package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Input geometry and class count.
const (
	InputChannels = 3
	InputSize     = 24
	NumClasses    = 10
)

const (
	convChannels = 64
	kernelSize   = 5
	poolSize     = 3
	poolStride   = 2
	hidden1      = 384
	hidden2      = 192

	// Two SAME pools with stride 2 take 24 -> 12 -> 6.
	flatFeatures = convChannels * (InputSize / 4) * (InputSize / 4)
)

// CNN is a two-block convolutional network for 24x24 RGB images.
//
// Architecture:
//
//	Input: [batch, 3, 24, 24]
//	Conv1: 3 -> 64, 5x5 SAME, no bias  -> [batch, 64, 24, 24]
//	BatchNorm + ReLU
//	MaxPool: 3x3 stride 2 SAME          -> [batch, 64, 12, 12]
//	Conv2: 64 -> 64, 5x5 SAME, no bias -> [batch, 64, 12, 12]
//	BatchNorm + ReLU
//	MaxPool: 3x3 stride 2 SAME          -> [batch, 64, 6, 6]
//	Flatten                             -> [batch, 2304]
//	Dense1: 2304 -> 384, ReLU
//	Dense2: 384 -> 192, ReLU
//	Dense3: 192 -> 10 (logits)
type CNN[B tensor.Backend] struct {
	layers *nn.Sequential[B]
}

// NewCNN builds the network. All weights are drawn from rng.
func NewCNN[B tensor.Backend](backend B, rng *rand.Rand) *CNN[B] {
	convInit := nn.TruncatedNormal{Std: 5e-2}
	denseInit := nn.TruncatedNormal{Std: 0.04}

	layers := nn.NewSequential[B](
		nn.NewConv2D(InputChannels, convChannels, kernelSize, 1, nn.Same, convInit, rng, backend),
		nn.NewBatchNorm2D(convChannels, nn.ReLUActivation, backend),
		nn.NewMaxPool2D(poolSize, poolStride, nn.Same, backend),

		nn.NewConv2D(convChannels, convChannels, kernelSize, 1, nn.Same, convInit, rng, backend),
		nn.NewBatchNorm2D(convChannels, nn.ReLUActivation, backend),
		nn.NewMaxPool2D(poolSize, poolStride, nn.Same, backend),

		nn.NewFlatten[B](),
		nn.NewLinear(nn.LinearConfig{
			InFeatures: flatFeatures, OutFeatures: hidden1, Activation: nn.ReLUActivation,
			WeightInit: denseInit, BiasInit: nn.Constant(0.1),
		}, rng, backend),
		nn.NewLinear(nn.LinearConfig{
			InFeatures: hidden1, OutFeatures: hidden2, Activation: nn.ReLUActivation,
			WeightInit: denseInit, BiasInit: nn.Constant(0.1),
		}, rng, backend),
		nn.NewLinear(nn.LinearConfig{
			InFeatures: hidden2, OutFeatures: NumClasses,
			WeightInit: denseInit, BiasInit: nn.Zeros,
		}, rng, backend),
	)
	return &CNN[B]{layers: layers}
}

// Forward maps [batch, 3, 24, 24] images to [batch, 10] logits.
// Softmax is left to the loss.
func (m *CNN[B]) Forward(input *tensor.Tensor[float32, B], mode nn.Mode) *tensor.Tensor[float32, B] {
	s := input.Shape()
	if len(s) != 4 || s[1] != InputChannels || s[2] != InputSize || s[3] != InputSize {
		panic(fmt.Sprintf("CNN.Forward: expected input [N, %d, %d, %d], got %v",
			InputChannels, InputSize, InputSize, s))
	}
	return m.layers.Forward(input, mode)
}

// Parameters returns all trainable parameters in layer order.
func (m *CNN[B]) Parameters() []*nn.Parameter[B] {
	return m.layers.Parameters()
}

// NumParameters returns the total number of trainable scalars.
func (m *CNN[B]) NumParameters() int {
	return nn.CountParameters(m.Parameters())
}

// Layers exposes the underlying stage container.
func (m *CNN[B]) Layers() *nn.Sequential[B] {
	return m.layers
}

func (m *CNN[B]) String() string {
	return "CNN" + m.layers.String()
}
