package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Linear implements a fully connected layer with an optional fused activation.
//
// Performs y = act(x @ W.T + b) where:
//   - x is [batch_size, in_features]
//   - W is [out_features, in_features]
//   - b is [out_features]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	activation  Activation
	weight      *Parameter[B]
	bias        *Parameter[B]
	backend     B
}

// LinearConfig describes a Linear layer.
type LinearConfig struct {
	InFeatures  int
	OutFeatures int
	Activation  Activation
	WeightInit  Initializer
	BiasInit    Initializer
}

// NewLinear creates a new Linear layer.
func NewLinear[B tensor.Backend](cfg LinearConfig, rng *rand.Rand, backend B) *Linear[B] {
	if cfg.InFeatures <= 0 || cfg.OutFeatures <= 0 {
		panic(fmt.Sprintf("Linear: invalid features in=%d out=%d", cfg.InFeatures, cfg.OutFeatures))
	}
	if cfg.BiasInit == nil {
		cfg.BiasInit = Zeros
	}

	weight := newInitialized(tensor.Shape{cfg.OutFeatures, cfg.InFeatures}, cfg.WeightInit, rng, backend)
	bias := newInitialized(tensor.Shape{cfg.OutFeatures}, cfg.BiasInit, rng, backend)

	return &Linear[B]{
		inFeatures:  cfg.InFeatures,
		outFeatures: cfg.OutFeatures,
		activation:  cfg.Activation,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
		backend:     backend,
	}
}

// Forward computes the output of the linear layer.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	output := input.MatMul(l.weight.Tensor().Transpose())
	output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	return activate(l.activation, output)
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// String returns a string representation of the layer.
func (l *Linear[B]) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d, act=%s)", l.inFeatures, l.outFeatures, l.activation)
}
