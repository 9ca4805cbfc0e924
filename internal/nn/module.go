// Package nn implements the neural network modules used to assemble the
// classifier.
//
// This package provides building blocks for constructing networks:
//   - Module interface: Forward with an explicit Mode, plus Parameters
//   - Parameter: trainable tensors with gradient slots
//   - Conv2D, BatchNorm2D, MaxPool2D, Flatten, Linear, ReLU
//   - Sequential: container for stacking layers
//   - CrossEntropyLoss and Accuracy
//   - Initializers: TruncatedNormal, Constant
package nn

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Mode selects training or inference behaviour for modules that differ
// between the two, such as BatchNorm2D.
type Mode int

const (
	// Train normalizes with batch statistics and updates running statistics.
	Train Mode = iota
	// Eval uses frozen running statistics and leaves module state untouched.
	Eval
)

// String returns "train" or "eval".
func (m Mode) String() string {
	switch m {
	case Train:
		return "train"
	case Eval:
		return "eval"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[B](
//	    nn.NewConv2D(3, 64, 5, 1, nn.Same, init, rng, backend),
//	    nn.NewBatchNorm2D(64, nn.ReLUActivation, backend),
//	    ...
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module for the given mode.
	Forward(input *tensor.Tensor[float32, B], mode Mode) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module, including
	// nested modules. Modules without trainable state return nil.
	Parameters() []*Parameter[B]
}

// Padding selects how spatial layers treat the input border.
type Padding int

const (
	// Valid only visits windows that fit entirely inside the input.
	Valid Padding = iota
	// Same zero-pads so the output extent is ceil(input / stride).
	Same
)

// String returns "VALID" or "SAME".
func (p Padding) String() string {
	if p == Same {
		return "SAME"
	}
	return "VALID"
}

// Activation is an optional element-wise function fused after a layer.
type Activation int

const (
	// NoActivation leaves the layer output unchanged.
	NoActivation Activation = iota
	// ReLUActivation applies max(0, x).
	ReLUActivation
)

// String returns the activation name.
func (a Activation) String() string {
	if a == ReLUActivation {
		return "relu"
	}
	return "none"
}

func activate[B tensor.Backend](a Activation, x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if a == ReLUActivation {
		return x.ReLU()
	}
	return x
}
