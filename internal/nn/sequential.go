package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Sequential applies modules strictly in order. It is itself a Module.
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a container from the given modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward threads the input and mode through every module.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B], mode Mode) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output, mode)
	}
	return output
}

// Parameters returns the parameters of every module, in module order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Len returns the number of modules.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at index.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic(fmt.Sprintf("Sequential.Module: index %d out of bounds [0, %d)", index, len(s.modules)))
	}
	return s.modules[index]
}

// String lists the contained modules, one per line.
func (s *Sequential[B]) String() string {
	var sb strings.Builder
	sb.WriteString("Sequential(\n")
	for i, m := range s.modules {
		fmt.Fprintf(&sb, "  (%d): %v\n", i, m)
	}
	sb.WriteString(")")
	return sb.String()
}
