package cpu

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("relu", x)
	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	out := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v > 0 {
			out[i] = v
		}
	}
	return result
}

// ReLUBackward passes grad through where the forward input was positive.
func (cpu *CPUBackend) ReLUBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("relu backward", input, grad)
	if !input.Shape().Equal(grad.Shape()) {
		panic(fmt.Sprintf("relu backward: input %v and grad %v differ", input.Shape(), grad.Shape()))
	}
	result := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	out := result.AsFloat32()
	g := grad.AsFloat32()
	for i, v := range input.AsFloat32() {
		if v > 0 {
			out[i] = g[i]
		}
	}
	return result
}
