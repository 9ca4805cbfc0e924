package autodiff

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// BackwardCapable is an interface for backends that support the backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of t with respect to every tensor that took
// part in its recorded computation. The seed gradient is ones shaped like t.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones[float32](tensor.Shape{2}, backend)
//	y := x.Mul(x)
//	grads := autodiff.Backward(y, backend)
//	dx := grads[x.Raw()] // 2x
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("backward: unsupported dtype %s (only float32 supported)", t.DType()))
	}

	outputGrad, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: failed to create output gradient: %v", err))
	}
	data := outputGrad.AsFloat32()
	for i := range data {
		data[i] = 1
	}

	return tape.Backward(outputGrad, backend)
}
