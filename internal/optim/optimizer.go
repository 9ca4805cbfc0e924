// Package optim implements the optimizers that update model parameters from
// the gradient map produced by autodiff.Backward.
//
// Updates are applied in place on each parameter's buffer and are never
// recorded on a gradient tape.
package optim

import (
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Optimizer is the interface for all optimizers.
//
// Usage pattern:
//
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
type Optimizer interface {
	// Step updates every parameter that has an entry in grads.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradients stored on the parameters.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// getGradient looks up a parameter's gradient and records it on the
// parameter. Returns nil if the parameter was not part of the graph.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, backend B) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	grad, ok := grads[param.Tensor().Raw()]
	if !ok {
		return nil
	}
	param.SetGrad(tensor.New[float32](grad, backend))
	return grad
}

func zeroGrads[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
