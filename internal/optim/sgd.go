package optim

import (
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum:
//
//	v = momentum*v + g
//	θ = θ - lr*v
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]][]float32
	backend    B
}

// SGDConfig contains configuration for the SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor in [0, 1)
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]][]float32),
		backend:    backend,
	}
}

// Step performs a single optimization step.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads, s.backend)
		if grad == nil {
			continue
		}
		g := grad.AsFloat32()
		theta := param.Tensor().Data()

		if s.momentum == 0 {
			for i := range theta {
				theta[i] -= s.lr * g[i]
			}
			continue
		}

		v, ok := s.velocities[param]
		if !ok {
			v = make([]float32, len(theta))
			s.velocities[param] = v
		}
		for i := range theta {
			v[i] = s.momentum*v[i] + g[i]
			theta[i] -= s.lr * v[i]
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (s *SGD[B]) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}
