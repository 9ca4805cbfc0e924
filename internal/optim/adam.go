package optim

import (
	"math"

	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Adam implements the Adam optimizer with bias correction.
//
//	m = β1*m + (1-β1)*g
//	v = β2*v + (1-β2)*g²
//	θ = θ - lr * m̂ / (sqrt(v̂) + ε),  m̂ = m/(1-β1^t), v̂ = v/(1-β2^t)
//
// Moment buffers are allocated lazily the first time a parameter receives a
// gradient.
type Adam[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int
	m      map[*nn.Parameter[B]][]float32
	v      map[*nn.Parameter[B]][]float32

	backend B
}

// AdamConfig contains configuration for the Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Running average coefficients (default: [0.9, 0.999])
	Eps   float32    // Numerical stability term (default: 1e-8)
}

// NewAdam creates a new Adam optimizer. Zero fields take their defaults.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]][]float32),
		v:       make(map[*nn.Parameter[B]][]float32),
		backend: backend,
	}
}

// Step performs a single optimization step.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	bc1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	bc2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads, a.backend)
		if grad == nil {
			continue
		}

		n := param.Tensor().NumElements()
		m, ok := a.m[param]
		if !ok {
			m = make([]float32, n)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float32, n)
			a.v[param] = v
		}

		g := grad.AsFloat32()
		theta := param.Tensor().Data()
		for i := range theta {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			theta[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (a *Adam[B]) ZeroGrad() {
	zeroGrads(a.params)
}

// GetLR returns the learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// StepCount returns the number of steps taken.
func (a *Adam[B]) StepCount() int {
	return a.t
}
