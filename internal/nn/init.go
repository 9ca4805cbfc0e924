package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Initializer fills a freshly allocated parameter buffer.
type Initializer interface {
	Init(data []float32, rng *rand.Rand)
}

// TruncatedNormal draws from N(Mean, Std²) restricted to [Mean-2·Std, Mean+2·Std].
//
// Sampling inverts the normal CDF on the uniform sub-interval that maps to
// the truncation bounds, so no draw is ever rejected.
type TruncatedNormal struct {
	Mean float64
	Std  float64
}

// Init implements Initializer.
func (tn TruncatedNormal) Init(data []float32, rng *rand.Rand) {
	if tn.Std <= 0 {
		Constant(tn.Mean).Init(data, rng)
		return
	}
	dist := distuv.Normal{Mu: tn.Mean, Sigma: tn.Std}
	lo := dist.CDF(tn.Mean - 2*tn.Std)
	hi := dist.CDF(tn.Mean + 2*tn.Std)
	for i := range data {
		data[i] = float32(dist.Quantile(lo + rng.Float64()*(hi-lo)))
	}
}

// Constant fills every element with the same value.
type Constant float64

// Init implements Initializer.
func (c Constant) Init(data []float32, _ *rand.Rand) {
	for i := range data {
		data[i] = float32(c)
	}
}

// Zeros is the all-zero initializer.
const Zeros = Constant(0)

// newInitialized allocates a tensor of the given shape and fills it with init.
func newInitialized[B tensor.Backend](shape tensor.Shape, init Initializer, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, backend)
	init.Init(t.Data(), rng)
	return t
}
