package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/cifarnet/internal/parallel"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// BatchStats computes per-channel mean and biased variance over N, H and W.
// Accumulation is done in float64.
func (cpu *CPUBackend) BatchStats(input *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	requireFloat32("batch stats", input)
	requireRank("batch stats", "input", input, 4)
	s := input.Shape()
	n, c, hw := s[0], s[1], s[2]*s[3]
	m := float64(n * hw)

	mean = tensor.MustNewRaw(tensor.Shape{c}, tensor.Float32, cpu.device)
	variance = tensor.MustNewRaw(tensor.Shape{c}, tensor.Float32, cpu.device)
	in := input.AsFloat32()
	mu := mean.AsFloat32()
	vr := variance.AsFloat32()

	parallel.For(c, func(ch int) {
		var sum float64
		for b := 0; b < n; b++ {
			for _, v := range in[(b*c+ch)*hw : (b*c+ch+1)*hw] {
				sum += float64(v)
			}
		}
		avg := sum / m
		var sq float64
		for b := 0; b < n; b++ {
			for _, v := range in[(b*c+ch)*hw : (b*c+ch+1)*hw] {
				d := float64(v) - avg
				sq += d * d
			}
		}
		mu[ch] = float32(avg)
		vr[ch] = float32(sq / m)
	}, cpu.parallel)

	return mean, variance
}

// BatchNorm2D computes gamma * (x - mean) / sqrt(var + eps) + beta per channel.
func (cpu *CPUBackend) BatchNorm2D(input, gamma, beta, mean, variance *tensor.RawTensor, eps float32) *tensor.RawTensor {
	n, c, hw := checkBatchNorm("batchnorm2d", input, gamma, mean, variance)
	checkChannelVector("batchnorm2d", "beta", beta, c)

	result := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	in := input.AsFloat32()
	out := result.AsFloat32()
	gm, bt := gamma.AsFloat32(), beta.AsFloat32()
	mu, vr := mean.AsFloat32(), variance.AsFloat32()

	parallel.For(c, func(ch int) {
		scale := gm[ch] * invStd(vr[ch], eps)
		shift := bt[ch] - mu[ch]*scale
		for b := 0; b < n; b++ {
			off := (b*c + ch) * hw
			src := in[off : off+hw]
			dst := out[off : off+hw]
			for i, v := range src {
				dst[i] = v*scale + shift
			}
		}
	}, cpu.parallel)

	return result
}

// BatchNorm2DBackward returns gradients for input, gamma and beta.
//
// With batch statistics:
//
//	dx = gamma * invstd / m * (m*g - Σg - xhat * Σ(g*xhat))
//
// With frozen statistics the normalization is affine and dx = g * gamma * invstd.
func (cpu *CPUBackend) BatchNorm2DBackward(input, gamma, mean, variance, grad *tensor.RawTensor, eps float32, batchStats bool) (dInput, dGamma, dBeta *tensor.RawTensor) {
	n, c, hw := checkBatchNorm("batchnorm2d backward", input, gamma, mean, variance)
	requireFloat32("batchnorm2d backward", grad)
	if !grad.Shape().Equal(input.Shape()) {
		panic(fmt.Sprintf("batchnorm2d backward: grad shape %v, expected %v", grad.Shape(), input.Shape()))
	}

	dInput = tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	dGamma = tensor.MustNewRaw(tensor.Shape{c}, tensor.Float32, cpu.device)
	dBeta = tensor.MustNewRaw(tensor.Shape{c}, tensor.Float32, cpu.device)

	in, gd := input.AsFloat32(), grad.AsFloat32()
	dx, dg, db := dInput.AsFloat32(), dGamma.AsFloat32(), dBeta.AsFloat32()
	gm, mu, vr := gamma.AsFloat32(), mean.AsFloat32(), variance.AsFloat32()
	m := float64(n * hw)

	parallel.For(c, func(ch int) {
		istd := float64(invStd(vr[ch], eps))
		avg := float64(mu[ch])

		var sumG, sumGX float64
		for b := 0; b < n; b++ {
			off := (b*c + ch) * hw
			for i := off; i < off+hw; i++ {
				xhat := (float64(in[i]) - avg) * istd
				sumG += float64(gd[i])
				sumGX += float64(gd[i]) * xhat
			}
		}
		dg[ch] = float32(sumGX)
		db[ch] = float32(sumG)

		g := float64(gm[ch])
		for b := 0; b < n; b++ {
			off := (b*c + ch) * hw
			for i := off; i < off+hw; i++ {
				if !batchStats {
					dx[i] = float32(float64(gd[i]) * g * istd)
					continue
				}
				xhat := (float64(in[i]) - avg) * istd
				dx[i] = float32(g * istd / m * (m*float64(gd[i]) - sumG - xhat*sumGX))
			}
		}
	}, cpu.parallel)

	return dInput, dGamma, dBeta
}

func invStd(variance, eps float32) float32 {
	return float32(1 / math.Sqrt(float64(variance)+float64(eps)))
}

func checkBatchNorm(op string, input, gamma, mean, variance *tensor.RawTensor) (n, c, hw int) {
	requireFloat32(op, input)
	requireRank(op, "input", input, 4)
	s := input.Shape()
	n, c, hw = s[0], s[1], s[2]*s[3]
	checkChannelVector(op, "gamma", gamma, c)
	checkChannelVector(op, "mean", mean, c)
	checkChannelVector(op, "variance", variance, c)
	return n, c, hw
}

func checkChannelVector(op, name string, t *tensor.RawTensor, c int) {
	requireFloat32(op, t)
	if !t.Shape().Equal(tensor.Shape{c}) {
		panic(fmt.Sprintf("%s: %s shape %v, expected [%d]", op, name, t.Shape(), c))
	}
}
