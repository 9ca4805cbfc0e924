package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// CrossEntropy computes the mean softmax cross-entropy of [N, K] logits
// against int64 class indices [N], using the log-sum-exp trick.
func (cpu *CPUBackend) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	n, k := checkCrossEntropy("cross_entropy", logits, targets)
	lg := logits.AsFloat32()
	tg := targets.AsInt64()

	var total float64
	for i := 0; i < n; i++ {
		row := lg[i*k : (i+1)*k]
		total += logSumExp(row) - float64(row[tg[i]])
	}

	result := tensor.MustNewRaw(tensor.Shape{}, tensor.Float32, cpu.device)
	result.AsFloat32()[0] = float32(total / float64(n))
	return result
}

// CrossEntropyBackward returns (softmax(logits) - onehot(targets)) / N scaled
// by the scalar upstream gradient.
func (cpu *CPUBackend) CrossEntropyBackward(logits, targets, grad *tensor.RawTensor) *tensor.RawTensor {
	n, k := checkCrossEntropy("cross_entropy backward", logits, targets)
	requireFloat32("cross_entropy backward", grad)
	if grad.NumElements() != 1 {
		panic(fmt.Sprintf("cross_entropy backward: grad must be scalar, got shape %v", grad.Shape()))
	}
	scale := grad.AsFloat32()[0] / float32(n)

	result := tensor.MustNewRaw(logits.Shape(), tensor.Float32, cpu.device)
	lg := logits.AsFloat32()
	tg := targets.AsInt64()
	out := result.AsFloat32()

	for i := 0; i < n; i++ {
		row := lg[i*k : (i+1)*k]
		dst := out[i*k : (i+1)*k]
		lse := logSumExp(row)
		for j, v := range row {
			dst[j] = float32(math.Exp(float64(v)-lse)) * scale
		}
		dst[tg[i]] -= scale
	}
	return result
}

func logSumExp(row []float32) float64 {
	maxVal := row[0]
	for _, v := range row[1:] {
		maxVal = max(maxVal, v)
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - maxVal))
	}
	return float64(maxVal) + math.Log(sum)
}

func checkCrossEntropy(op string, logits, targets *tensor.RawTensor) (n, k int) {
	requireFloat32(op, logits)
	requireRank(op, "logits", logits, 2)
	if targets.DType() != tensor.Int64 {
		panic(fmt.Sprintf("%s: targets must be int64, got %s", op, targets.DType()))
	}
	n, k = logits.Shape()[0], logits.Shape()[1]
	if n == 0 || k == 0 {
		panic(fmt.Sprintf("%s: empty logits %v", op, logits.Shape()))
	}
	if !targets.Shape().Equal(tensor.Shape{n}) {
		panic(fmt.Sprintf("%s: targets shape %v, expected [%d]", op, targets.Shape(), n))
	}
	for i, t := range targets.AsInt64() {
		if t < 0 || int(t) >= k {
			panic(fmt.Sprintf("%s: target %d at index %d out of range [0, %d)", op, t, i, k))
		}
	}
	return n, k
}
