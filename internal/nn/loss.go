package nn

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// CrossEntropyLoss computes the mean softmax cross-entropy between logits
// [batch_size, num_classes] and int64 class indices [batch_size].
//
// The softmax is fused into the loss, so the model emits raw logits.
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a new cross-entropy loss.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward returns the scalar mean loss.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32](c.backend.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
}

// Accuracy returns the fraction of rows whose argmax equals the target.
// Ties resolve to the lowest class index.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int64, B]) float32 {
	shape := logits.Shape()
	if len(shape) != 2 || targets.NumElements() != shape[0] {
		panic(fmt.Sprintf("Accuracy: logits %v do not match targets %v", shape, targets.Shape()))
	}
	batchSize, numClasses := shape[0], shape[1]
	if batchSize == 0 {
		return 0
	}

	logitsData := logits.Data()
	targetsData := targets.Data()

	correct := 0
	for b := 0; b < batchSize; b++ {
		if int64(argmax(logitsData[b*numClasses:(b+1)*numClasses])) == targetsData[b] {
			correct++
		}
	}
	return float32(correct) / float32(batchSize)
}

func argmax(z []float32) int {
	maxIdx := 0
	for i := 1; i < len(z); i++ {
		if z[i] > z[maxIdx] {
			maxIdx = i
		}
	}
	return maxIdx
}
