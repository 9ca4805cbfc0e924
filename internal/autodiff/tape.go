package autodiff

import (
	"github.com/born-ml/cifarnet/internal/autodiff/ops"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	gradients := tape.Backward(outputGrad, backend)
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool

	// statsOf maps a batch mean tensor to the input it was computed from,
	// so BatchNorm2D can tell batch statistics from running statistics.
	statsOf map[*tensor.RawTensor]*tensor.RawTensor
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
		statsOf:    make(map[*tensor.RawTensor]*tensor.RawTensor),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Operations returns the recorded operations in execution order.
func (t *GradientTape) Operations() []ops.Operation {
	return t.operations
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
	clear(t.statsOf)
}

func (t *GradientTape) markBatchStats(input, mean *tensor.RawTensor) {
	if t.recording {
		t.statsOf[mean] = input
	}
}

func (t *GradientTape) isBatchStats(input, mean *tensor.RawTensor) bool {
	return t.statsOf[mean] == input
}

// Backward computes gradients for all inputs by walking the tape in reverse.
//
// Algorithm:
//  1. Start with the output gradient (ones for a scalar loss)
//  2. Walk operations in reverse order
//  3. For each operation, compute input gradients using the chain rule
//  4. Accumulate gradients when the same tensor is used multiple times
//
// Returns a map from RawTensor to its accumulated gradient.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	// Gradient kernels must not be recorded.
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads[t.operations[len(t.operations)-1].Output()] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		for j, inGrad := range op.Backward(outGrad, backend) {
			if inGrad == nil {
				continue
			}
			input := op.Inputs()[j]
			if existing, ok := grads[input]; ok {
				grads[input] = backend.Add(existing, inGrad)
			} else {
				grads[input] = inGrad
			}
		}
	}

	return grads
}
