package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Forward operations allocate and return a new RawTensor. Backward kernels
// take the forward inputs plus the upstream gradient and return input
// gradients; the autodiff package calls them while walking the tape.
//
// Shape and dtype misuse is a programming error and panics with a message
// prefixed by the operation name.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Activations
	ReLU(x *RawTensor) *RawTensor

	// Conv2D convolves NCHW input with an [C_out, C_in, K_h, K_w] kernel
	// using symmetric zero padding.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor

	// MaxPool2D pools NCHW input with a square window. With same=true the
	// output is ceil(H/stride) x ceil(W/stride) and padded positions never
	// win the max.
	MaxPool2D(input *RawTensor, kernelSize, stride int, same bool) *RawTensor

	// BatchStats returns the per-channel mean and biased variance of NCHW
	// input, each shaped [C].
	BatchStats(input *RawTensor) (mean, variance *RawTensor)

	// BatchNorm2D normalizes NCHW input per channel with the given
	// statistics and applies the affine gamma/beta transform.
	BatchNorm2D(input, gamma, beta, mean, variance *RawTensor, eps float32) *RawTensor

	// CrossEntropy returns the mean softmax cross-entropy of [N, K] logits
	// against int64 class indices [N] as a scalar.
	CrossEntropy(logits, targets *RawTensor) *RawTensor

	// Backward kernels
	SumToShape(grad *RawTensor, shape Shape) *RawTensor
	ReLUBackward(input, grad *RawTensor) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, kernelSize, stride int, same bool) *RawTensor
	// BatchNorm2DBackward returns input, gamma and beta gradients. When
	// batchStats is true, mean and variance were computed from input and
	// the input gradient includes their contribution.
	BatchNorm2DBackward(input, gamma, mean, variance, grad *RawTensor, eps float32, batchStats bool) (dInput, dGamma, dBeta *RawTensor)
	CrossEntropyBackward(logits, targets, grad *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
