package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Conv2D is a 2D convolutional layer without bias.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel, kernel]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Same padding is supported for stride 1 with an odd kernel, where it pads
// (kernel-1)/2 on every side and preserves the spatial extent.
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     Padding

	weight *Parameter[B]

	backend B
}

// NewConv2D creates a convolutional layer whose weights are filled by init.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels, kernelSize, stride int,
	padding Padding,
	init Initializer,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("Conv2D: invalid geometry in=%d out=%d kernel=%d stride=%d", inChannels, outChannels, kernelSize, stride))
	}
	if padding == Same && (stride != 1 || kernelSize%2 == 0) {
		panic(fmt.Sprintf("Conv2D: SAME padding needs stride 1 and an odd kernel, got kernel=%d stride=%d", kernelSize, stride))
	}

	shape := tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}
	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", newInitialized(shape, init, rng, backend)),
		backend:     backend,
	}
}

// Forward applies the convolution. Mode does not affect the result.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("Conv2D.Forward: expected 4D input [N, C, H, W], got shape %v", shape))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("Conv2D.Forward: expected %d input channels, got %d", c.inChannels, shape[1]))
	}

	out := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.pad())
	return tensor.New[float32](out, c.backend)
}

func (c *Conv2D[B]) pad() int {
	if c.padding == Same {
		return (c.kernelSize - 1) / 2
	}
	return 0
}

// Parameters returns the weight parameter.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight}
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%s, bias=false)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding)
}
