package cpu

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/parallel"
	"github.com/born-ml/cifarnet/internal/tensor"
)

type poolGeometry struct {
	planes            int // N * C
	h, w              int
	hOut, wOut        int
	kernel, stride    int
	padTop, padLeft   int
	inPlane, outPlane int
}

func resolvePool(op string, input *tensor.RawTensor, kernelSize, stride int, same bool) poolGeometry {
	requireFloat32(op, input)
	requireRank(op, "input", input, 4)
	if kernelSize < 1 || stride < 1 {
		panic(fmt.Sprintf("%s: invalid kernel %d or stride %d", op, kernelSize, stride))
	}
	s := input.Shape()
	g := poolGeometry{planes: s[0] * s[1], h: s[2], w: s[3], kernel: kernelSize, stride: stride}
	g.hOut, g.padTop = tensor.WindowOutput(g.h, kernelSize, stride, same)
	g.wOut, g.padLeft = tensor.WindowOutput(g.w, kernelSize, stride, same)
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("%s: window %d larger than input %dx%d", op, kernelSize, g.h, g.w))
	}
	g.inPlane = g.h * g.w
	g.outPlane = g.hOut * g.wOut
	return g
}

// argmax returns the plane offset of the first maximum in the window at
// (oh, ow), or -1 when the window lies entirely in padding.
func (g poolGeometry) argmax(plane []float32, oh, ow int) int {
	best := -1
	var bestVal float32
	h0 := oh*g.stride - g.padTop
	w0 := ow*g.stride - g.padLeft
	for kh := max(h0, 0); kh < min(h0+g.kernel, g.h); kh++ {
		for kw := max(w0, 0); kw < min(w0+g.kernel, g.w); kw++ {
			idx := kh*g.w + kw
			if best < 0 || plane[idx] > bestVal {
				best = idx
				bestVal = plane[idx]
			}
		}
	}
	return best
}

// MaxPool2D performs 2D max pooling on NCHW input.
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int, same bool) *tensor.RawTensor {
	g := resolvePool("maxpool2d", input, kernelSize, stride, same)
	s := input.Shape()

	result := tensor.MustNewRaw(tensor.Shape{s[0], s[1], g.hOut, g.wOut}, tensor.Float32, cpu.device)
	in := input.AsFloat32()
	out := result.AsFloat32()

	parallel.For(g.planes, func(p int) {
		plane := in[p*g.inPlane : (p+1)*g.inPlane]
		dst := out[p*g.outPlane : (p+1)*g.outPlane]
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				if idx := g.argmax(plane, oh, ow); idx >= 0 {
					dst[oh*g.wOut+ow] = plane[idx]
				}
			}
		}
	}, cpu.parallel)

	return result
}

// MaxPool2DBackward routes each output gradient to the input position that
// won the forward max. Ties go to the first position in row-major order.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int, same bool) *tensor.RawTensor {
	g := resolvePool("maxpool2d backward", input, kernelSize, stride, same)
	requireFloat32("maxpool2d backward", grad)
	s := input.Shape()
	want := tensor.Shape{s[0], s[1], g.hOut, g.wOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("maxpool2d backward: grad shape %v, expected %v", grad.Shape(), want))
	}

	result := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	in := input.AsFloat32()
	gd := grad.AsFloat32()
	dx := result.AsFloat32()

	parallel.For(g.planes, func(p int) {
		plane := in[p*g.inPlane : (p+1)*g.inPlane]
		dPlane := dx[p*g.inPlane : (p+1)*g.inPlane]
		gPlane := gd[p*g.outPlane : (p+1)*g.outPlane]
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				if idx := g.argmax(plane, oh, ow); idx >= 0 {
					dPlane[idx] += gPlane[oh*g.wOut+ow]
				}
			}
		}
	}, cpu.parallel)

	return result
}
