package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/cifarnet/internal/parallel"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// convGeometry holds the resolved dimensions of one Conv2D call.
type convGeometry struct {
	n, cIn, h, w    int
	cOut, kh, kw    int
	hOut, wOut      int
	stride, padding int
}

// colRows is the im2col row count: one row per (c, kh, kw) tap.
func (g convGeometry) colRows() int { return g.cIn * g.kh * g.kw }

// colCols is the im2col column count: one column per output position.
func (g convGeometry) colCols() int { return g.hOut * g.wOut }

func resolveConv(op string, input, kernel *tensor.RawTensor, stride, padding int) convGeometry {
	requireFloat32(op, input, kernel)
	requireRank(op, "input", input, 4)
	requireRank(op, "kernel", kernel, 4)
	if stride < 1 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d or padding %d", op, stride, padding))
	}

	is, ks := input.Shape(), kernel.Shape()
	g := convGeometry{
		n: is[0], cIn: is[1], h: is[2], w: is[3],
		cOut: ks[0], kh: ks[2], kw: ks[3],
		stride: stride, padding: padding,
	}
	if ks[1] != g.cIn {
		panic(fmt.Sprintf("%s: input has %d channels, kernel expects %d", op, g.cIn, ks[1]))
	}
	g.hOut = (g.h+2*padding-g.kh)/stride + 1
	g.wOut = (g.w+2*padding-g.kw)/stride + 1
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("%s: kernel %dx%d larger than padded input %dx%d", op, g.kh, g.kw, g.h+2*padding, g.w+2*padding))
	}
	return g
}

// Conv2D performs 2D convolution using im2col followed by a GEMM per sample.
//
// Input:  [N, C_in, H, W]
// Kernel: [C_out, C_in, K_h, K_w]
// Output: [N, C_out, H_out, W_out].
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := resolveConv("conv2d", input, kernel, stride, padding)

	result := tensor.MustNewRaw(tensor.Shape{g.n, g.cOut, g.hOut, g.wOut}, tensor.Float32, cpu.device)
	in := input.AsFloat32()
	k := kernel.AsFloat32()
	out := result.AsFloat32()

	rows, cols := g.colRows(), g.colCols()
	inPlane := g.cIn * g.h * g.w
	outPlane := g.cOut * cols
	kMat := general(g.cOut, rows, k)

	parallel.For(g.n, func(b int) {
		col := make([]float32, rows*cols)
		im2col(col, in[b*inPlane:(b+1)*inPlane], g)
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			kMat,
			general(rows, cols, col),
			0,
			general(g.cOut, cols, out[b*outPlane:(b+1)*outPlane]))
	}, cpu.parallel)

	return result
}

// im2col unrolls one [C, H, W] sample into a [C*KH*KW, H_out*W_out] matrix.
// Row r = (c*KH + kh)*KW + kw, column = oh*W_out + ow. Padding reads as zero.
func im2col(col, img []float32, g convGeometry) {
	cols := g.colCols()
	for c := 0; c < g.cIn; c++ {
		for kh := 0; kh < g.kh; kh++ {
			for kw := 0; kw < g.kw; kw++ {
				row := ((c*g.kh+kh)*g.kw + kw) * cols
				for oh := 0; oh < g.hOut; oh++ {
					ih := oh*g.stride + kh - g.padding
					dst := col[row+oh*g.wOut : row+(oh+1)*g.wOut]
					if ih < 0 || ih >= g.h {
						clear(dst)
						continue
					}
					src := img[(c*g.h+ih)*g.w : (c*g.h+ih+1)*g.w]
					for ow := range dst {
						iw := ow*g.stride + kw - g.padding
						if iw < 0 || iw >= g.w {
							dst[ow] = 0
						} else {
							dst[ow] = src[iw]
						}
					}
				}
			}
		}
	}
}

// col2im is the adjoint of im2col: it scatters-adds a column matrix back onto
// a zeroed [C, H, W] sample. Padded taps are dropped.
func col2im(img, col []float32, g convGeometry) {
	cols := g.colCols()
	for c := 0; c < g.cIn; c++ {
		for kh := 0; kh < g.kh; kh++ {
			for kw := 0; kw < g.kw; kw++ {
				row := ((c*g.kh+kh)*g.kw + kw) * cols
				for oh := 0; oh < g.hOut; oh++ {
					ih := oh*g.stride + kh - g.padding
					if ih < 0 || ih >= g.h {
						continue
					}
					dst := img[(c*g.h+ih)*g.w : (c*g.h+ih+1)*g.w]
					src := col[row+oh*g.wOut : row+(oh+1)*g.wOut]
					for ow, v := range src {
						iw := ow*g.stride + kw - g.padding
						if iw >= 0 && iw < g.w {
							dst[iw] += v
						}
					}
				}
			}
		}
	}
}
