package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/cifarnet/internal/parallel"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Conv2DInputBackward computes the gradient of Conv2D with respect to its input.
//
// Per sample: dcol = kernelᵀ @ grad, then col2im folds dcol back onto the image.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := resolveConv("conv2d input backward", input, kernel, stride, padding)
	checkConvGrad("conv2d input backward", grad, g)

	result := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	dx := result.AsFloat32()
	k := kernel.AsFloat32()
	gd := grad.AsFloat32()

	rows, cols := g.colRows(), g.colCols()
	inPlane := g.cIn * g.h * g.w
	outPlane := g.cOut * cols
	kMat := general(g.cOut, rows, k)

	parallel.For(g.n, func(b int) {
		dcol := make([]float32, rows*cols)
		blas32.Gemm(blas.Trans, blas.NoTrans, 1,
			kMat,
			general(g.cOut, cols, gd[b*outPlane:(b+1)*outPlane]),
			0,
			general(rows, cols, dcol))
		col2im(dx[b*inPlane:(b+1)*inPlane], dcol, g)
	}, cpu.parallel)

	return result
}

// Conv2DKernelBackward computes the gradient of Conv2D with respect to the kernel.
//
// dK = Σ_n grad_n @ col_nᵀ, accumulated in place. Samples are processed
// sequentially because every sample writes the whole kernel gradient.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := resolveConv("conv2d kernel backward", input, kernel, stride, padding)
	checkConvGrad("conv2d kernel backward", grad, g)

	result := tensor.MustNewRaw(kernel.Shape(), tensor.Float32, cpu.device)
	in := input.AsFloat32()
	gd := grad.AsFloat32()

	rows, cols := g.colRows(), g.colCols()
	inPlane := g.cIn * g.h * g.w
	outPlane := g.cOut * cols
	dk := general(g.cOut, rows, result.AsFloat32())
	col := make([]float32, rows*cols)

	for b := 0; b < g.n; b++ {
		im2col(col, in[b*inPlane:(b+1)*inPlane], g)
		blas32.Gemm(blas.NoTrans, blas.Trans, 1,
			general(g.cOut, cols, gd[b*outPlane:(b+1)*outPlane]),
			general(rows, cols, col),
			1,
			dk)
	}

	return result
}

func checkConvGrad(op string, grad *tensor.RawTensor, g convGeometry) {
	requireFloat32(op, grad)
	want := tensor.Shape{g.n, g.cOut, g.hOut, g.wOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: grad shape %v, expected %v", op, grad.Shape(), want))
	}
}
