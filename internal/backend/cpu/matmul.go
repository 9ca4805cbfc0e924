package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("matmul", a, b)
	requireRank("matmul", "a", a, 2)
	requireRank("matmul", "b", b, 2)

	m, k := a.Shape()[0], a.Shape()[1]
	k2, n := b.Shape()[0], b.Shape()[1]
	if k != k2 {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", a.Shape(), b.Shape()))
	}

	result := tensor.MustNewRaw(tensor.Shape{m, n}, tensor.Float32, cpu.device)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		general(m, k, a.AsFloat32()),
		general(k, n, b.AsFloat32()),
		0,
		general(m, n, result.AsFloat32()))
	return result
}

// general wraps a dense row-major slice as a blas32 matrix.
func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}
