// Package cpu implements the CPU backend: pure Go kernels with GEMM routed
// through gonum's blas32 and batch/channel fan-out through internal/parallel.
package cpu

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/born-ml/cifarnet/internal/parallel"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// Compile-time check that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a CPU backend that fans kernels out over physical cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallelism policy.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	if cpu.parallel.Enabled {
		return fmt.Sprintf("CPU(workers=%d)", cpu.parallel.NumWorkers)
	}
	return "CPU(serial)"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Describe reports the detected processor, used for startup logging.
func (cpu *CPUBackend) Describe() string {
	var features []string
	for _, f := range []cpuid.FeatureID{cpuid.SSE4, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F, cpuid.ASIMD} {
		if cpuid.CPU.Supports(f) {
			features = append(features, f.String())
		}
	}
	return fmt.Sprintf("%s, %d physical / %d logical cores, features [%s]",
		strings.TrimSpace(cpuid.CPU.BrandName), cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores,
		strings.Join(features, " "))
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(name, a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	out := result.AsFloat32()
	aData := a.AsFloat32()
	bData := b.AsFloat32()

	if !needsBroadcast {
		for i := range out {
			out[i] = f(aData[i], bData[i])
		}
		return result
	}

	walkBroadcast(outShape,
		tensor.BroadcastStrides(a.Shape(), outShape),
		tensor.BroadcastStrides(b.Shape(), outShape),
		func(o, ai, bi int) {
			out[o] = f(aData[ai], bData[bi])
		})
	return result
}

// SumToShape reduces a broadcast gradient back onto the shape of the operand
// that was broadcast. It is the adjoint of broadcasting.
func (cpu *CPUBackend) SumToShape(grad *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad
	}
	requireFloat32("sum_to_shape", grad)

	result := tensor.MustNewRaw(shape, tensor.Float32, cpu.device)
	out := result.AsFloat32()
	g := grad.AsFloat32()
	strides := tensor.BroadcastStrides(shape, grad.Shape())
	walkBroadcast(grad.Shape(), strides, strides, func(o, ri, _ int) {
		out[ri] += g[o]
	})
	return result
}

// Reshape returns a view of t with a new shape. The buffer is shared.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Transpose permutes dimensions into a new contiguous tensor.
// With no axes the dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	requireFloat32("transpose", t)
	inShape := t.Shape()
	ndim := len(inShape)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), ndim))
	}

	outShape := make(tensor.Shape, ndim)
	permStrides := make([]int, ndim)
	inStrides := t.Strides()
	seen := make([]bool, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v", axes))
		}
		seen[ax] = true
		outShape[i] = inShape[ax]
		permStrides[i] = inStrides[ax]
	}

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	out := result.AsFloat32()
	in := t.AsFloat32()
	walkBroadcast(outShape, permStrides, permStrides, func(o, ii, _ int) {
		out[o] = in[ii]
	})
	return result
}

// walkBroadcast visits every flat index of shape in row-major order together
// with the matching offsets under two stride sets.
func walkBroadcast(shape tensor.Shape, aStrides, bStrides []int, fn func(o, a, b int)) {
	n := shape.NumElements()
	idx := make([]int, len(shape))
	ai, bi := 0, 0
	for i := 0; i < n; i++ {
		fn(i, ai, bi)
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			ai += aStrides[d]
			bi += bStrides[d]
			if idx[d] < shape[d] {
				break
			}
			ai -= aStrides[d] * shape[d]
			bi -= bStrides[d] * shape[d]
			idx[d] = 0
		}
	}
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s (only float32 supported)", op, t.DType()))
		}
	}
}

func requireRank(op, name string, t *tensor.RawTensor, rank int) {
	if len(t.Shape()) != rank {
		panic(fmt.Sprintf("%s: %s must be %dD, got shape %v", op, name, rank, t.Shape()))
	}
}
