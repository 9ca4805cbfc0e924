package tensor

import "fmt"

// Add performs element-wise addition with broadcasting.
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// MatMul performs 2D matrix multiplication.
//
//	[M, K] @ [K, N] -> [M, N]
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.MatMul(t.raw, other.raw), t.backend)
}

// Reshape returns a tensor with the same data and a new shape.
// One dimension may be -1 and is inferred from the element count.
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	shape := inferShape(newShape, t.NumElements())
	return New[T, B](t.backend.Reshape(t.raw, shape), t.backend)
}

// Transpose permutes dimensions. With no axes the dimensions are reversed.
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// ReLU applies max(0, x) element-wise.
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] {
	return New[T, B](t.backend.ReLU(t.raw), t.backend)
}

func inferShape(dims []int, numElements int) Shape {
	shape := make(Shape, len(dims))
	known := 1
	inferred := -1
	for i, d := range dims {
		if d == -1 {
			if inferred >= 0 {
				panic("reshape: only one dimension can be -1")
			}
			inferred = i
			continue
		}
		shape[i] = d
		known *= d
	}
	if inferred >= 0 {
		if known == 0 || numElements%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension for %v from %d elements", dims, numElements))
		}
		shape[inferred] = numElements / known
	}
	return shape
}
