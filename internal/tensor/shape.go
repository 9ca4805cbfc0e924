package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared from the trailing dimension. Two dimensions are
// compatible when they are equal or one of them is 1; missing dimensions
// count as 1.
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed,
// and an error if the shapes are incompatible.
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aDim, bDim := 1, 1
		if idx := len(a) - 1 - i; idx >= 0 {
			aDim = a[idx]
		}
		if idx := len(b) - 1 - i; idx >= 0 {
			bDim = b[idx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// BroadcastStrides returns strides that map an index in target onto a tensor
// of the given shape. Broadcast dimensions get stride 0.
//
// shape must be broadcast-compatible with target and have rank <= len(target).
func BroadcastStrides(shape, target Shape) []int {
	own := shape.ComputeStrides()
	out := make([]int, len(target))
	offset := len(target) - len(shape)
	for i := range shape {
		if shape[i] != 1 {
			out[offset+i] = own[i]
		}
	}
	return out
}

// WindowOutput computes the output extent and leading padding of a sliding
// window along one spatial axis.
//
// With same=false the window only visits fully valid positions:
// out = (in - kernel) / stride + 1.
// With same=true the output covers ceil(in / stride) positions and the total
// padding (out-1)*stride + kernel - in is split with the smaller half first,
// matching the usual "SAME" convention.
func WindowOutput(in, kernel, stride int, same bool) (out, padBefore int) {
	if !same {
		return (in-kernel)/stride + 1, 0
	}
	out = (in + stride - 1) / stride
	total := max((out-1)*stride+kernel-in, 0)
	return out, total / 2
}
