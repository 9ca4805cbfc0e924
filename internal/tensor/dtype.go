// Package tensor provides the core tensor types used by the training stack.
package tensor

import "fmt"

// DType is a constraint for supported tensor element types.
//
// float32 carries activations, weights and gradients, int64 carries class
// labels and uint8 carries raw image bytes.
type DType interface {
	~float32 | ~int64 | ~uint8
}

// DataType is the runtime tag of a tensor's element type.
type DataType int

// Element types.
const (
	Float32 DataType = iota
	Int64
	Uint8
)

var dataTypes = [...]struct {
	name string
	size int
}{
	Float32: {"float32", 4},
	Int64:   {"int64", 8},
	Uint8:   {"uint8", 1},
}

func (dt DataType) valid() bool {
	return dt >= 0 && int(dt) < len(dataTypes)
}

// Size returns the element width in bytes.
func (dt DataType) Size() int {
	if !dt.valid() {
		panic(fmt.Sprintf("tensor: unknown data type %d", int(dt)))
	}
	return dataTypes[dt].size
}

func (dt DataType) String() string {
	if !dt.valid() {
		return "unknown"
	}
	return dataTypes[dt].name
}

// dataTypeOf maps the static element type to its runtime tag.
func dataTypeOf[T DType]() DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case int64:
		return Int64
	case uint8:
		return Uint8
	}
	panic(fmt.Sprintf("tensor: unsupported element type %T", zero))
}
