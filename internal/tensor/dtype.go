// Package tensor implements the dense tensor core the QA stack is built on:
// shapes with NumPy-style broadcasting, reference-counted raw buffers, the
// Backend contract compute devices implement, and a generic typed wrapper.
package tensor

// DType is the constraint for element types stored in tensors.
// Float32 carries activations and parameters, Int32 carries token ids and
// span indices, Bool carries comparison results.
type DType interface {
	~float32 | ~int32 | ~bool
}

// DataType is the runtime tag matching the DType constraint.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Int32
	Bool
)

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// inferDataType maps a generic type T to its runtime tag.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case int32:
		return Int32
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
