package tensor

import (
	"math"
	"math/rand"
	"sync"
)

// The package-level RNG feeds every random initializer so a run can be made
// reproducible with a single Seed call before model construction.
var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(1)) //nolint:gosec // statistical init, not crypto
)

// Seed re-seeds the initializer RNG.
func Seed(seed int64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = rand.New(rand.NewSource(seed)) //nolint:gosec // statistical init, not crypto
}

func randFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float64()
}

func randNormFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.NormFloat64()
}

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	t := tensor.Zeros[float32](tensor.Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err)
	}
	// Fresh buffers are already zeroed.
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones (true for Bool).
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case int32:
		one = int32(1)
	case bool:
		one = true
	}
	return Full[T, B](shape, one.(T), b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a Float32 tensor drawn from N(0, 1).
func Randn[B Backend](shape Shape, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = float32(randNormFloat64())
	}
	return t
}

// RandnScaled creates a Float32 tensor drawn from N(0, std²).
func RandnScaled[B Backend](shape Shape, std float64, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = float32(randNormFloat64() * std)
	}
	return t
}

// Rand creates a Float32 tensor uniform in [0, 1).
func Rand[B Backend](shape Shape, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = float32(randFloat64())
	}
	return t
}

// Uniform creates a Float32 tensor uniform in [low, high).
func Uniform[B Backend](shape Shape, low, high float64, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	span := high - low
	for i := range data {
		data[i] = float32(low + randFloat64()*span)
	}
	return t
}

// Bernoulli creates a Float32 tensor whose elements are 1 with probability
// p and 0 otherwise. Dropout masks are built from this.
func Bernoulli[B Backend](shape Shape, p float64, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	for i := range data {
		if randFloat64() < p {
			data[i] = 1
		}
	}
	return t
}

// Arange creates a 1D Int32 tensor [start, end).
func Arange[B Backend](start, end int32, b B) *Tensor[int32, B] {
	if end <= start {
		panic("end must be greater than start")
	}
	t := Zeros[int32, B](Shape{int(end - start)}, b)
	data := t.Data()
	for i := range data {
		data[i] = start + int32(i)
	}
	return t
}

// XavierUniform creates a Float32 tensor with Glorot/Xavier uniform
// initialization for a weight of shape [fanIn, fanOut].
func XavierUniform[B Backend](shape Shape, b B) *Tensor[float32, B] {
	if len(shape) != 2 {
		panic("XavierUniform requires a 2D shape")
	}
	limit := math.Sqrt(6.0 / float64(shape[0]+shape[1]))
	return Uniform[B](shape, -limit, limit, b)
}
