package cpu

import (
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Contiguous float32 kernels. The loops are kept branch-free over plain
// slices so the compiler can vectorize them.

func addInplace(a, b []float32) {
	for i := range a {
		a[i] += b[i]
	}
}

func subInplace(a, b []float32) {
	for i := range a {
		a[i] -= b[i]
	}
}

func mulInplace(a, b []float32) {
	for i := range a {
		a[i] *= b[i]
	}
}

func divInplace(a, b []float32) {
	for i := range a {
		a[i] /= b[i]
	}
}

func addVectorized(dst, a, b []float32) {
	for i := range a {
		dst[i] = a[i] + b[i]
	}
}

func subVectorized(dst, a, b []float32) {
	for i := range a {
		dst[i] = a[i] - b[i]
	}
}

func mulVectorized(dst, a, b []float32) {
	for i := range a {
		dst[i] = a[i] * b[i]
	}
}

func divVectorized(dst, a, b []float32) {
	for i := range a {
		dst[i] = a[i] / b[i]
	}
}

// Broadcast kernels walk the output index space and map every position back
// to the (possibly stretched) inputs via stride-0 tricks.

func addBroadcast(dst, a, b []float32, aShape, bShape, outShape tensor.Shape) {
	broadcastLoop(dst, a, b, aShape, bShape, outShape, func(x, y float32) float32 { return x + y })
}

func subBroadcast(dst, a, b []float32, aShape, bShape, outShape tensor.Shape) {
	broadcastLoop(dst, a, b, aShape, bShape, outShape, func(x, y float32) float32 { return x - y })
}

func mulBroadcast(dst, a, b []float32, aShape, bShape, outShape tensor.Shape) {
	broadcastLoop(dst, a, b, aShape, bShape, outShape, func(x, y float32) float32 { return x * y })
}

func divBroadcast(dst, a, b []float32, aShape, bShape, outShape tensor.Shape) {
	broadcastLoop(dst, a, b, aShape, bShape, outShape, func(x, y float32) float32 { return x / y })
}

func broadcastLoop(dst, a, b []float32, aShape, bShape, outShape tensor.Shape, f func(x, y float32) float32) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		dst[i] = f(a[mapIndex(i, outStrides, aStrides)], b[mapIndex(i, outStrides, bStrides)])
	}
}

// broadcastStrides computes input strides aligned to outShape, with 0 for
// stretched or missing dimensions.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	offset := outDim - len(inShape)
	orig := inShape.ComputeStrides()

	strides := make([]int, outDim)
	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = orig[inIdx]
		}
	}
	return strides
}

// mapIndex converts a flat output index to the flat input index using the
// broadcast-adjusted strides.
func mapIndex(outIdx int, outStrides, inStrides []int) int {
	flat := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flat += coord * inStrides[i]
	}
	return flat
}
