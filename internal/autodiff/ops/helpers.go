package ops

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// reduceBroadcast folds a gradient back to the shape of an input that was
// broadcast during the forward pass: leading extra dimensions are summed
// away, then every dimension the input held at size 1 is summed with
// keepDim so the result can be viewed as the target shape.
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		// Clone so gradient accumulation cannot alias a shared buffer.
		return grad.Clone()
	}

	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	for i, size := range targetShape {
		if size == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// scale returns grad * s without touching the tape (backward runs with
// recording off, so backend calls here are safe).
func scale(grad *tensor.RawTensor, s float32, backend tensor.Backend) *tensor.RawTensor {
	return backend.MulScalar(grad, s)
}
