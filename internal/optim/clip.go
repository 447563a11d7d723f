package optim

import (
	"math"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// GlobalNorm returns the L2 norm of all gradients in the map taken
// together, the value the training loop logs each report.
func GlobalNorm(grads map[*tensor.RawTensor]*tensor.RawTensor) float32 {
	var sumSquares float64
	for _, grad := range grads {
		for _, g := range grad.AsFloat32() {
			sumSquares += float64(g) * float64(g)
		}
	}
	return float32(math.Sqrt(sumSquares))
}

// ClipByGlobalNorm rescales every gradient in place so their joint L2
// norm is at most maxNorm, and returns the norm measured before
// clipping. A non-positive maxNorm disables clipping.
func ClipByGlobalNorm(grads map[*tensor.RawTensor]*tensor.RawTensor, maxNorm float32) float32 {
	norm := GlobalNorm(grads)
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}

	scale := maxNorm / norm
	for _, grad := range grads {
		data := grad.AsFloat32()
		for i := range data {
			data[i] *= scale
		}
	}
	return norm
}

// ParamNorm returns the joint L2 norm of a set of parameter tensors,
// logged alongside the gradient norm during training.
func ParamNorm(params []*tensor.RawTensor) float32 {
	var sumSquares float64
	for _, p := range params {
		for _, v := range p.AsFloat32() {
			sumSquares += float64(v) * float64(v)
		}
	}
	return float32(math.Sqrt(sumSquares))
}
