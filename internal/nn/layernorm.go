package nn

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// LayerNorm normalizes activations over the last dimension:
//
//	y = gamma * (x - mean) / sqrt(var + eps) + beta
//
// gamma starts at one and beta at zero, so a fresh layer is the identity.
type LayerNorm[B tensor.Backend] struct {
	gamma   *Parameter[B]
	beta    *Parameter[B]
	epsilon float32
	dim     int
}

// NewLayerNorm creates a LayerNorm over a feature dimension of the given
// size. epsilon is typically 1e-5.
func NewLayerNorm[B tensor.Backend](dim int, epsilon float32, backend B) *LayerNorm[B] {
	gamma := tensor.Ones[float32](tensor.Shape{dim}, backend)
	beta := tensor.Zeros[float32](tensor.Shape{dim}, backend)
	return &LayerNorm[B]{
		gamma:   NewParameter("gamma", gamma),
		beta:    NewParameter("beta", beta),
		epsilon: epsilon,
		dim:     dim,
	}
}

// Forward normalizes [..., dim] along the last axis.
func (l *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mean := x.MeanDim(-1, true)
	centered := x.Sub(mean)
	variance := centered.Mul(centered).MeanDim(-1, true)
	normalized := centered.Div(variance.AddScalar(l.epsilon).Sqrt())

	// Broadcast gamma/beta over the leading dimensions.
	shape := make(tensor.Shape, len(x.Shape()))
	for i := range shape {
		shape[i] = 1
	}
	shape[len(shape)-1] = l.dim
	gamma := l.gamma.Tensor().Reshape(shape...)
	beta := l.beta.Tensor().Reshape(shape...)

	return normalized.Mul(gamma).Add(beta)
}

// Parameters returns [gamma, beta].
func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.gamma, l.beta}
}

// StateDict returns gamma and beta.
func (l *LayerNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"gamma": l.gamma.Tensor().Raw(),
		"beta":  l.beta.Tensor().Raw(),
	}
}

// LoadStateDict restores gamma and beta.
func (l *LayerNorm[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := loadParam(state, "gamma", l.gamma); err != nil {
		return err
	}
	return loadParam(state, "beta", l.beta)
}
