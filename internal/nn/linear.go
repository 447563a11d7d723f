package nn

import (
	"fmt"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Linear is a fully connected layer computing y = x @ Wᵀ + b.
//
// Weight shape is [outFeatures, inFeatures] (PyTorch layout), initialized
// with Xavier uniform; bias starts at zero. Inputs of rank three
// [batch, seq, in] are flattened to 2D for the product and restored after,
// which is how every per-position projection in the model runs.
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
	backend     B
}

// NewLinear creates a Linear layer with Xavier-initialized weights.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	weight := tensor.XavierUniform(tensor.Shape{outFeatures, inFeatures}, backend)
	bias := tensor.Zeros[float32](tensor.Shape{outFeatures}, backend)

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
		backend:     backend,
	}
}

// Forward applies the affine transform. Accepts [batch, in] or
// [batch, seq, in]; the feature dimension must match.
func (l *Linear[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	last := shape[len(shape)-1]
	if last != l.inFeatures {
		panic(fmt.Sprintf("linear: input has %d features, layer expects %d", last, l.inFeatures))
	}

	flat := x
	if len(shape) == 3 {
		flat = x.Reshape(shape[0]*shape[1], last)
	} else if len(shape) != 2 {
		panic(fmt.Sprintf("linear: unsupported input rank %d", len(shape)))
	}

	out := flat.MatMul(l.weight.Tensor().T())
	out = out.Add(l.bias.Tensor().Reshape(1, l.outFeatures))

	if len(shape) == 3 {
		out = out.Reshape(shape[0], shape[1], l.outFeatures)
	}
	return out
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// StateDict returns the layer's parameters.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}

// LoadStateDict restores the layer's parameters.
func (l *Linear[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := loadParam(state, "weight", l.weight); err != nil {
		return err
	}
	return loadParam(state, "bias", l.bias)
}
