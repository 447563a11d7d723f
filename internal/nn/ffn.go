package nn

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// FFN is the position-wise feed-forward half of an encoder block: two
// linear layers around a ReLU, expanding to ffDim and projecting back.
type FFN[B tensor.Backend] struct {
	up   *Linear[B]
	down *Linear[B]
}

// NewFFN creates an FFN mapping dim -> ffDim -> dim.
func NewFFN[B tensor.Backend](dim, ffDim int, backend B) *FFN[B] {
	return &FFN[B]{
		up:   NewLinear(dim, ffDim, backend),
		down: NewLinear(ffDim, dim, backend),
	}
}

// Forward applies down(relu(up(x))).
func (f *FFN[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return f.down.Forward(f.up.Forward(x).Relu())
}

// Parameters returns the parameters of both projections.
func (f *FFN[B]) Parameters() []*Parameter[B] {
	return append(f.up.Parameters(), f.down.Parameters()...)
}

// StateDict returns both projections under "up." and "down." prefixes.
func (f *FFN[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	mergeStateDict(state, "up", f.up.StateDict())
	mergeStateDict(state, "down", f.down.StateDict())
	return state
}

// LoadStateDict restores both projections.
func (f *FFN[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := f.up.LoadStateDict(subStateDict(state, "up")); err != nil {
		return err
	}
	return f.down.LoadStateDict(subStateDict(state, "down"))
}
