// Package nn implements the neural building blocks of the span-prediction
// model: linear and embedding layers, layer normalization, dropout, the
// self-attention encoder, context-to-question attention and the span
// decoders, plus the masked-softmax primitive they all share.
//
// Design follows the PyTorch Module convention adapted for Go generics:
// modules expose Forward plus Parameters, and serialize through
// StateDict/LoadStateDict maps of raw tensors.
package nn

import (
	"fmt"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Module is the base interface for trainable components.
type Module[B tensor.Backend] interface {
	// Parameters returns every trainable parameter, including those of
	// nested modules.
	Parameters() []*Parameter[B]

	// StateDict returns the parameter tensors keyed by hierarchical name.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies parameter data back in, validating shapes and
	// dtypes. Missing or mismatched entries are errors.
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// NumParameters sums the element counts of a module's parameters.
func NumParameters[B tensor.Backend](m Module[B]) int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}

// mergeStateDict copies src entries into dst under prefix.
func mergeStateDict(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

// subStateDict extracts the entries under prefix, with the prefix stripped.
func subStateDict(state map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	for name, raw := range state {
		if len(name) > len(prefix)+1 && name[:len(prefix)] == prefix && name[len(prefix)] == '.' {
			sub[name[len(prefix)+1:]] = raw
		}
	}
	return sub
}

// loadParam copies a named entry from a state dict into a parameter,
// validating shape and dtype.
func loadParam[B tensor.Backend](state map[string]*tensor.RawTensor, name string, p *Parameter[B]) error {
	raw, ok := state[name]
	if !ok {
		return fmt.Errorf("missing %q in state dict", name)
	}
	want := p.Tensor().Shape()
	if !raw.Shape().Equal(want) {
		return fmt.Errorf("%q shape mismatch: have %v, want %v", name, raw.Shape(), want)
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%q dtype mismatch: have %s, want float32", name, raw.DType())
	}
	copy(p.Tensor().Data(), raw.AsFloat32())
	return nil
}
