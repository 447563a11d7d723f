package cpu

import (
	"testing"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

func intSlice(t *testing.T, data []int32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Int32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	copy(raw.AsInt32(), data)
	return raw
}

func TestEmbeddingLookup(t *testing.T) {
	b := New()
	weight := fromSlice(t, []float32{
		0, 0, // row 0 (pad)
		1, 1, // row 1
		2, 2, // row 2
	}, tensor.Shape{3, 2})
	indices := intSlice(t, []int32{2, 0, 1, 1}, tensor.Shape{2, 2})

	out := b.Embedding(weight, indices)
	if !out.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("shape %v, want [2 2 2]", out.Shape())
	}
	wantFloats(t, out, []float32{2, 2, 0, 0, 1, 1, 1, 1})
}

func TestEmbeddingOutOfRangePanics(t *testing.T) {
	b := New()
	weight := fromSlice(t, []float32{0, 0, 1, 1}, tensor.Shape{2, 2})
	indices := intSlice(t, []int32{5}, tensor.Shape{1})

	defer func() {
		if recover() == nil {
			t.Error("out-of-range index did not panic")
		}
	}()
	b.Embedding(weight, indices)
}

func TestGatherLastDim(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	idx := intSlice(t, []int32{2, 0}, tensor.Shape{2, 1})

	out := b.Gather(x, 1, idx)
	if !out.Shape().Equal(tensor.Shape{2, 1}) {
		t.Fatalf("shape %v, want [2 1]", out.Shape())
	}
	wantFloats(t, out, []float32{3, 4})
}

func TestGreaterAndWhere(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 5, 3}, tensor.Shape{3})
	y := fromSlice(t, []float32{2, 2, 2}, tensor.Shape{3})

	mask := b.Greater(x, y)
	got := mask.AsBool()
	if got[0] || !got[1] || !got[2] {
		t.Errorf("Greater = %v, want [false true true]", got)
	}

	picked := b.Where(mask, x, y)
	wantFloats(t, picked, []float32{2, 5, 3})
}

func TestCastBoolToFloat(t *testing.T) {
	b := New()
	raw, err := tensor.NewRaw(tensor.Shape{3}, tensor.Bool, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	copy(raw.AsBool(), []bool{true, false, true})

	out := b.Cast(raw, tensor.Float32)
	wantFloats(t, out, []float32{1, 0, 1})
}

func TestCastFloatToInt(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1.9, -2.1, 3}, tensor.Shape{3})

	out := b.Cast(x, tensor.Int32).AsInt32()
	if out[0] != 1 || out[1] != -2 || out[2] != 3 {
		t.Errorf("Cast = %v, want [1 -2 3]", out)
	}
}

func TestTranspose2D(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	out := b.Transpose(x)
	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape %v, want [3 2]", out.Shape())
	}
	wantFloats(t, out, []float32{1, 4, 2, 5, 3, 6})
}

func TestTranspose3DAxes(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}, tensor.Shape{2, 2, 3})

	// Swap the last two dims: [2, 2, 3] -> [2, 3, 2].
	out := b.Transpose(x, 0, 2, 1)
	if !out.Shape().Equal(tensor.Shape{2, 3, 2}) {
		t.Fatalf("shape %v, want [2 3 2]", out.Shape())
	}
	wantFloats(t, out, []float32{
		1, 4, 2, 5, 3, 6,
		7, 10, 8, 11, 9, 12,
	})
}

func TestCatLastDim(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := fromSlice(t, []float32{5, 6, 7, 8, 9, 10}, tensor.Shape{2, 3})

	out := b.Cat([]*tensor.RawTensor{x, y}, -1)
	if !out.Shape().Equal(tensor.Shape{2, 5}) {
		t.Fatalf("shape %v, want [2 5]", out.Shape())
	}
	wantFloats(t, out, []float32{1, 2, 5, 6, 7, 3, 4, 8, 9, 10})
}

func TestCatFirstDim(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 2}, tensor.Shape{1, 2})
	y := fromSlice(t, []float32{3, 4}, tensor.Shape{1, 2})

	out := b.Cat([]*tensor.RawTensor{x, y}, 0)
	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("shape %v, want [2 2]", out.Shape())
	}
	wantFloats(t, out, []float32{1, 2, 3, 4})
}

func TestSqueezeUnsqueeze(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})

	up := b.Unsqueeze(x, 0)
	if !up.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("Unsqueeze shape %v, want [1 3]", up.Shape())
	}

	down := b.Squeeze(up, 0)
	if !down.Shape().Equal(tensor.Shape{3}) {
		t.Fatalf("Squeeze shape %v, want [3]", down.Shape())
	}
}

func TestExpand(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 2}, tensor.Shape{2, 1})

	out := b.Expand(x, tensor.Shape{2, 3})
	wantFloats(t, out, []float32{1, 1, 1, 2, 2, 2})
}
