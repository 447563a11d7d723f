package cpu

import (
	"math"
	"testing"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	copy(raw.AsFloat32(), data)
	return raw
}

func wantFloats(t *testing.T, got *tensor.RawTensor, want []float32) {
	t.Helper()
	data := got.AsFloat32()
	if len(data) != len(want) {
		t.Fatalf("length %d, want %d", len(data), len(want))
	}
	for i := range want {
		if math.Abs(float64(data[i]-want[i])) > 1e-5 {
			t.Fatalf("element %d = %v, want %v (full: %v)", i, data[i], want[i], data)
		}
	}
}

func TestAddSameShape(t *testing.T) {
	b := New()
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	c := fromSlice(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})

	wantFloats(t, b.Add(a, c), []float32{11, 22, 33, 44})
}

func TestAddInplaceReusesBuffer(t *testing.T) {
	b := New()
	a := fromSlice(t, []float32{1, 2}, tensor.Shape{2})
	c := fromSlice(t, []float32{3, 4}, tensor.Shape{2})

	out := b.Add(a, c)
	if out != a {
		t.Error("unique lhs should be updated in place")
	}

	// A pinned buffer must force an allocation.
	d := fromSlice(t, []float32{1, 1}, tensor.Shape{2})
	release := d.ForceNonUnique()
	defer release()
	out2 := b.Add(d, c)
	if out2 == d {
		t.Error("pinned lhs must not be modified in place")
	}
	wantFloats(t, d, []float32{1, 1})
}

func TestAddBroadcast(t *testing.T) {
	b := New()
	bias := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})
	x := fromSlice(t, []float32{10, 10, 10, 20, 20, 20}, tensor.Shape{2, 3})

	out := b.Add(x, bias)
	if !out.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("shape %v, want [2 3]", out.Shape())
	}
	wantFloats(t, out, []float32{11, 12, 13, 21, 22, 23})
}

func TestSubMulDiv(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{4, 9, 16, 25}, tensor.Shape{4})
	y := fromSlice(t, []float32{2, 3, 4, 5}, tensor.Shape{4})

	wantFloats(t, b.Sub(x.Clone(), y), []float32{2, 6, 12, 20})
	wantFloats(t, b.Mul(x.Clone(), y), []float32{8, 27, 64, 125})
	wantFloats(t, b.Div(x.Clone(), y), []float32{2, 3, 4, 5})
}

func TestBroadcastColumnVector(t *testing.T) {
	b := New()
	col := fromSlice(t, []float32{1, 2}, tensor.Shape{2, 1})
	row := fromSlice(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

	out := b.Mul(col, row)
	wantFloats(t, out, []float32{10, 20, 30, 20, 40, 60})
}

func TestReshapeIsView(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	r := b.Reshape(x, tensor.Shape{3, 2})
	if !r.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape %v, want [3 2]", r.Shape())
	}

	// Same buffer: writes through the view are visible in the source.
	r.AsFloat32()[0] = 99
	if x.AsFloat32()[0] != 99 {
		t.Error("reshape should share the underlying buffer")
	}
}

func TestUnaryOps(t *testing.T) {
	b := New()

	x := fromSlice(t, []float32{0, 1, 4}, tensor.Shape{3})
	wantFloats(t, b.Sqrt(x), []float32{0, 1, 2})

	y := fromSlice(t, []float32{-1, 0, 2}, tensor.Shape{3})
	wantFloats(t, b.Relu(y), []float32{0, 0, 2})

	z := fromSlice(t, []float32{0, 1}, tensor.Shape{2})
	wantFloats(t, b.Exp(z), []float32{1, float32(math.E)})

	w := fromSlice(t, []float32{1, float32(math.E)}, tensor.Shape{2})
	wantFloats(t, b.Log(w), []float32{0, 1})

	v := fromSlice(t, []float32{0}, tensor.Shape{1})
	wantFloats(t, b.Tanh(v), []float32{0})
}

func TestScalarOps(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})
	wantFloats(t, b.MulScalar(x, float32(2)), []float32{2, 4, 6})

	y := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})
	wantFloats(t, b.AddScalar(y, -1), []float32{0, 1, 2})
}

func TestIncompatibleShapesPanic(t *testing.T) {
	b := New()
	x := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})
	y := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{4})

	defer func() {
		if recover() == nil {
			t.Error("incompatible shapes did not panic")
		}
	}()
	b.Add(x, y)
}
