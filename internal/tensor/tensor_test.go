package tensor

import (
	"math"
	"testing"
)

// nullBackend satisfies Backend for tests that only allocate and index
// tensors. Compute methods are never reached.
type nullBackend struct{}

func (nullBackend) Add(a, b *RawTensor) *RawTensor                 { panic("not implemented") }
func (nullBackend) Sub(a, b *RawTensor) *RawTensor                 { panic("not implemented") }
func (nullBackend) Mul(a, b *RawTensor) *RawTensor                 { panic("not implemented") }
func (nullBackend) Div(a, b *RawTensor) *RawTensor                 { panic("not implemented") }
func (nullBackend) MatMul(a, b *RawTensor) *RawTensor              { panic("not implemented") }
func (nullBackend) BatchMatMul(a, b *RawTensor) *RawTensor         { panic("not implemented") }
func (nullBackend) Reshape(t *RawTensor, s Shape) *RawTensor       { panic("not implemented") }
func (nullBackend) Transpose(t *RawTensor, axes ...int) *RawTensor { panic("not implemented") }
func (nullBackend) Expand(x *RawTensor, s Shape) *RawTensor        { panic("not implemented") }
func (nullBackend) Cat(ts []*RawTensor, dim int) *RawTensor        { panic("not implemented") }
func (nullBackend) Unsqueeze(x *RawTensor, dim int) *RawTensor     { panic("not implemented") }
func (nullBackend) Squeeze(x *RawTensor, dim int) *RawTensor       { panic("not implemented") }
func (nullBackend) AddScalar(x *RawTensor, s any) *RawTensor       { panic("not implemented") }
func (nullBackend) MulScalar(x *RawTensor, s any) *RawTensor       { panic("not implemented") }
func (nullBackend) Exp(x *RawTensor) *RawTensor                    { panic("not implemented") }
func (nullBackend) Log(x *RawTensor) *RawTensor                    { panic("not implemented") }
func (nullBackend) Sqrt(x *RawTensor) *RawTensor                   { panic("not implemented") }
func (nullBackend) Tanh(x *RawTensor) *RawTensor                   { panic("not implemented") }
func (nullBackend) Relu(x *RawTensor) *RawTensor                   { panic("not implemented") }
func (nullBackend) Softmax(x *RawTensor, dim int) *RawTensor       { panic("not implemented") }
func (nullBackend) Sum(x *RawTensor) *RawTensor                    { panic("not implemented") }
func (nullBackend) SumDim(x *RawTensor, d int, k bool) *RawTensor  { panic("not implemented") }
func (nullBackend) MeanDim(x *RawTensor, d int, k bool) *RawTensor { panic("not implemented") }
func (nullBackend) Argmax(x *RawTensor, dim int) *RawTensor        { panic("not implemented") }
func (nullBackend) Greater(a, b *RawTensor) *RawTensor             { panic("not implemented") }
func (nullBackend) Where(c, x, y *RawTensor) *RawTensor            { panic("not implemented") }
func (nullBackend) Embedding(w, i *RawTensor) *RawTensor           { panic("not implemented") }
func (nullBackend) Gather(x *RawTensor, d int, i *RawTensor) *RawTensor {
	panic("not implemented")
}
func (nullBackend) Cast(x *RawTensor, dt DataType) *RawTensor { panic("not implemented") }
func (nullBackend) Name() string                              { return "null" }
func (nullBackend) Device() Device                            { return CPU }

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Int32, 4},
		{Bool, 1},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
	}
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Fatalf("strides = %v, want %v", strides, want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("zero dimension accepted")
	}
	if err := (Shape{-1, 3}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b, want Shape
		stretch    bool
		wantErr    bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{1, 5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		got, stretch, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			if err == nil {
				t.Errorf("BroadcastShapes(%v, %v): expected error", tt.a, tt.b)
			}
			continue
		}
		if err != nil {
			t.Errorf("BroadcastShapes(%v, %v): %v", tt.a, tt.b, err)
			continue
		}
		if !got.Equal(tt.want) || stretch != tt.stretch {
			t.Errorf("BroadcastShapes(%v, %v) = %v/%v, want %v/%v",
				tt.a, tt.b, got, stretch, tt.want, tt.stretch)
		}
	}
}

func TestNormalizeDim(t *testing.T) {
	s := Shape{2, 3, 4}
	if got := s.NormalizeDim(-1); got != 2 {
		t.Errorf("NormalizeDim(-1) = %d, want 2", got)
	}
	if got := s.NormalizeDim(0); got != 0 {
		t.Errorf("NormalizeDim(0) = %d, want 0", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("out-of-range dim did not panic")
		}
	}()
	s.NormalizeDim(3)
}

func TestRawTensorRefCounting(t *testing.T) {
	raw, err := NewRaw(Shape{4}, Float32, CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	if !raw.IsUnique() {
		t.Error("fresh tensor should be unique")
	}

	clone := raw.Clone()
	if raw.IsUnique() || clone.IsUnique() {
		t.Error("cloned buffer should not be unique")
	}

	clone.Release()
	if !raw.IsUnique() {
		t.Error("releasing the clone should restore uniqueness")
	}

	restore := raw.ForceNonUnique()
	if raw.IsUnique() {
		t.Error("ForceNonUnique should pin the buffer")
	}
	restore()
	if !raw.IsUnique() {
		t.Error("restore func should unpin the buffer")
	}
}

func TestFromSliceAndIndexing(t *testing.T) {
	b := nullBackend{}
	tt, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, b)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}

	if got := tt.At(1, 2); got != 6 {
		t.Errorf("At(1,2) = %v, want 6", got)
	}
	tt.Set(42, 0, 1)
	if got := tt.At(0, 1); got != 42 {
		t.Errorf("Set/At roundtrip = %v, want 42", got)
	}

	if _, err := FromSlice([]float32{1, 2}, Shape{3}, b); err == nil {
		t.Error("length mismatch accepted")
	}
}

func TestItem(t *testing.T) {
	b := nullBackend{}
	scalar, err := FromSlice([]float32{3.5}, Shape{}, b)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	if got := scalar.Item(); got != 3.5 {
		t.Errorf("Item() = %v, want 3.5", got)
	}
}

func TestCreationFunctions(t *testing.T) {
	b := nullBackend{}

	ones := Ones[float32](Shape{2, 2}, b)
	for _, v := range ones.Data() {
		if v != 1 {
			t.Fatalf("Ones produced %v", v)
		}
	}

	full := Full[int32](Shape{3}, 7, b)
	for _, v := range full.Data() {
		if v != 7 {
			t.Fatalf("Full produced %v", v)
		}
	}

	ar := Arange(2, 6, b)
	want := []int32{2, 3, 4, 5}
	for i, v := range ar.Data() {
		if v != want[i] {
			t.Fatalf("Arange = %v, want %v", ar.Data(), want)
		}
	}
}

func TestSeedReproducibility(t *testing.T) {
	b := nullBackend{}

	Seed(7)
	a := Randn(Shape{16}, b).Data()
	Seed(7)
	c := Randn(Shape{16}, b).Data()

	for i := range a {
		if a[i] != c[i] {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, a[i], c[i])
		}
	}
}

func TestBernoulliRange(t *testing.T) {
	b := nullBackend{}
	Seed(3)
	mask := Bernoulli(Shape{1000}, 0.5, b).Data()

	ones := 0
	for _, v := range mask {
		if v != 0 && v != 1 {
			t.Fatalf("Bernoulli produced %v", v)
		}
		if v == 1 {
			ones++
		}
	}
	if ones < 400 || ones > 600 {
		t.Errorf("Bernoulli(0.5) kept %d/1000, outside loose bounds", ones)
	}
}

func TestXavierUniformBounds(t *testing.T) {
	b := nullBackend{}
	Seed(11)
	w := XavierUniform(Shape{30, 50}, b)

	limit := math.Sqrt(6.0 / 80.0)
	for _, v := range w.Data() {
		if float64(v) < -limit || float64(v) > limit {
			t.Fatalf("weight %v outside [-%v, %v]", v, limit, limit)
		}
	}
}

func TestDetachSharesData(t *testing.T) {
	b := nullBackend{}
	orig, _ := FromSlice([]float32{1, 2, 3}, Shape{3}, b)
	det := orig.Detach()

	det.Data()[0] = 9
	if orig.At(0) != 9 {
		t.Error("Detach should alias the original data")
	}
	if det.RequiresGrad() {
		t.Error("detached tensor must not require grad")
	}
}
