package serialization_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ghego/cs224n-win18-squad/internal/serialization"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

func makeTensor(t *testing.T, values []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw := tensor.MustNewRaw(shape, tensor.Float32, tensor.CPU)
	copy(raw.AsFloat32(), values)
	return raw
}

func sampleStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	ids := tensor.MustNewRaw(tensor.Shape{3}, tensor.Int32, tensor.CPU)
	copy(ids.AsInt32(), []int32{7, 8, 9})
	return map[string]*tensor.RawTensor{
		"encoder.weight": makeTensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}),
		"encoder.bias":   makeTensor(t, []float32{0.5, -0.5}, tensor.Shape{2}),
		"vocab.ids":      ids,
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.sqck")
	state := sampleStateDict(t)
	meta := &serialization.CheckpointMeta{
		GlobalStep:    1200,
		Epoch:         3,
		Loss:          2.75,
		DevF1:         41.2,
		OptimizerType: "Adam",
	}

	if err := serialization.Save(path, state, meta, map[string]string{"experiment": "baseline"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, header, err := serialization.Load(path, tensor.CPU)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded) != 3 {
		t.Fatalf("loaded %d tensors, want 3", len(loaded))
	}
	weight := loaded["encoder.weight"]
	if !weight.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("weight shape %v, want [2 3]", weight.Shape())
	}
	for i, want := range []float32{1, 2, 3, 4, 5, 6} {
		if got := weight.AsFloat32()[i]; got != want {
			t.Errorf("weight[%d] = %v, want %v", i, got, want)
		}
	}
	if got := loaded["vocab.ids"].AsInt32()[2]; got != 9 {
		t.Errorf("ids[2] = %d, want 9", got)
	}

	if header.CheckpointMeta == nil {
		t.Fatal("checkpoint meta missing")
	}
	if header.CheckpointMeta.GlobalStep != 1200 || header.CheckpointMeta.Epoch != 3 {
		t.Errorf("meta = %+v", header.CheckpointMeta)
	}
	if header.Metadata["experiment"] != "baseline" {
		t.Errorf("metadata = %v", header.Metadata)
	}
}

func TestDeterministicLayout(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.sqck")
	p2 := filepath.Join(dir, "b.sqck")

	state := sampleStateDict(t)
	if err := serialization.Save(p1, state, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := serialization.Save(p2, state, nil, nil); err != nil {
		t.Fatal(err)
	}

	r1, err := serialization.NewReader(p1)
	if err != nil {
		t.Fatal(err)
	}
	defer r1.Close()
	r2, err := serialization.NewReader(p2)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close()

	names := r1.TensorNames()
	// Sorted order on disk.
	if names[0] != "encoder.bias" || names[1] != "encoder.weight" || names[2] != "vocab.ids" {
		t.Errorf("tensor order %v", names)
	}
	for _, name := range names {
		m1, _ := r1.TensorInfo(name)
		m2, _ := r2.TensorInfo(name)
		if m1.Offset != m2.Offset || m1.Size != m2.Size {
			t.Errorf("layout for %s differs across identical saves", name)
		}
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.sqck")
	if err := serialization.Save(path, sampleStateDict(t), nil, nil); err != nil {
		t.Fatal(err)
	}

	// Flip one byte near the end of the file, inside the data section.
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content[len(content)-1] ^= 0xFF
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = serialization.NewReader(path)
	if !errors.Is(err, serialization.ErrChecksumMismatch) {
		t.Errorf("err = %v, want checksum mismatch", err)
	}

	// Skipping validation opens the corrupt file anyway.
	r, err := serialization.NewReaderWithOptions(path, serialization.ReaderOptions{
		SkipChecksumValidation: true,
		ValidationLevel:        serialization.ValidationStrict,
	})
	if err != nil {
		t.Fatalf("skip-checksum open failed: %v", err)
	}
	r.Close()
}

func TestRejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.sqck")
	junk := make([]byte, 128)
	copy(junk, "NOPE")
	if err := os.WriteFile(path, junk, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := serialization.NewReader(path)
	if !errors.Is(err, serialization.ErrInvalidMagic) {
		t.Errorf("err = %v, want invalid magic", err)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.sqck")
	if err := serialization.Save(path, sampleStateDict(t), nil, nil); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "model.sqck" {
		t.Errorf("directory contents: %v", entries)
	}
}

func TestLoadSingleTensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.sqck")
	if err := serialization.Save(path, sampleStateDict(t), nil, nil); err != nil {
		t.Fatal(err)
	}

	r, err := serialization.NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	raw, err := r.LoadTensor("encoder.bias", tensor.CPU)
	if err != nil {
		t.Fatalf("LoadTensor: %v", err)
	}
	if raw.AsFloat32()[1] != -0.5 {
		t.Errorf("bias[1] = %v, want -0.5", raw.AsFloat32()[1])
	}

	if _, err := r.LoadTensor("no.such.tensor", tensor.CPU); err == nil {
		t.Error("expected error for unknown tensor")
	}
}
