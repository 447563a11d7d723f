package serialization_test

import (
	"testing"

	"github.com/ghego/cs224n-win18-squad/internal/serialization"
)

func TestValidateTensorOffsetsAcceptsPacked(t *testing.T) {
	tensors := []serialization.TensorMeta{
		{Name: "a", Offset: 0, Size: 16},
		{Name: "b", Offset: 16, Size: 8},
	}
	if err := serialization.ValidateTensorOffsets(tensors, 24); err != nil {
		t.Errorf("packed layout rejected: %v", err)
	}
}

func TestValidateTensorOffsetsRejectsOverlap(t *testing.T) {
	tensors := []serialization.TensorMeta{
		{Name: "a", Offset: 0, Size: 20},
		{Name: "b", Offset: 16, Size: 8},
	}
	err := serialization.ValidateTensorOffsets(tensors, 64)
	if err == nil {
		t.Fatal("overlap not detected")
	}
	vErr, ok := err.(*serialization.ValidationError)
	if !ok || vErr.Type != "offset_overlap" {
		t.Errorf("err = %v, want offset_overlap", err)
	}
}

func TestValidateTensorOffsetsRejectsOutOfBounds(t *testing.T) {
	tensors := []serialization.TensorMeta{{Name: "a", Offset: 0, Size: 100}}
	if err := serialization.ValidateTensorOffsets(tensors, 64); err == nil {
		t.Error("out of bounds not detected")
	}
}

func TestValidateTensorOffsetsRejectsNegative(t *testing.T) {
	tensors := []serialization.TensorMeta{{Name: "a", Offset: -8, Size: 16}}
	if err := serialization.ValidateTensorOffsets(tensors, 64); err == nil {
		t.Error("negative offset not detected")
	}
}

func TestValidateTensorName(t *testing.T) {
	good := []string{"weight", "encoder.attn.query.weight", "m.0"}
	for _, name := range good {
		if err := serialization.ValidateTensorName(name); err != nil {
			t.Errorf("valid name %q rejected: %v", name, err)
		}
	}

	bad := []string{"../etc/passwd", "a/b", "a\\b", "nul\x00byte"}
	for _, name := range bad {
		if err := serialization.ValidateTensorName(name); err == nil {
			t.Errorf("bad name %q accepted", name)
		}
	}
}

func TestValidationLevels(t *testing.T) {
	header := &serialization.Header{
		Tensors: []serialization.TensorMeta{
			{Name: "a", Offset: 0, Size: 100}, // out of bounds for dataSize 64
		},
	}

	if err := serialization.ValidateHeader(header, 64, serialization.ValidationStrict); err == nil {
		t.Error("strict validation should catch out-of-bounds tensors")
	}
	if err := serialization.ValidateHeader(header, 64, serialization.ValidationNormal); err != nil {
		t.Errorf("normal validation should skip offset checks: %v", err)
	}
	if err := serialization.ValidateHeader(header, 64, serialization.ValidationNone); err != nil {
		t.Errorf("none level should skip everything: %v", err)
	}
}
