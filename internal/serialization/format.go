// Package serialization implements the binary checkpoint format used for
// model and optimizer state.
//
// File layout:
//
//	[64-byte fixed header]
//	  0x00-0x03  magic "SQCK"
//	  0x04-0x07  format version (uint32 LE)
//	  0x08-0x0B  flags (uint32 LE)
//	  0x0C-0x0F  reserved
//	  0x10-0x17  JSON header size (uint64 LE)
//	  0x18-0x1F  tensor data size (uint64 LE)
//	  0x20-0x3F  SHA-256 checksum of the tensor data
//	[JSON header: tensor metadata + training state]
//	[padding to a 64-byte boundary]
//	[tensor data: raw little-endian bytes, in sorted name order]
package serialization

import (
	"sort"
	"time"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "SQCK"
	FormatVersion   = 1
	FixedHeaderSize = 64   // bytes
	DataAlignment   = 64   // tensor data starts on a 64-byte boundary
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // within the fixed header
)

// Data type names used in the JSON header.
const (
	DTypeFloat32 = "float32"
	DTypeInt32   = "int32"
	DTypeBool    = "bool"
)

// Header flags.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 1 // custom metadata included
)

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta records where in training a checkpoint was taken.
type CheckpointMeta struct {
	GlobalStep    int     `json:"global_step"`
	Epoch         int     `json:"epoch"`
	Loss          float64 `json:"loss"`
	DevF1         float64 `json:"dev_f1,omitempty"`
	DevEM         float64 `json:"dev_em,omitempty"`
	OptimizerType string  `json:"optimizer_type,omitempty"`
}

// TensorMeta describes one tensor in the data section. Offset is relative
// to the start of the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// sortedNames returns the state dict's keys in the order tensors are laid
// out on disk. Sorting keeps the byte stream deterministic for a given
// state, so identical states produce identical checksums.
func sortedNames(stateDict map[string]*tensor.RawTensor) []string {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Int32:
		return DTypeInt32
	case tensor.Bool:
		return DTypeBool
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeInt32:
		return tensor.Int32, true
	case DTypeBool:
		return tensor.Bool, true
	default:
		return 0, false
	}
}
