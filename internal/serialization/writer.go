package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Writer writes checkpoint files.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates a checkpoint file at path, truncating any existing
// file.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create checkpoint: %w", err)
	}
	return &Writer{file: file}, nil
}

// WriteStateDict writes a state dictionary with optional training
// metadata. Tensors are laid out in sorted name order.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, meta *CheckpointMeta, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	header := Header{
		FormatVersion:  FormatVersion,
		CreatedAt:      time.Now().UTC(),
		Tensors:        make([]TensorMeta, 0, len(stateDict)),
		Metadata:       metadata,
		CheckpointMeta: meta,
	}

	names := sortedNames(stateDict)
	var dataSize int64
	for _, name := range names {
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: dataSize,
			Size:   size,
		})
		dataSize += size
	}

	data := make([]byte, 0, dataSize)
	for _, name := range names {
		data = append(data, stateDict[name].Data()...)
	}
	checksum := ComputeChecksum(data)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)

	var flags uint32
	if meta != nil {
		flags |= FlagHasOptimizer
	}
	if len(metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(dataSize))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.file.Write(fixed); err != nil {
		return fmt.Errorf("write fixed header: %w", err)
	}
	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	pos := int64(FixedHeaderSize) + int64(len(headerJSON))
	if padding := (DataAlignment - pos%DataAlignment) % DataAlignment; padding > 0 {
		if _, err := w.file.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
	}

	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("write tensor data: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Save writes a state dictionary to path in one call, through a temp
// file renamed into place so a crash mid-write never leaves a truncated
// checkpoint behind.
func Save(path string, stateDict map[string]*tensor.RawTensor, meta *CheckpointMeta, metadata map[string]string) error {
	tmp := path + ".tmp"
	writer, err := NewWriter(tmp)
	if err != nil {
		return err
	}
	if err := writer.WriteStateDict(stateDict, meta, metadata); err != nil {
		_ = writer.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := writer.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
