package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Reader reads checkpoint files.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures checkpoint loading.
type ReaderOptions struct {
	// SkipChecksumValidation loads without verifying the SHA-256
	// digest. Faster, but corrupt files go undetected.
	SkipChecksumValidation bool

	// ValidationLevel controls header validation strictness.
	ValidationLevel ValidationLevel
}

// NewReader opens a checkpoint with strict validation.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewReaderWithOptions opens a checkpoint with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}

	reader := &Reader{file: file, opts: opts}
	if err := reader.parseHeader(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("parse header: %w", err)
	}

	if err := ValidateHeader(&reader.header, reader.dataSize, opts.ValidationLevel); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("validate header: %w", err)
	}
	return reader, nil
}

func (r *Reader) parseHeader() error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return fmt.Errorf("read fixed header: %w", err)
	}

	if string(fixed[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	r.flags = binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	r.dataSize = int64(binary.LittleEndian.Uint64(fixed[24:32]))
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("parse header JSON: %w", err)
	}

	pos := int64(FixedHeaderSize) + int64(headerSize)
	r.dataOffset = pos + (DataAlignment-pos%DataAlignment)%DataAlignment

	if !r.opts.SkipChecksumValidation {
		data := make([]byte, r.dataSize)
		if _, err := r.file.Seek(r.dataOffset, io.SeekStart); err != nil {
			return fmt.Errorf("seek to data: %w", err)
		}
		if _, err := io.ReadFull(r.file, data); err != nil {
			return fmt.Errorf("read data for checksum: %w", err)
		}
		if err := ValidateChecksum(ComputeChecksum(data), r.checksum); err != nil {
			return err
		}
	}
	return nil
}

// Header returns the parsed JSON header.
func (r *Reader) Header() Header { return r.header }

// CheckpointMeta returns the training state recorded in the header, or
// nil for a plain weights file.
func (r *Reader) CheckpointMeta() *CheckpointMeta { return r.header.CheckpointMeta }

// TensorNames lists every tensor in the file.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the metadata for a named tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("tensor %s not found", name)
}

// LoadTensor reads one tensor into a fresh RawTensor on the given device.
func (r *Reader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("unsupported dtype %q for tensor %s", meta.DType, name)
	}
	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	if _, err := r.file.Seek(r.dataOffset+meta.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to tensor %s: %w", name, err)
	}
	raw, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		return nil, fmt.Errorf("allocate tensor %s: %w", name, err)
	}
	if _, err := io.ReadFull(r.file, raw.Data()); err != nil {
		return nil, fmt.Errorf("read tensor %s: %w", name, err)
	}
	return raw, nil
}

// ReadStateDict loads every tensor in the file.
func (r *Reader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}
	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name, device)
		if err != nil {
			return nil, err
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Load reads a whole checkpoint in one call.
func Load(path string, device tensor.Device) (map[string]*tensor.RawTensor, Header, error) {
	reader, err := NewReader(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer reader.Close()

	stateDict, err := reader.ReadStateDict(device)
	if err != nil {
		return nil, Header{}, err
	}
	return stateDict, reader.Header(), nil
}
