package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/born-ml/digitnet/internal/tensor"
)

// BornReader gives access to the tensors of a decoded .born file.
type BornReader struct {
	header Header
	flags  uint32
	data   []byte
}

// ReaderOptions controls decoding.
type ReaderOptions struct {
	SkipChecksumValidation bool
}

// OpenFile reads and decodes a .born file with full validation.
func OpenFile(path string) (*BornReader, error) {
	return OpenFileWithOptions(path, ReaderOptions{})
}

// OpenFileWithOptions reads and decodes a .born file.
func OpenFileWithOptions(path string, opts ReaderOptions) (*BornReader, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	r, err := Decode(buf, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Decode parses a complete .born file held in memory.
func Decode(buf []byte, opts ReaderOptions) (*BornReader, error) {
	if len(buf) < FixedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncated, len(buf), FixedHeaderSize)
	}
	if string(buf[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}

	flags := binary.LittleEndian.Uint32(buf[8:12])
	headerSize := binary.LittleEndian.Uint64(buf[16:24])
	dataSize := binary.LittleEndian.Uint64(buf[24:32])
	var stored [32]byte
	copy(stored[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	headerEnd := int64(FixedHeaderSize) + int64(headerSize)
	dataStart := alignUp(headerEnd)
	if dataStart > int64(len(buf)) {
		return nil, fmt.Errorf("%w: header declares %d header bytes", ErrTruncated, headerSize)
	}
	if dataSize > uint64(len(buf))-uint64(dataStart) {
		return nil, fmt.Errorf("%w: header declares %d data bytes", ErrTruncated, dataSize)
	}

	var header Header
	if err := json.Unmarshal(buf[FixedHeaderSize:headerEnd], &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	data := buf[dataStart : dataStart+int64(dataSize)]
	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
			return nil, err
		}
	}
	if err := ValidateHeader(&header, int64(dataSize)); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &BornReader{header: header, flags: flags, data: data}, nil
}

// Header returns the parsed JSON header.
func (r *BornReader) Header() Header {
	return r.header
}

// Flags returns the fixed-header flag bits.
func (r *BornReader) Flags() uint32 {
	return r.flags
}

// Metadata returns the custom metadata.
func (r *BornReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns tensor names in file order.
func (r *BornReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the metadata of the named tensor.
func (r *BornReader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// LoadTensor copies the named tensor into a new RawTensor.
func (r *BornReader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("tensor %s: unsupported dtype %s", name, meta.DType)
	}

	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, device)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	copy(raw.Data(), r.data[meta.Offset:meta.Offset+meta.Size])
	return raw, nil
}

// ReadStateDict loads every tensor in the file.
func (r *BornReader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	state := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name, device)
		if err != nil {
			return nil, err
		}
		state[meta.Name] = raw
	}
	return state, nil
}
