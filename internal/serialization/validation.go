package serialization

import (
	"fmt"
	"slices"
	"strings"
)

// Validation limits.
const (
	MaxHeaderSize    = 16 * 1024 * 1024
	MaxTensorCount   = 10_000
	MaxTensorNameLen = 256
)

// ValidateTensorName rejects empty names, names containing path separators,
// "..", or NUL, and overly long names.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Kind: ErrInvalidTensorName, Details: "empty name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Kind:    ErrInvalidTensorName,
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\"):
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "contains path separator (/ or \\)"}
	case strings.Contains(name, "\x00"):
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "contains null byte"}
	}
	return nil
}

// ValidateTensorOffsets checks that every tensor lies within the data section,
// that regions do not overlap and that sizes agree with dtype and shape.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Kind:    ErrOutOfBounds,
			Details: fmt.Sprintf("%d tensors, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := slices.Clone(tensors)
	slices.SortFunc(sorted, func(a, b TensorMeta) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
		return 0
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 || t.Offset+t.Size > dataSize {
			return &ValidationError{
				Kind:    ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d outside data section of %d bytes", t.Offset, t.Size, dataSize),
			}
		}
		if want := expectedSize(t); want >= 0 && want != t.Size {
			return &ValidationError{
				Kind:    ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("size %d does not match %s%v (%d bytes)", t.Size, t.DType, t.Shape, want),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Kind:    ErrOffsetOverlap,
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateHeader checks tensor names, duplicates and offsets.
func ValidateHeader(h *Header, dataSize int64) error {
	seen := make(map[string]struct{}, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if _, dup := seen[t.Name]; dup {
			return &ValidationError{Kind: ErrInvalidTensorName, Tensor: t.Name, Details: "duplicate name"}
		}
		seen[t.Name] = struct{}{}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}

// expectedSize returns the byte size implied by dtype and shape, or -1 for an
// unknown dtype or invalid shape.
func expectedSize(t TensorMeta) int64 {
	dt, ok := stringToDtype(t.DType)
	if !ok {
		return -1
	}
	n := int64(1)
	for _, d := range t.Shape {
		if d <= 0 {
			return -1
		}
		n *= int64(d)
	}
	return n * int64(dt.Size())
}
