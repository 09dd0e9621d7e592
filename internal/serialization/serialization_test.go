package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	w := tensor.MustNewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	copy(w.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})
	b := tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	copy(b.AsFloat32(), []float32{0.1, 0.2, 0.3})
	step := tensor.MustNewRaw(tensor.Shape{}, tensor.Int32, tensor.CPU)
	step.AsInt32()[0] = 42
	return map[string]*tensor.RawTensor{
		"fc1.weight":          w,
		"fc1.bias":            b,
		"optimizer.adam.step": step,
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "model.born")
	state := sampleState(t)

	err := WriteFile(path, state, Header{
		ModelType:      "digitnet",
		Metadata:       map[string]string{"keep_probability": "0.5"},
		CheckpointMeta: &CheckpointMeta{RunID: "run-1", Step: 42, HasOptimizer: true},
	})
	require.NoError(t, err)

	r, err := OpenFile(path)
	require.NoError(t, err)

	h := r.Header()
	assert.Equal(t, FormatVersion, h.FormatVersion)
	assert.Equal(t, Producer, h.Producer)
	assert.Equal(t, "digitnet", h.ModelType)
	assert.Equal(t, "0.5", r.Metadata()["keep_probability"])
	require.NotNil(t, h.CheckpointMeta)
	assert.Equal(t, int64(42), h.CheckpointMeta.Step)
	assert.Equal(t, FlagHasOptimizer|FlagHasMetadata, r.Flags())
	assert.Equal(t, []string{"fc1.bias", "fc1.weight", "optimizer.adam.step"}, r.TensorNames())

	loaded, err := r.ReadStateDict(tensor.CPU)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for name, want := range state {
		got := loaded[name]
		assert.True(t, want.Shape().Equal(got.Shape()), name)
		assert.Equal(t, want.DType(), got.DType(), name)
		assert.Equal(t, want.Data(), got.Data(), name)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	state := sampleState(t)
	header := Header{ModelType: "digitnet"}

	var a, b bytes.Buffer
	require.NoError(t, Encode(&a, state, header))
	require.NoError(t, Encode(&b, state, header))

	// Data sections and checksums agree even though CreatedAt differs.
	assert.Equal(t, a.Bytes()[ChecksumOffset:ChecksumOffset+ChecksumSize], b.Bytes()[ChecksumOffset:ChecksumOffset+ChecksumSize])

	dataStart := alignUp(int64(FixedHeaderSize) + int64(binary.LittleEndian.Uint64(a.Bytes()[16:24])))
	assert.Zero(t, dataStart%HeaderAlignment)
}

func TestDecode_DetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleState(t), Header{}))
	raw := buf.Bytes()

	t.Run("checksum", func(t *testing.T) {
		corrupt := bytes.Clone(raw)
		corrupt[len(corrupt)-1] ^= 0xff
		_, err := Decode(corrupt, ReaderOptions{})
		assert.ErrorIs(t, err, ErrChecksumMismatch)

		_, err = Decode(corrupt, ReaderOptions{SkipChecksumValidation: true})
		assert.NoError(t, err)
	})

	t.Run("magic", func(t *testing.T) {
		corrupt := bytes.Clone(raw)
		copy(corrupt, "NOPE")
		_, err := Decode(corrupt, ReaderOptions{})
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("version", func(t *testing.T) {
		corrupt := bytes.Clone(raw)
		binary.LittleEndian.PutUint32(corrupt[4:8], 9)
		_, err := Decode(corrupt, ReaderOptions{})
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Decode(raw[:len(raw)-4], ReaderOptions{})
		assert.ErrorIs(t, err, ErrTruncated)
		_, err = Decode(raw[:10], ReaderOptions{})
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("oversized data", func(t *testing.T) {
		corrupt := bytes.Clone(raw)
		binary.LittleEndian.PutUint64(corrupt[24:32], ^uint64(0))
		assert.NotPanics(t, func() {
			_, err := Decode(corrupt, ReaderOptions{})
			assert.ErrorIs(t, err, ErrTruncated)
		})
	})

	t.Run("oversized header", func(t *testing.T) {
		corrupt := bytes.Clone(raw)
		binary.LittleEndian.PutUint64(corrupt[16:24], uint64(len(raw)))
		assert.NotPanics(t, func() {
			_, err := Decode(corrupt, ReaderOptions{})
			assert.ErrorIs(t, err, ErrTruncated)
		})
	})
}

func TestOpenFile_Missing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "absent.born"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadTensor_NotFound(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleState(t), Header{}))
	r, err := Decode(buf.Bytes(), ReaderOptions{})
	require.NoError(t, err)

	_, err = r.LoadTensor("conv9.weight", tensor.CPU)
	assert.ErrorIs(t, err, ErrTensorNotFound)
}

func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{"conv1.weight", "optimizer.fc2.bias.m"} {
		assert.NoError(t, ValidateTensorName(name), name)
	}
	for _, name := range []string{"", "../etc/passwd", "a/b", `a\b`, "a\x00b", string(make([]byte, MaxTensorNameLen+1))} {
		assert.ErrorIs(t, ValidateTensorName(name), ErrInvalidTensorName, "%q", name)
	}

	var buf bytes.Buffer
	err := Encode(&buf, map[string]*tensor.RawTensor{"a/b": tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)}, Header{})
	assert.ErrorIs(t, err, ErrInvalidTensorName)
}

func TestValidateTensorOffsets(t *testing.T) {
	ok := []TensorMeta{
		{Name: "a", DType: DTypeFloat32, Shape: []int{2}, Offset: 0, Size: 8},
		{Name: "b", DType: DTypeInt32, Shape: []int{}, Offset: 8, Size: 4},
	}
	assert.NoError(t, ValidateTensorOffsets(ok, 12))

	var verr *ValidationError
	err := ValidateTensorOffsets(ok, 10)
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, "b", verr.Tensor)

	overlap := []TensorMeta{
		{Name: "a", DType: DTypeFloat32, Shape: []int{2}, Offset: 0, Size: 8},
		{Name: "b", DType: DTypeFloat32, Shape: []int{2}, Offset: 4, Size: 8},
	}
	assert.ErrorIs(t, ValidateTensorOffsets(overlap, 16), ErrOffsetOverlap)

	wrongSize := []TensorMeta{{Name: "a", DType: DTypeFloat32, Shape: []int{3}, Offset: 0, Size: 8}}
	assert.ErrorIs(t, ValidateTensorOffsets(wrongSize, 16), ErrOutOfBounds)
}
