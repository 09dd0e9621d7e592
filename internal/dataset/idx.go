package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// IDX magic numbers.
const (
	imagesMagic = 0x00000803 // unsigned bytes, 3 dimensions
	labelsMagic = 0x00000801 // unsigned bytes, 1 dimension
)

// MNIST file names inside a data directory. Each may also be gzip-compressed
// with a ".gz" suffix.
const (
	TrainImagesFile = "train-images-idx3-ubyte"
	TrainLabelsFile = "train-labels-idx1-ubyte"
	TestImagesFile  = "t10k-images-idx3-ubyte"
	TestLabelsFile  = "t10k-labels-idx1-ubyte"
)

// ErrInvalidIDX is returned for a file that is not a well-formed IDX file of
// the expected kind.
var ErrInvalidIDX = errors.New("dataset: invalid IDX file")

// Images is a decoded IDX image file.
type Images struct {
	Count  int
	Rows   int
	Cols   int
	Pixels []byte // Count*Rows*Cols, row-major
}

// ReadImages decodes an IDX image file.
//
// Layout (big-endian):
//
//	magic:  0x00000803
//	count:  uint32
//	rows:   uint32
//	cols:   uint32
//	pixels: count*rows*cols unsigned bytes
func ReadImages(r io.Reader) (*Images, error) {
	var hdr struct {
		Magic, Count, Rows, Cols uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrInvalidIDX, err)
	}
	if hdr.Magic != imagesMagic {
		return nil, fmt.Errorf("%w: magic %#08x, want %#08x", ErrInvalidIDX, hdr.Magic, imagesMagic)
	}
	if hdr.Rows == 0 || hdr.Cols == 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrInvalidIDX, hdr.Rows, hdr.Cols)
	}

	img := &Images{Count: int(hdr.Count), Rows: int(hdr.Rows), Cols: int(hdr.Cols)}
	img.Pixels = make([]byte, img.Count*img.Rows*img.Cols)
	if _, err := io.ReadFull(r, img.Pixels); err != nil {
		return nil, fmt.Errorf("%w: read %d images: %w", ErrInvalidIDX, img.Count, err)
	}
	return img, nil
}

// ReadLabels decodes an IDX label file.
//
// Layout (big-endian):
//
//	magic:  0x00000801
//	count:  uint32
//	labels: count unsigned bytes
func ReadLabels(r io.Reader) ([]byte, error) {
	var hdr struct {
		Magic, Count uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrInvalidIDX, err)
	}
	if hdr.Magic != labelsMagic {
		return nil, fmt.Errorf("%w: magic %#08x, want %#08x", ErrInvalidIDX, hdr.Magic, labelsMagic)
	}

	labels := make([]byte, hdr.Count)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("%w: read %d labels: %w", ErrInvalidIDX, hdr.Count, err)
	}
	return labels, nil
}

// openIDX opens path, or path+".gz" through a gzip reader when path itself
// does not exist.
func openIDX(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	gz, gzErr := os.Open(path + ".gz")
	if gzErr != nil {
		// Report the uncompressed name.
		return nil, err
	}
	zr, err := gzip.NewReader(bufio.NewReader(gz))
	if err != nil {
		gz.Close()
		return nil, fmt.Errorf("%w: %s.gz: %w", ErrInvalidIDX, path, err)
	}
	return &gzipFile{Reader: zr, file: gz}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.file.Close())
}

func readImagesFile(path string) (*Images, error) {
	rc, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, err := ReadImages(bufio.NewReader(rc))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func readLabelsFile(path string) ([]byte, error) {
	rc, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	labels, err := ReadLabels(bufio.NewReader(rc))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return labels, nil
}
