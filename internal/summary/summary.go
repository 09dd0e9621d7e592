// Package summary records per-step training scalars as JSON lines. Steps are
// numbered from zero: the record for the first update has step 0.
//
// Each line is one scalar:
//
//	{"time":"2026-01-02T15:04:05Z","msg":"scalar","step":100,"tag":"accuracy","value":0.92}
package summary

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Tags written by Writer.Step.
const (
	TagAccuracy        = "accuracy"
	TagCrossEntropy    = "cross_entropy"
	TagKeepProbability = "keep_probability"
)

// Writer appends scalar records. A nil *Writer discards everything.
type Writer struct {
	logger *slog.Logger
	buf    *bufio.Writer
	file   *os.File
}

// New writes records to w.
func New(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return &Writer{logger: slog.New(handler), buf: buf}
}

// Create truncates or creates path, making parent directories as needed.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	w := New(f)
	w.file = f
	return w, nil
}

// Scalar records one value.
func (w *Writer) Scalar(step int64, tag string, value float32) {
	if w == nil {
		return
	}
	w.logger.LogAttrs(context.Background(), slog.LevelInfo, "scalar",
		slog.Int64("step", step),
		slog.String("tag", tag),
		slog.Float64("value", float64(value)),
	)
}

// Step records the accuracy, cross-entropy and keep probability of a
// training step.
func (w *Writer) Step(step int64, accuracy, crossEntropy, keep float32) {
	w.Scalar(step, TagAccuracy, accuracy)
	w.Scalar(step, TagCrossEntropy, crossEntropy)
	w.Scalar(step, TagKeepProbability, keep)
}

// Flush writes buffered records.
func (w *Writer) Flush() error {
	if w == nil {
		return nil
	}
	return w.buf.Flush()
}

// Close flushes and closes the file opened by Create. Further calls are
// no-ops.
func (w *Writer) Close() error {
	if w == nil || w.file == nil {
		return w.Flush()
	}
	f := w.file
	w.file = nil
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("summary: %w", err)
	}
	return f.Close()
}

// Record is one decoded scalar.
type Record struct {
	Time  time.Time `json:"time"`
	Step  int64     `json:"step"`
	Tag   string    `json:"tag"`
	Value float64   `json:"value"`
}

// Read decodes every record from r.
func Read(r io.Reader) ([]Record, error) {
	var out []Record
	dec := json.NewDecoder(r)
	for {
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("summary: record %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
}
