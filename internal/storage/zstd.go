// internal/storage/zstd.go
package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrSinkClosed is returned when writing to a finalized sink.
var ErrSinkClosed = errors.New("sink closed")

const streamBufferSize = 128 * 1024

// DefaultCompressionLevel matches the zstd CLI level used for earlier logs.
const DefaultCompressionLevel = 10

// ZstdCSV writes comma separated rows into a zstd compressed file.
// The layering is file <- zstd encoder <- bufio <- csv.
type ZstdCSV struct {
	path string

	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	buf    *bufio.Writer
	csv    *csv.Writer
	rows   int64
	closed bool
}

// OpenZstdCSV creates path (and its parent directory) and returns a sink
// writing to it. level uses the zstd command line scale (1-22).
func OpenZstdCSV(path string, level int) (*ZstdCSV, error) {
	if level <= 0 {
		level = DefaultCompressionLevel
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	enc, err := zstd.NewWriter(f,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	buf := bufio.NewWriterSize(enc, streamBufferSize)
	return &ZstdCSV{
		path: path,
		f:    f,
		enc:  enc,
		buf:  buf,
		csv:  csv.NewWriter(buf),
	}, nil
}

// Write appends one row. The row reaches the stream buffer before Write
// returns; it reaches disk when the buffer fills or on Close.
func (z *ZstdCSV) Write(record []string) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closed {
		return ErrSinkClosed
	}
	if err := z.csv.Write(record); err != nil {
		return err
	}
	z.csv.Flush()
	if err := z.csv.Error(); err != nil {
		return err
	}
	z.rows++
	return nil
}

// Close flushes buffered rows, writes the zstd frame trailer and closes the
// file. Only the first call does any work.
func (z *ZstdCSV) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closed {
		return nil
	}
	z.closed = true

	z.csv.Flush()
	errs := []error{z.csv.Error()}
	errs = append(errs, z.buf.Flush())
	errs = append(errs, z.enc.Close())
	errs = append(errs, z.f.Close())
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", filepath.Base(z.path), err)
	}
	return nil
}

func (z *ZstdCSV) Path() string {
	return z.path
}

func (z *ZstdCSV) Rows() int64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.rows
}
