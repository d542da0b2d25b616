package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 5, 7, 0, time.Local)
	assert.Equal(t, "Operation Tetrad - 2026-03-14 09-05-07.csv.zst", FileName("Operation Tetrad", start))
	assert.Equal(t, "a_b - 2026-03-14 09-05-07.csv.zst", FileName("a/b", start))
	assert.Equal(t, "unknown - 2026-03-14 09-05-07.csv.zst", FileName("", start))
}

func TestLogRoot(t *testing.T) {
	assert.Equal(t, filepath.Join("game", "Logs", "Tetrad"), LogRoot("game"))
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		v         float64
		precision int
		want      string
	}{
		{0, 8, "0.00000000"},
		{0.016, 8, "0.01600000"},
		{-12.5, 8, "-12.50000000"},
		{1.0 / 3.0, 8, "0.33333333"},
		{41.123456789, 3, "41.123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFloat(tt.v, tt.precision))
	}
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	assert.NoError(t, s.Write([]string{"a"}))
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Empty(t, s.Path())
	assert.Zero(t, s.Rows())
}

func TestZstdCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames", "m - now.csv.zst")
	s, err := OpenZstdCSV(path, DefaultCompressionLevel)
	require.NoError(t, err)

	rows := [][]string{
		{"1", "0.00000000", "0.00100000", "1", "0"},
		{"2", "0.01600000", "0.01700000", "2", "0"},
		{"3", "0.03300000", "0.03400000", "0", "1"},
		{"4", "quoted, field", "", "", "x"},
	}
	for _, r := range rows {
		require.NoError(t, s.Write(r))
	}
	assert.Equal(t, int64(4), s.Rows())
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Close())

	got, err := ReadRows(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestZstdCSV_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv.zst")
	s, err := OpenZstdCSV(path, 3)
	require.NoError(t, err)
	require.NoError(t, s.Write([]string{"1"}))

	require.NoError(t, s.Close())
	info, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), info2.Size(), "second close must not append another frame")

	assert.ErrorIs(t, s.Write([]string{"2"}), ErrSinkClosed)

	got, err := ReadRows(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1"}}, got)
}

func TestZstdCSV_EmptyStreamIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv.zst")
	s, err := OpenZstdCSV(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	got, err := ReadRows(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestZstdCSV_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.csv.zst")
	s, err := OpenZstdCSV(path, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Write([]string{"row"})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())

	got, err := ReadRows(path)
	require.NoError(t, err)
	assert.Len(t, got, 800)
}

func TestOpenZstdCSV_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// parent "directory" is a regular file
	_, err := OpenZstdCSV(filepath.Join(blocker, "sub", "x.csv.zst"), 10)
	assert.Error(t, err)
}

func TestReadRows_Missing(t *testing.T) {
	_, err := ReadRows(filepath.Join(t.TempDir(), "none.csv.zst"))
	assert.Error(t, err)
}
