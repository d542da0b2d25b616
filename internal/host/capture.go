package host

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/OCAP2/tetrad/internal/parser"
)

// ErrNoFrame is returned by the per-frame getters before the first Next.
var ErrNoFrame = errors.New("no current frame")

const maxCaptureLine = 16 * 1024 * 1024

// Header is the first line of a capture file.
type Header struct {
	Mission string `json:"mission"`
}

// Frame is one captured host tick. Map keys are host object ids.
type Frame struct {
	ModelTime  float64                  `json:"modelTime"`
	Paused     bool                     `json:"paused,omitempty"`
	Units      map[string]parser.Record `json:"units,omitempty"`
	Ballistics map[string]parser.Record `json:"ballistics,omitempty"`
}

// Capture replays a JSON-lines capture file as a Host.
type Capture struct {
	closer  io.Closer
	scanner *bufio.Scanner
	header  Header
	line    int

	current    *Frame
	units      []parser.Entry
	ballistics []parser.Entry
}

// OpenCapture opens a capture file from disk.
func OpenCapture(path string) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	c, err := NewCapture(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	return c, nil
}

// NewCapture reads the header from r. Frames are read lazily by Next.
func NewCapture(r io.Reader) (*Capture, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxCaptureLine)

	c := &Capture{scanner: sc}
	line, err := c.nextLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("capture is empty")
		}
		return nil, err
	}
	if err := decode(line, &c.header); err != nil {
		return nil, fmt.Errorf("capture header: %w", err)
	}
	return c, nil
}

// Next advances to the next frame. It returns false at end of input.
func (c *Capture) Next() (bool, error) {
	line, err := c.nextLine()
	if errors.Is(err, io.EOF) {
		c.current = nil
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var f Frame
	if err := decode(line, &f); err != nil {
		return false, fmt.Errorf("capture line %d: %w", c.line, err)
	}
	units, err := toEntries(f.Units)
	if err != nil {
		return false, fmt.Errorf("capture line %d units: %w", c.line, err)
	}
	ballistics, err := toEntries(f.Ballistics)
	if err != nil {
		return false, fmt.Errorf("capture line %d ballistics: %w", c.line, err)
	}

	c.current = &f
	c.units = units
	c.ballistics = ballistics
	return true, nil
}

// Close releases the underlying file, if any.
func (c *Capture) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Capture) MissionName() (string, error) {
	return c.header.Mission, nil
}

func (c *Capture) ModelTime() (float64, error) {
	if c.current == nil {
		return 0, ErrNoFrame
	}
	return c.current.ModelTime, nil
}

func (c *Capture) IsPaused() (bool, error) {
	if c.current == nil {
		return false, ErrNoFrame
	}
	return c.current.Paused, nil
}

func (c *Capture) Units() ([]parser.Entry, error) {
	if c.current == nil {
		return nil, ErrNoFrame
	}
	return c.units, nil
}

func (c *Capture) Ballistics() ([]parser.Entry, error) {
	if c.current == nil {
		return nil, ErrNoFrame
	}
	return c.ballistics, nil
}

// nextLine returns the next non-blank line.
func (c *Capture) nextLine() ([]byte, error) {
	for c.scanner.Scan() {
		c.line++
		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return nil, io.EOF
}

func decode(line []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	return dec.Decode(v)
}

func toEntries(m map[string]parser.Record) ([]parser.Entry, error) {
	entries := make([]parser.Entry, 0, len(m))
	for key, rec := range m {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid object id %q", key)
		}
		entries = append(entries, parser.Entry{ID: id, Record: rec})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// WriteCapture writes a header followed by one line per frame.
func WriteCapture(w io.Writer, mission string, frames []Frame) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(Header{Mission: mission}); err != nil {
		return err
	}
	for i := range frames {
		if err := enc.Encode(&frames[i]); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}
