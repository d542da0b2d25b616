package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/tetrad/pkg/core"
)

var (
	// ErrMissingField is returned when a required key is absent from a host record.
	ErrMissingField = errors.New("missing field")
	// ErrMalformed is returned when a key is present but has the wrong shape.
	ErrMalformed = errors.New("malformed field")
)

// Record is one decoded host table, keyed the way the host names its fields.
type Record map[string]any

// Entry pairs a host record with the id it was keyed under.
type Entry struct {
	ID     int
	Record Record
}

// Parser converts host entries into core values.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// parseFloat accepts any numeric value the host serialiser may produce.
// The host scripting language has a single number type, so integers can
// show up as floats and vice versa.
func parseFloat(field string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrMalformed, field, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %q is not a number", ErrMalformed, field, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s: unexpected type %T", ErrMalformed, field, v)
	}
}

// parseInt is parseFloat restricted to whole numbers ("2" and 2.0 are both fine).
func parseInt(field string, v any) (int, error) {
	f, err := parseFloat(field, v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s: %v is not an integer", ErrMalformed, field, f)
	}
	return int(f), nil
}

func requireValue(rec Record, field string) (any, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return v, nil
}

func requireFloat(rec Record, field string) (float64, error) {
	v, err := requireValue(rec, field)
	if err != nil {
		return 0, err
	}
	return parseFloat(field, v)
}

func requireInt(rec Record, field string) (int, error) {
	v, err := requireValue(rec, field)
	if err != nil {
		return 0, err
	}
	return parseInt(field, v)
}

func requireString(rec Record, field string) (string, error) {
	v, err := requireValue(rec, field)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s: expected string, got %T", ErrMalformed, field, v)
	}
	return s, nil
}

// optionalName reads a name the host may omit. Absent or nil fields and
// values of any other shape yield core.Unnamed. Numbers are formatted the
// way the host would coerce them to strings.
func optionalName(rec Record, field string) string {
	switch v := rec[field].(type) {
	case nil:
		return core.Unnamed
	case string:
		return v
	}
	f, err := parseFloat(field, rec[field])
	if err != nil {
		return core.Unnamed
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func requireTable(rec Record, field string) (Record, error) {
	v, err := requireValue(rec, field)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case Record:
		return t, nil
	case map[string]any:
		return Record(t), nil
	default:
		return nil, fmt.Errorf("%w: %s: expected table, got %T", ErrMalformed, field, v)
	}
}
