// Package format parses configuration sources in the two supported literal
// conventions: strict JSON and the relaxed JSON5 variant (comments, trailing
// commas, unquoted keys, single-quoted strings, hexadecimal and signed
// numbers).
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/titanous/json5"
)

// Format is the literal convention a configuration layer is written in.
// Generated code renders each literal in the format of the layer it came from.
type Format int

const (
	// Relaxed is JSON5. It is the zero value: the default for layers that
	// do not say otherwise.
	Relaxed Format = iota
	// Strict is plain JSON.
	Strict
)

// String returns the string representation of a Format.
func (f Format) String() string {
	switch f {
	case Relaxed:
		return "relaxed"
	case Strict:
		return "strict"
	default:
		return "unknown"
	}
}

// ForFile returns the format a configuration file is parsed with. Files with
// a .json extension (package.json included) are strict; .babelrc, .json5 and
// everything else are relaxed.
func ForFile(path string) Format {
	if filepath.Ext(path) == ".json" {
		return Strict
	}
	return Relaxed
}

// ParseError reports content that is not a valid document in the given format.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s config: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse decodes data in format f. The document must be an object.
func Parse(f Format, data []byte) (map[string]any, error) {
	if f == Strict {
		return ParseStrict(data)
	}
	return ParseRelaxed(data)
}

// ParseStrict decodes a strict JSON object. Trailing content is rejected.
func ParseStrict(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ParseError{Format: Strict, Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Format: Strict, Err: fmt.Errorf("unexpected content after top-level value")}
	}
	return asObject(Strict, v)
}

// ParseRelaxed decodes a JSON5 object.
func ParseRelaxed(data []byte) (map[string]any, error) {
	var v any
	if err := json5.Unmarshal(data, &v); err != nil {
		return nil, &ParseError{Format: Relaxed, Err: err}
	}
	return asObject(Relaxed, v)
}

func asObject(f Format, v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Format: f, Err: fmt.Errorf("expected an object, got %s", describe(v))}
	}
	return obj, nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case float64:
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
