package format

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"/p/.babelrc", Relaxed},
		{"/p/package.json", Strict},
		{"/p/base.json", Strict},
		{"/p/base.json5", Relaxed},
		{"/p/config", Relaxed},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ForFile(tt.path); got != tt.want {
				t.Errorf("ForFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestParseStrict(t *testing.T) {
	got, err := ParseStrict([]byte(`{"babelrc": false, "plugins": ["a", ["b", {"x": 1}]]}`))
	if err != nil {
		t.Fatalf("ParseStrict() error = %v", err)
	}

	want := map[string]any{
		"babelrc": false,
		"plugins": []any{"a", []any{"b", map[string]any{"x": float64(1)}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseStrict() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStrict_RejectsRelaxedSyntax(t *testing.T) {
	_, err := ParseStrict([]byte(`{babelrc: false}`))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("ParseStrict() error = %v, want *ParseError", err)
	}
	if perr.Format != Strict {
		t.Errorf("ParseError.Format = %v, want strict", perr.Format)
	}
}

func TestParseRelaxed(t *testing.T) {
	src := `
	// comment
	{
		babelrc: false,
		presets: ['preset',],
		env: {
			foo: {sourceMaps: true},
		},
	}`

	got, err := ParseRelaxed([]byte(src))
	if err != nil {
		t.Fatalf("ParseRelaxed() error = %v", err)
	}

	want := map[string]any{
		"babelrc": false,
		"presets": []any{"preset"},
		"env": map[string]any{
			"foo": map[string]any{"sourceMaps": true},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseRelaxed() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RejectsNonObjects(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"strict array", Strict, `[]`},
		{"strict null", Strict, `null`},
		{"strict string", Strict, `"x"`},
		{"relaxed array", Relaxed, `[1, 2]`},
		{"relaxed number", Relaxed, `42`},
		{"strict trailing content", Strict, `{} {}`},
		{"strict malformed", Strict, `{`},
		{"relaxed malformed", Relaxed, `{a: }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.format, []byte(tt.data)); err == nil {
				t.Errorf("Parse(%s) error = nil, want error", tt.data)
			}
		})
	}
}

func TestFormat_String(t *testing.T) {
	if Relaxed.String() != "relaxed" || Strict.String() != "strict" || Format(9).String() != "unknown" {
		t.Error("Format.String() returned unexpected names")
	}
}

func TestParseRelaxed_Literals(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want map[string]any
	}{
		{"single quoted string", `{a: 'x'}`, map[string]any{"a": "x"}},
		{"single quoted with double quote", `{a: 'say "hi"'}`, map[string]any{"a": `say "hi"`}},
		{"single quoted key", `{'a-b': 1}`, map[string]any{"a-b": float64(1)}},
		{"hex number", `{a: 0x10}`, map[string]any{"a": float64(16)}},
		{"leading plus", `{a: +1}`, map[string]any{"a": float64(1)}},
		{"leading decimal point", `{a: .5}`, map[string]any{"a": 0.5}},
		{"nested plugin tuple", `{plugins: [['plugin', {label: 'x'}]]}`, map[string]any{
			"plugins": []any{[]any{"plugin", map[string]any{"label": "x"}}},
		}},
		{"block comment", `/* header */ {a: null}`, map[string]any{"a": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRelaxed([]byte(tt.src))
			if err != nil {
				t.Fatalf("ParseRelaxed(%s) error = %v", tt.src, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseRelaxed(%s) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestParseRelaxed_ErrorIsParseError(t *testing.T) {
	_, err := ParseRelaxed([]byte(`{a: 'unterminated}`))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("ParseRelaxed() error = %v, want *ParseError", err)
	}
	if perr.Format != Relaxed {
		t.Errorf("ParseError.Format = %v, want relaxed", perr.Format)
	}
}
