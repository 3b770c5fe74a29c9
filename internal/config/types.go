package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mitchellh/copystructure"
)

// Request is a validated, normalized resolution request.
type Request struct {
	// Options is the caller-supplied configuration layer. Always a deep copy.
	Options map[string]any

	// Source identifies the caller-supplied layer (usually a file path).
	Source string

	// Dir overrides the directory that configuration lookup starts from.
	// When empty, the directory containing Source is used.
	Dir string

	// Hash, when set, is used verbatim as the content hash of the
	// caller-supplied layer instead of hashing Options.
	Hash string

	// JSON5 selects the relaxed literal format for the caller-supplied layer.
	// nil means "not specified" and behaves as true.
	JSON5 *bool
}

// RelaxedFormat reports whether the caller-supplied layer renders with the
// relaxed literal format.
func (r *Request) RelaxedFormat() bool {
	return r.JSON5 == nil || *r.JSON5
}

// DirectoryLookupDisabled reports whether the caller's options switch off
// .babelrc / package.json lookup.
func (r *Request) DirectoryLookupDisabled() bool {
	v, ok := r.Options[FieldBabelrc].(bool)
	return ok && !v
}

// rawRequest mirrors the accepted request document.
type rawRequest struct {
	Options any    `mapstructure:"options"`
	Source  string `mapstructure:"source"`
	Dir     string `mapstructure:"dir"`
	Hash    string `mapstructure:"hash"`
	JSON5   *bool  `mapstructure:"json5"`
}

const (
	msgMissingOptionsOrSource = "Expected 'options' and 'source' options"
	msgOptionsNotObject       = "'options' must be an actual object"
)

// CreateConfig validates a raw request document and returns the normalized
// Request. raw is typically a map[string]any decoded from JSON, but any value
// mapstructure can decode is accepted.
//
// A missing or null "options", or a missing "source", fails with the message
// "Expected 'options' and 'source' options". Options that are present but not
// a mapping (an array, a string, ...) fail with "'options' must be an actual
// object".
func CreateConfig(raw any) (*Request, error) {
	if raw == nil {
		return nil, &ValidationError{Message: msgMissingOptionsOrSource}
	}

	var in rawRequest
	if err := mapstructure.Decode(raw, &in); err != nil {
		return nil, &ValidationError{
			Message: fmt.Sprintf("invalid request: %v", err),
		}
	}

	if in.Options == nil {
		return nil, &ValidationError{Field: "options", Message: msgMissingOptionsOrSource}
	}
	if in.Source == "" {
		return nil, &ValidationError{Field: "source", Message: msgMissingOptionsOrSource}
	}

	options, ok := in.Options.(map[string]any)
	if !ok {
		return nil, &ValidationError{Field: "options", Message: msgOptionsNotObject}
	}

	copied, err := copyOptions(options)
	if err != nil {
		return nil, err
	}

	return &Request{
		Options: copied,
		Source:  in.Source,
		Dir:     in.Dir,
		Hash:    in.Hash,
		JSON5:   in.JSON5,
	}, nil
}

// RequestOption customizes a Request built by NewRequest.
type RequestOption func(raw map[string]any)

// WithDir sets the lookup directory.
func WithDir(dir string) RequestOption {
	return func(raw map[string]any) { raw["dir"] = dir }
}

// WithHash fixes the content hash of the caller-supplied layer.
func WithHash(hash string) RequestOption {
	return func(raw map[string]any) { raw["hash"] = hash }
}

// WithJSON5 selects the literal format of the caller-supplied layer.
func WithJSON5(enabled bool) RequestOption {
	return func(raw map[string]any) { raw["json5"] = enabled }
}

// NewRequest builds a Request from Go values, applying the same validation
// and copying as CreateConfig.
func NewRequest(options map[string]any, source string, opts ...RequestOption) (*Request, error) {
	raw := map[string]any{
		"source": source,
	}
	// A nil map must read as "missing", not as an empty object.
	if options != nil {
		raw["options"] = options
	}
	for _, opt := range opts {
		opt(raw)
	}
	return CreateConfig(raw)
}

// copyOptions deep-copies the caller's options mapping.
func copyOptions(options map[string]any) (map[string]any, error) {
	copied, err := copystructure.Copy(options)
	if err != nil {
		return nil, &ValidationError{
			Field:   "options",
			Message: fmt.Sprintf("options cannot be copied: %v", err),
		}
	}
	return copied.(map[string]any), nil
}
