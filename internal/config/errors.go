package config

import "fmt"

// ValidationError reports a malformed Request. It is raised before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the message verbatim so callers can match on it.
func (e *ValidationError) Error() string {
	return e.Message
}

// Operations recorded on a ResolutionError.
const (
	OpStat    = "stat"
	OpRead    = "read"
	OpParse   = "parse"
	OpExtends = "extends"
	OpResolve = "resolve"
	OpHash    = "hash"
	OpInvalid = "invalid"
)

// ResolutionError reports a failure while building a configuration chain.
// Path always names the file (or virtual source) that caused the failure.
type ResolutionError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
