// Package config defines the resolution request and the error, logging and
// naming conventions shared by the rcchain packages.
//
// # Overview
//
// rcchain turns a project's hierarchical babel configuration into a
// standalone generated module. The pipeline is:
//
//   - internal/chain: collect .babelrc / package.json layers, extends targets,
//     env sections and the caller's options into an ordered chain
//   - internal/reduce: merge the chain into a tree, one nested node per
//     environment segment
//   - internal/codegen: render the tree as a Lua module with a getOptions
//     entry point
//   - internal/verifier: fingerprint every input so staleness can be checked
//     without resolving again
//
// internal/service ties the steps together; this package holds only what all
// of them share.
//
// # Requests
//
// A Request is the only input of a resolution call. Build it from a raw
// document (decoded JSON, a viper map, ...) with CreateConfig, or from Go
// values with NewRequest:
//
//	req, err := config.NewRequest(options, "src/app.js",
//	    config.WithDir("/project"),
//	    config.WithJSON5(false),
//	)
//
// Both validate before any I/O happens and deep-copy the options, so
// mutating the caller's map afterwards has no effect on the resolution.
//
// Recognized fields:
//
//	options  the caller's configuration layer (required, must be an object)
//	source   identifier of that layer, usually a file path (required)
//	dir      directory lookup starts from (default: the directory of source)
//	hash     content hash of the caller's layer (default: digest of options)
//	json5    literal format of the caller's layer (default: true)
//
// Setting babelrc to false in options switches off directory lookup.
//
// # Error Types
//
// The package defines two error types:
//
//	type ValidationError struct {
//	    Field   string  // Request field that failed validation
//	    Message string  // Stable, user-facing description
//	}
//
//	type ResolutionError struct {
//	    Op   string  // stat, read, parse, extends, resolve, hash or invalid
//	    Path string  // File or layer the failure concerns
//	    Err  error   // Underlying cause
//	}
//
// ResolutionError unwraps to its cause, so errors.Is(err, fs.ErrNotExist)
// holds for a missing extends target.
//
// # Structured Logging
//
// Components accept a Logger and default to a no-op one:
//
//	svc := service.NewPrecompileService(fs, nil).WithLogger(hclog.Default())
//
// Logger interface:
//
//	type Logger interface {
//	    Debug(msg string, keysAndValues ...interface{})
//	    Info(msg string, keysAndValues ...interface{})
//	    Warn(msg string, keysAndValues ...interface{})
//	    Error(msg string, keysAndValues ...interface{})
//	}
//
// # Thread Safety
//
// A Request is not modified after creation and may be shared between
// goroutines.
//
// # Related Packages
//
//   - internal/envname: reads the active environment name
//   - internal/format: strict and relaxed literal formats
//   - internal/testutil: fixtures and counting filesystems for tests
package config
