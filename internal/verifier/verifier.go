// Package verifier builds and (de)serializes the fingerprint of every input
// that took part in a resolution, so later processes can tell whether a
// generated module is stale without resolving again.
package verifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/afero"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/chain"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/hashing"
)

// Version is the current wire format version.
const Version = 1

// magic prefixes every serialized verifier.
var magic = []byte("RCV")

// Verifier is the fingerprint of one resolution.
type Verifier struct {
	Version int    `cbor:"1,keyasint"`
	BaseDir string `cbor:"2,keyasint"`

	// FilePaths maps every configuration file read to its content digest.
	FilePaths map[string]string `cbor:"3,keyasint"`

	// SourceHashes holds one hash per caller-supplied layer, in chain order.
	SourceHashes []string `cbor:"4,keyasint"`

	// DependencyPaths and DependencyHashes are parallel: one entry per
	// distinct resolved plugin or preset file, in first-encountered order.
	DependencyPaths  []string `cbor:"5,keyasint"`
	DependencyHashes []string `cbor:"6,keyasint"`
}

// New creates a Verifier. Nil collections are stored as empty ones.
func New(baseDir string, filePaths map[string]string, sourceHashes, dependencyPaths, dependencyHashes []string) *Verifier {
	v := &Verifier{
		Version:          Version,
		BaseDir:          baseDir,
		FilePaths:        maps.Clone(filePaths),
		SourceHashes:     slices.Clone(sourceHashes),
		DependencyPaths:  slices.Clone(dependencyPaths),
		DependencyHashes: slices.Clone(dependencyHashes),
	}
	v.normalize()
	return v
}

// Build fingerprints c.
func Build(c *chain.Chain) *Verifier {
	var sources []string
	for _, link := range c.Virtual() {
		sources = append(sources, link.Hash)
	}

	depPaths := make([]string, len(c.Dependencies))
	depHashes := make([]string, len(c.Dependencies))
	for i, d := range c.Dependencies {
		depPaths[i] = d.Path
		depHashes[i] = d.Hash
	}

	return New(c.BaseDir, c.FileHashes, sources, depPaths, depHashes)
}

func (v *Verifier) normalize() {
	if v.FilePaths == nil {
		v.FilePaths = map[string]string{}
	}
	if v.SourceHashes == nil {
		v.SourceHashes = []string{}
	}
	if v.DependencyPaths == nil {
		v.DependencyPaths = []string{}
	}
	if v.DependencyHashes == nil {
		v.DependencyHashes = []string{}
	}
}

// Files returns the recorded file paths, sorted.
func (v *Verifier) Files() []string {
	var paths []string
	for p := range v.FilePaths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Equal reports whether v and other record the same inputs.
func (v *Verifier) Equal(other *Verifier) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v.Version == other.Version &&
		v.BaseDir == other.BaseDir &&
		maps.Equal(v.FilePaths, other.FilePaths) &&
		slices.Equal(v.SourceHashes, other.SourceHashes) &&
		slices.Equal(v.DependencyPaths, other.DependencyPaths) &&
		slices.Equal(v.DependencyHashes, other.DependencyHashes)
}

// CacheKeys are digests suitable for keying compilation caches.
type CacheKeys struct {
	Dependencies string
	Sources      string
}

// CacheKeys digests the dependency and source hash sequences.
func (v *Verifier) CacheKeys() CacheKeys {
	return CacheKeys{
		Dependencies: hashing.SumStrings(v.DependencyHashes...),
		Sources:      hashing.SumStrings(v.SourceHashes...),
	}
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// ToBuffer serializes v. The encoding is deterministic: equal verifiers
// produce identical bytes.
func (v *Verifier) ToBuffer() ([]byte, error) {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode verifier: %w", err)
	}

	buf := make([]byte, 0, len(magic)+1+len(payload))
	buf = append(buf, magic...)
	buf = append(buf, byte(Version))
	buf = append(buf, payload...)
	return buf, nil
}

// DeserializeError reports a buffer that is not a serialized verifier.
type DeserializeError struct {
	Reason string
	Err    error
}

func (e *DeserializeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid verifier buffer: %s: %v", e.Reason, e.Err)
	}
	return "invalid verifier buffer: " + e.Reason
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}

// FromBuffer reconstructs a Verifier serialized by ToBuffer.
func FromBuffer(buf []byte) (*Verifier, error) {
	header := len(magic) + 1
	if len(buf) < header || !bytes.Equal(buf[:len(magic)], magic) {
		return nil, &DeserializeError{Reason: "missing header"}
	}
	if version := int(buf[len(magic)]); version != Version {
		return nil, &DeserializeError{Reason: fmt.Sprintf("unsupported version %d", version)}
	}

	var v Verifier
	if err := decMode.Unmarshal(buf[header:], &v); err != nil {
		return nil, &DeserializeError{Reason: "malformed payload", Err: err}
	}
	if v.Version != Version {
		return nil, &DeserializeError{Reason: fmt.Sprintf("payload version %d does not match header", v.Version)}
	}
	if len(v.DependencyPaths) != len(v.DependencyHashes) {
		return nil, &DeserializeError{Reason: "dependency paths and hashes differ in length"}
	}
	v.normalize()
	return &v, nil
}

// Report lists recorded inputs that no longer match.
type Report struct {
	Missing []string
	Changed []string
}

// Fresh reports whether every recorded input is unchanged.
func (r *Report) Fresh() bool {
	return len(r.Missing) == 0 && len(r.Changed) == 0
}

// Verify re-hashes every recorded file and dependency on fs.
//
// It does not detect configuration files that appeared since the verifier
// was built; rebuilding and comparing with Equal covers that.
func (v *Verifier) Verify(ctx context.Context, fs afero.Fs) (*Report, error) {
	report := &Report{}

	check := func(path, want string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				report.Missing = append(report.Missing, path)
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !hashing.Verify(want, data) {
			report.Changed = append(report.Changed, path)
		}
		return nil
	}

	for _, path := range v.Files() {
		if err := check(path, v.FilePaths[path]); err != nil {
			return nil, err
		}
	}
	for i, path := range v.DependencyPaths {
		if err := check(path, v.DependencyHashes[i]); err != nil {
			return nil, err
		}
	}
	return report, nil
}
