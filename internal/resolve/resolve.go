// Package resolve turns plugin, preset and extends references into absolute
// file paths using node-style module resolution over an afero filesystem.
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Kind distinguishes what a reference names; it drives name prefixing.
type Kind string

const (
	KindPlugin Kind = "plugin"
	KindPreset Kind = "preset"
	// KindModule references are resolved exactly as written.
	KindModule Kind = "module"
)

// Resolver resolves a reference relative to a directory.
type Resolver interface {
	Resolve(ctx context.Context, kind Kind, ref, fromDir string) (string, error)
}

// NotFoundError reports a reference that resolved to no file.
type NotFoundError struct {
	Kind    Kind
	Ref     string
	FromDir string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot find %s %q from %s", e.Kind, e.Ref, e.FromDir)
}

// Candidates returns the module names tried for ref, in order. Bare plugin
// and preset names are tried with their conventional prefix first:
// "foo" → "babel-plugin-foo", "foo". Paths and scoped names are used as-is.
func Candidates(kind Kind, ref string) []string {
	if kind == KindModule || isPath(ref) || strings.HasPrefix(ref, "@") {
		return []string{ref}
	}
	prefix := "babel-" + string(kind) + "-"
	if strings.HasPrefix(ref, prefix) {
		return []string{ref}
	}
	return []string{prefix + ref, ref}
}

// NodeResolver implements Resolver with the node_modules lookup algorithm.
type NodeResolver struct {
	fs afero.Fs
}

// NewNodeResolver creates a resolver reading from fs.
func NewNodeResolver(fs afero.Fs) *NodeResolver {
	return &NodeResolver{fs: fs}
}

// Resolve returns the absolute path of the file ref names, relative to fromDir.
//
// Relative and absolute refs are resolved as files, then as directories.
// Bare names are looked up in node_modules directories from fromDir up to
// the filesystem root.
func (r *NodeResolver) Resolve(ctx context.Context, kind Kind, ref, fromDir string) (string, error) {
	for _, name := range Candidates(kind, ref) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var (
			resolved string
			ok       bool
		)
		if isPath(name) {
			target := name
			if !filepath.IsAbs(target) {
				target = filepath.Join(fromDir, filepath.FromSlash(name))
			}
			resolved, ok = r.loadAsFileOrDirectory(target)
		} else {
			resolved, ok = r.loadFromNodeModules(ctx, name, fromDir)
		}
		if ok {
			return resolved, nil
		}
	}
	// An interrupted node_modules walk is not a miss.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", &NotFoundError{Kind: kind, Ref: ref, FromDir: fromDir}
}

func (r *NodeResolver) loadFromNodeModules(ctx context.Context, name, fromDir string) (string, bool) {
	dir := filepath.Clean(fromDir)
	for {
		if ctx.Err() != nil {
			return "", false
		}
		if filepath.Base(dir) != "node_modules" {
			candidate := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
			if resolved, ok := r.loadAsFileOrDirectory(candidate); ok {
				return resolved, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (r *NodeResolver) loadAsFileOrDirectory(target string) (string, bool) {
	if resolved, ok := r.loadAsFile(target); ok {
		return resolved, true
	}
	return r.loadAsDirectory(target)
}

func (r *NodeResolver) loadAsFile(target string) (string, bool) {
	for _, candidate := range []string{target, target + ".js", target + ".json"} {
		if r.isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (r *NodeResolver) loadAsDirectory(dir string) (string, bool) {
	if main := r.packageMain(dir); main != "" {
		target := filepath.Join(dir, filepath.FromSlash(main))
		if resolved, ok := r.loadAsFile(target); ok {
			return resolved, true
		}
		if resolved, ok := r.loadIndex(target); ok {
			return resolved, true
		}
	}
	return r.loadIndex(dir)
}

func (r *NodeResolver) loadIndex(dir string) (string, bool) {
	for _, name := range []string{"index.js", "index.json"} {
		candidate := filepath.Join(dir, name)
		if r.isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// packageMain returns the "main" field of dir/package.json, if any.
func (r *NodeResolver) packageMain(dir string) string {
	data, err := afero.ReadFile(r.fs, filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Main
}

func (r *NodeResolver) isFile(p string) bool {
	info, err := r.fs.Stat(p)
	return err == nil && !info.IsDir()
}

// isPath reports whether ref is a filesystem path rather than a module name.
func isPath(ref string) bool {
	return filepath.IsAbs(ref) ||
		ref == "." || ref == ".." ||
		strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") ||
		strings.HasPrefix(path.Clean(filepath.ToSlash(ref)), "../")
}
