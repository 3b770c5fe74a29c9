package resolve

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", path, err)
		}
	}
	return fs
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		kind Kind
		ref  string
		want []string
	}{
		{KindPlugin, "foo", []string{"babel-plugin-foo", "foo"}},
		{KindPreset, "env", []string{"babel-preset-env", "env"}},
		{KindPlugin, "babel-plugin-foo", []string{"babel-plugin-foo"}},
		{KindPlugin, "./plugin", []string{"./plugin"}},
		{KindPlugin, "/abs/plugin.js", []string{"/abs/plugin.js"}},
		{KindPreset, "@scope/preset", []string{"@scope/preset"}},
		{KindModule, "foo", []string{"foo"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.ref, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Candidates(tt.kind, tt.ref)); diff != "" {
				t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNodeResolver_Resolve(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/project/plugin.js":                                  "",
		"/project/lib/index.js":                               "",
		"/project/base.json":                                  "{}",
		"/project/node_modules/babel-plugin-foo/index.js":     "",
		"/project/node_modules/bar/package.json":              `{"main": "lib/main.js"}`,
		"/project/node_modules/bar/lib/main.js":               "",
		"/node_modules/babel-preset-up/index.js":              "",
		"/project/node_modules/@scope/preset/index.js":        "",
		"/project/node_modules/shared-config/index.json":      "{}",
		"/project/node_modules/babel-plugin-both/index.js":    "",
		"/project/node_modules/both/index.js":                 "",
		"/project/sub/node_modules/babel-plugin-near/index.js": "",
	})
	r := NewNodeResolver(fs)
	ctx := context.Background()

	tests := []struct {
		name    string
		kind    Kind
		ref     string
		fromDir string
		want    string
	}{
		{"relative file with extension", KindPlugin, "./plugin.js", "/project", "/project/plugin.js"},
		{"relative file without extension", KindPlugin, "./plugin", "/project", "/project/plugin.js"},
		{"relative directory index", KindPlugin, "./lib", "/project", "/project/lib/index.js"},
		{"parent-relative", KindModule, "../base.json", "/project/sub", "/project/base.json"},
		{"absolute", KindPlugin, "/project/plugin.js", "/elsewhere", "/project/plugin.js"},
		{"prefixed bare name", KindPlugin, "foo", "/project", "/project/node_modules/babel-plugin-foo/index.js"},
		{"package main", KindPlugin, "bar", "/project", "/project/node_modules/bar/lib/main.js"},
		{"ancestor node_modules", KindPreset, "up", "/project/sub", "/node_modules/babel-preset-up/index.js"},
		{"scoped", KindPreset, "@scope/preset", "/project", "/project/node_modules/@scope/preset/index.js"},
		{"module json index", KindModule, "shared-config", "/project", "/project/node_modules/shared-config/index.json"},
		{"prefix preferred", KindPlugin, "both", "/project", "/project/node_modules/babel-plugin-both/index.js"},
		{"nearest node_modules", KindPlugin, "near", "/project/sub", "/project/sub/node_modules/babel-plugin-near/index.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.kind, tt.ref, tt.fromDir)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNodeResolver_NotFound(t *testing.T) {
	r := NewNodeResolver(afero.NewMemMapFs())

	_, err := r.Resolve(context.Background(), KindPlugin, "missing", "/project")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Resolve() error = %v, want *NotFoundError", err)
	}
	if nf.Ref != "missing" || nf.FromDir != "/project" || nf.Kind != KindPlugin {
		t.Errorf("NotFoundError = %+v", nf)
	}
}

func TestNodeResolver_CanceledContext(t *testing.T) {
	fs := newFs(t, map[string]string{"/project/plugin.js": ""})
	r := NewNodeResolver(fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Resolve(ctx, KindPlugin, "./plugin.js", "/project"); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

// cancelOnStat cancels a context the first time the resolver stats a path.
type cancelOnStat struct {
	afero.Fs
	cancel context.CancelFunc
}

func (c *cancelOnStat) Stat(name string) (os.FileInfo, error) {
	c.cancel()
	return c.Fs.Stat(name)
}

func TestNodeResolver_CanceledDuringWalk(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewNodeResolver(&cancelOnStat{Fs: newFs(t, nil), cancel: cancel})

	_, err := r.Resolve(ctx, KindPlugin, "@scope/missing", "/project/src")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve() error = %v, want context.Canceled", err)
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		t.Errorf("Resolve() reported a canceled walk as %v", nf)
	}
}
