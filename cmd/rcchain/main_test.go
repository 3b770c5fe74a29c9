package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/artifact"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/codegen"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/testutil"
)

func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd := newRootCommand("test", fs)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestCompile_Directory(t *testing.T) {
	testutil.SetupTestEnv(t)
	fs := testutil.NewFs(t, testutil.CompareFixture())

	out, err := run(t, fs, "compile", testutil.CompareDir, "--out", "/build/babelrc.lua", "--verifier", "/build/babelrc.rcv")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote /build/babelrc.lua")
	assert.Contains(t, out, "Wrote /build/babelrc.rcv")
	assert.Contains(t, out, "envs:         foo")

	module, err := afero.ReadFile(fs, "/build/babelrc.lua")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(module, []byte(codegen.Header)))

	exists, err := afero.Exists(fs, "/build/babelrc.rcv")
	require.NoError(t, err)
	assert.True(t, exists)

	lockHeld, err := afero.Exists(fs, "/build/"+artifact.LockFileName)
	require.NoError(t, err)
	assert.False(t, lockHeld, "lock must be released after compile")
}

func TestCompile_Request(t *testing.T) {
	testutil.SetupTestEnv(t)
	fs := testutil.NewFs(t, testutil.CompareFixture())
	testutil.WriteFiles(t, fs, map[string]string{
		"/req/request.json5": `{
  options: {babelrc: false, plugins: ['plugin']},
  source: '/elsewhere/input.js',
  dir: '/project',
  json5: false,
}`,
	})

	_, err := run(t, fs, "compile", "--request", "/req/request.json5", "--out", "/build/babelrc.lua")
	require.NoError(t, err)

	module, err := afero.ReadFile(fs, "/build/babelrc.lua")
	require.NoError(t, err)
	assert.Contains(t, string(module), `["babelrc"] = false,`)
	assert.Contains(t, string(module), testutil.CompareModule("plugin"))

	out, err := run(t, fs, "eval", "/build/babelrc.lua")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]any{
		"babelrc": false,
		"plugins": []any{testutil.CompareModule("plugin")},
	}, got)
}

func TestCompile_Errors(t *testing.T) {
	fs := testutil.NewFs(t, map[string]string{
		"/bad/.babelrc":      `{plugins: ['missing']}`,
		"/req/request.json":  `{"source": "x.js"}`,
		"/req/notjson.json5": `{`,
	})

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unresolvable plugin", []string{"compile", "/bad", "--out", "/build/x.lua"}, "/bad/.babelrc"},
		{"invalid request", []string{"compile", "--request", "/req/request.json", "--out", "/build/x.lua"}, "Expected 'options' and 'source' options"},
		{"unparsable request", []string{"compile", "--request", "/req/notjson.json5", "--out", "/build/x.lua"}, "parse request"},
		{"request and dir", []string{"compile", "/bad", "--request", "/req/request.json"}, "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, fs, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	exists, err := afero.Exists(fs, "/build/x.lua")
	require.NoError(t, err)
	assert.False(t, exists, "failed compile must not write a module")
}

func TestCompile_OutFromEnv(t *testing.T) {
	testutil.SetupTestEnv(t)
	t.Setenv("RCCHAIN_OUT", "/from-env/babelrc.lua")
	fs := testutil.NewFs(t, testutil.CompareFixture())

	_, err := run(t, fs, "compile", testutil.CompareDir)
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "/from-env/babelrc.lua")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCheck(t *testing.T) {
	fs := testutil.NewFs(t, testutil.CompareFixture())

	_, err := run(t, fs, "compile", testutil.CompareDir, "--out", "/build/babelrc.lua", "--verifier", "/build/babelrc.rcv")
	require.NoError(t, err)

	out, err := run(t, fs, "check", "--verifier", "/build/babelrc.rcv")
	require.NoError(t, err)
	assert.Contains(t, out, "Up to date")

	plugin := testutil.CompareModule("plugin")
	require.NoError(t, afero.WriteFile(fs, plugin, []byte("module.exports = null\n"), 0o644))
	require.NoError(t, fs.Remove("/project/extended-by-babelrc.json5"))

	out, err = run(t, fs, "check", "--verifier", "/build/babelrc.rcv")
	require.ErrorIs(t, err, ErrStale)
	assert.Contains(t, out, "changed: "+plugin)
	assert.Contains(t, out, "missing: /project/extended-by-babelrc.json5")
}

func TestCheck_Errors(t *testing.T) {
	fs := testutil.NewFs(t, map[string]string{"/build/garbage.rcv": "not a verifier"})

	_, err := run(t, fs, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--verifier is required")

	_, err = run(t, fs, "check", "--verifier", "/build/absent.rcv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read verifier")

	_, err = run(t, fs, "check", "--verifier", "/build/garbage.rcv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid verifier buffer")
}

func TestEnv(t *testing.T) {
	testutil.SetupTestEnv(t)

	out, err := run(t, afero.NewMemMapFs(), "env")
	require.NoError(t, err)
	assert.Equal(t, "development\n", out)

	t.Setenv("BABEL_ENV", "foo")
	out, err = run(t, afero.NewMemMapFs(), "env")
	require.NoError(t, err)
	assert.Equal(t, "foo\n", out)
}

func TestEval_Env(t *testing.T) {
	testutil.SetupTestEnv(t)
	fs := testutil.NewFs(t, testutil.CompareFixture())

	_, err := run(t, fs, "compile", testutil.CompareDir, "--out", "/build/babelrc.lua")
	require.NoError(t, err)

	t.Setenv("BABEL_ENV", "foo")
	out, err := run(t, fs, "eval", "/build/babelrc.lua")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got, "env")
	assert.Equal(t, false, got["babelrc"])
}

func TestEval_Errors(t *testing.T) {
	fs := testutil.NewFs(t, map[string]string{"/m/broken.lua": "return {"})

	_, err := run(t, fs, "eval", "/m/broken.lua")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Lua syntax error")

	_, err = run(t, fs, "eval", "/m/absent.lua")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read module")
}

func TestVersion(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "test")
}
