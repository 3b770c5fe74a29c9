package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/artifact"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/config"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/format"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/service"
)

const (
	defaultOut = "babelrc.lua"

	moduleFilePermissions   = 0o644
	verifierFilePermissions = 0o644
)

func newCompileCommand(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [dir]",
		Short: "Resolve configuration and write the generated module",
		Long: `Compile resolves the configuration found from dir upwards (default: the
current directory), or the request document given with --request, and writes
the generated module to --out. With --verifier it also writes the verifier
file used by "rcchain check".

Example:
  rcchain compile ./app --out build/babelrc.lua --verifier build/babelrc.rcv
  rcchain compile --request request.json --out build/babelrc.lua`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, app, args)
		},
	}

	cmd.Flags().String("request", "", "request document (JSON or JSON5) with options, source, dir, hash and json5")
	cmd.Flags().String("out", defaultOut, "path of the generated module")
	cmd.Flags().String("verifier", "", "path of the verifier file (not written when empty)")

	return cmd
}

func runCompile(cmd *cobra.Command, app *cli, args []string) error {
	ctx := cmd.Context()
	svc := app.service()

	var (
		res *service.Result
		err error
	)
	if requestPath := app.v.GetString("request"); requestPath != "" {
		if len(args) > 0 {
			return fmt.Errorf("--request and a directory argument are mutually exclusive")
		}
		req, rerr := loadRequest(app.fs, requestPath)
		if rerr != nil {
			return rerr
		}
		res, err = svc.FromConfig(ctx, req, nil)
	} else {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		res, err = svc.FromDirectory(ctx, dir, nil)
	}
	if err != nil {
		return err
	}

	out := app.v.GetString("out")
	verifierPath := app.v.GetString("verifier")

	var verifierData []byte
	if verifierPath != "" {
		verifierData, err = res.CreateVerifier().ToBuffer()
		if err != nil {
			return err
		}
	}

	lock, err := artifact.AcquireLock(ctx, app.fs, filepath.Dir(out))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	if err := artifact.WriteFile(app.fs, out, []byte(res.GenerateModule()), moduleFilePermissions); err != nil {
		return fmt.Errorf("write module: %w", err)
	}
	if verifierPath != "" {
		if err := artifact.WriteFile(app.fs, verifierPath, verifierData, verifierFilePermissions); err != nil {
			return fmt.Errorf("write verifier: %w", err)
		}
	}

	c := res.Chain()
	envs := "none"
	if names := res.Tree().EnvNames(); len(names) > 0 {
		envs = strings.Join(names, ", ")
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Wrote %s\n", out)
	if verifierPath != "" {
		fmt.Fprintf(w, "Wrote %s\n", verifierPath)
	}
	fmt.Fprintf(w, "  base dir:     %s\n", c.BaseDir)
	fmt.Fprintf(w, "  links:        %d\n", len(c.Links))
	fmt.Fprintf(w, "  files:        %d\n", len(c.Files))
	fmt.Fprintf(w, "  dependencies: %d\n", len(c.Dependencies))
	fmt.Fprintf(w, "  envs:         %s\n", envs)

	return nil
}

// loadRequest reads a request document. Files ending in .json are parsed
// strictly, anything else as JSON5.
func loadRequest(fs afero.Fs, path string) (*config.Request, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	raw, err := format.Parse(format.ForFile(path), data)
	if err != nil {
		return nil, fmt.Errorf("parse request %s: %w", path, err)
	}
	return config.CreateConfig(raw)
}
