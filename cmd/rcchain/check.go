package main

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/service"
)

// ErrStale is returned by check when a recorded input changed.
var ErrStale = errors.New("generated module is stale")

func newCheckCommand(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check --verifier <file>",
		Short: "Report whether a generated module is stale",
		Long: `Check re-hashes every configuration file and dependency recorded in the
verifier file and exits non-zero when any of them is missing or changed.

Example:
  rcchain check --verifier build/babelrc.rcv || rcchain compile ./app ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, app)
		},
	}

	cmd.Flags().String("verifier", "", "path of the verifier file (required)")

	return cmd
}

func runCheck(cmd *cobra.Command, app *cli) error {
	path := app.v.GetString("verifier")
	if path == "" {
		return fmt.Errorf("--verifier is required")
	}

	data, err := afero.ReadFile(app.fs, path)
	if err != nil {
		return fmt.Errorf("read verifier: %w", err)
	}
	v, err := service.RestoreVerifier(data)
	if err != nil {
		return err
	}

	report, err := v.Verify(cmd.Context(), app.fs)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if report.Fresh() {
		fmt.Fprintf(w, "Up to date (%d files, %d dependencies)\n", len(v.FilePaths), len(v.DependencyPaths))
		return nil
	}

	for _, p := range report.Missing {
		fmt.Fprintf(w, "missing: %s\n", p)
	}
	for _, p := range report.Changed {
		fmt.Fprintf(w, "changed: %s\n", p)
	}
	app.logger.Info("verifier is stale", "missing", len(report.Missing), "changed", len(report.Changed))
	return ErrStale
}
