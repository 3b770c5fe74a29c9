package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/luamod"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/service"
)

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the active environment name",
		Long:  `Env prints BABEL_ENV, else NODE_ENV, else "development". Empty values count as unset.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), service.CurrentEnv())
		},
	}
}

func newEvalCommand(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <module>",
		Short: "Run a generated module and print its options as JSON",
		Long: `Eval loads a generated module in the sandboxed Lua VM, calls getOptions
for the active environment and prints the result.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")

			code, err := afero.ReadFile(app.fs, args[0])
			if err != nil {
				return fmt.Errorf("read module: %w", err)
			}

			opts, err := luamod.Evaluate(string(code))
			if err != nil {
				return errors.New(luamod.FormatError(err, verbose))
			}

			out, err := json.MarshalIndent(opts, "", "  ")
			if err != nil {
				return fmt.Errorf("encode options: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolP("verbose", "v", false, "include Lua stack details in errors")

	return cmd
}
