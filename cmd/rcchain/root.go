package main

import (
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/service"
)

// envPrefix namespaces the environment variables bound to flags:
// --log-level reads RCCHAIN_LOG_LEVEL, --out reads RCCHAIN_OUT, and so on.
const envPrefix = "RCCHAIN"

// cli carries what every subcommand needs.
type cli struct {
	fs     afero.Fs
	v      *viper.Viper
	logger hclog.Logger
}

func (c *cli) service() *service.PrecompileService {
	return service.NewPrecompileService(c.fs, nil).WithLogger(c.logger)
}

func newRootCommand(version string, fs afero.Fs) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	app := &cli{fs: fs, v: v, logger: hclog.NewNullLogger()}

	rootCmd := &cobra.Command{
		Use:   "rcchain",
		Short: "Precompile hierarchical babel configuration into a standalone module",
		Long: `rcchain resolves the .babelrc / package.json chain of a project, including
extends targets and env sections, and writes a generated module that returns
the merged options for the active environment without touching the
filesystem again.

A verifier file records every input of the resolution so later builds can
tell whether the module is stale.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(v, cmd.Flags(), cmd.InheritedFlags()); err != nil {
				return err
			}
			app.logger = hclog.New(&hclog.LoggerOptions{
				Name:   "rcchain",
				Level:  hclog.LevelFromString(v.GetString("log-level")),
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newCompileCommand(app))
	rootCmd.AddCommand(newCheckCommand(app))
	rootCmd.AddCommand(newEnvCommand())
	rootCmd.AddCommand(newEvalCommand(app))

	return rootCmd
}

func bindFlags(v *viper.Viper, sets ...*pflag.FlagSet) error {
	for _, set := range sets {
		if err := v.BindPFlags(set); err != nil {
			return err
		}
	}
	return nil
}
