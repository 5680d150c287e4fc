package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	debug      bool
	configFile string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:          "gorrc_nav",
		Short:        "Fuzzy logic navigation for an omnidirectional robot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNavigator(cmd.Context(), flags)
		},
	}

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging, including per-rule traces")
	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "TOML config file (defaults to $GORRC_CONFIGFILE)")

	cmd.AddCommand(runCmd(flags))
	cmd.AddCommand(evalCmd(flags))
	return cmd
}
