package cli

import (
	"context"

	"github.com/Speshl/gorrc_nav/internal/app"
	"github.com/Speshl/gorrc_nav/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Drive the robot to the configured target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNavigator(cmd.Context(), flags)
		},
	}
}

func runNavigator(ctx context.Context, flags *globalFlags) error {
	log, cleanup, err := newLogger(flags.debug)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := config.GetConfig(flags.configFile)
	if err != nil {
		log.Error("failed loading config", zap.Error(err))
		return err
	}

	a, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed creating app", zap.Error(err))
		return err
	}

	err = a.Start(ctx)
	if err != nil {
		log.Error("navigator shutdown with error", zap.Error(err))
		return err
	}
	log.Info("navigator shutdown successfully")
	return nil
}
