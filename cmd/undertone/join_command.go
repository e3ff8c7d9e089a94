package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"undertone/internal/app"
	"undertone/internal/config"
	"undertone/internal/logging"
)

func newJoinCommand(configFlag *string, verboseFlag *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "join <session-id>",
		Short: "Join a call session and serve subtitles until it ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			for _, warning := range loaded.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", warning.Message)
			}

			logRuntime, err := logging.New(*verboseFlag)
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}
			defer func() { _ = logRuntime.Close() }()

			return app.RunDaemon(cmd.Context(), loaded, args[0], logRuntime.Logger)
		},
	}
}
