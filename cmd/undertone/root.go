package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool

	rootCmd := &cobra.Command{
		Use:           "undertone",
		Short:         "Live subtitle sidecar for video calls",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newJoinCommand(&configFlag, &verboseFlag))
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newTextCommand())
	rootCmd.AddCommand(newEnableCommand())
	rootCmd.AddCommand(newDisableCommand())
	rootCmd.AddCommand(newLanguageCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newHideCommand())
	rootCmd.AddCommand(newDevicesCommand())
	rootCmd.AddCommand(newDoctorCommand(&configFlag))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
