package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"undertone/internal/config"
	"undertone/internal/doctor"
)

func newDoctorCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run readiness diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			report := doctor.Run(cmd.Context(), loaded)
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			if !report.OK() {
				return fmt.Errorf("diagnostics failed")
			}
			return nil
		},
	}
}
