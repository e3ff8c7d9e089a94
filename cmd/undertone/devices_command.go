package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"undertone/internal/audio"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := audio.ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no audio devices found")
				return nil
			}

			rows := make([][]string, 0, len(devices))
			for _, device := range devices {
				rows = append(rows, []string{
					defaultMark(device.Default),
					device.ID,
					device.Description,
					device.State,
					yesNo(device.Available),
					yesNo(device.Muted),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"", "ID", "Description", "State", "Available", "Muted"},
				rows,
			))
			return nil
		},
	}
}

func defaultMark(isDefault bool) string {
	if isDefault {
		return "*"
	}
	return ""
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
