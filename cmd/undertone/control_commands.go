package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"undertone/internal/app"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running session's subtitle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.Forward(cmd.Context(), "status", "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"state=%s enabled=%t visible=%t language=%s\n",
				resp.State, resp.Enabled, resp.Visible, resp.Language,
			)
			return nil
		},
	}
}

func newTextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "text",
		Short: "Print the current subtitle line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.Forward(cmd.Context(), "text", "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return nil
		},
	}
}

func newEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Turn subtitles on",
		Args:  cobra.NoArgs,
		RunE:  forwardRunE("enable"),
	}
}

func newDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Turn subtitles off",
		Args:  cobra.NoArgs,
		RunE:  forwardRunE("disable"),
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Report the call page as visible",
		Args:  cobra.NoArgs,
		RunE:  forwardRunE("show"),
	}
}

func newHideCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hide",
		Short: "Report the call page as hidden",
		Args:  cobra.NoArgs,
		RunE:  forwardRunE("hide"),
	}
}

func newLanguageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "language <code>",
		Short: "Switch the recognition language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.Forward(cmd.Context(), "language", args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func forwardRunE(command string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		resp, err := app.Forward(cmd.Context(), command, "")
		if err != nil {
			return err
		}
		if resp.Message != "" {
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		}
		return nil
	}
}
