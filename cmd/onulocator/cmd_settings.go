package main

import (
	"fmt"

	"github.com/nanoncore/nano-onulocator/types"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Manage the status-code vocabulary",
}

var statusColor string

var statusAddCmd = &cobra.Command{
	Use:   "add <code> <description>",
	Short: "Add or update a status code",
	Long: `Maps a status token reported by the OLT to a description and a color.
Codes are matched exactly first, then against the lowercased token.

Examples:
  onulocator status add working Online --color green
  onulocator status add los "Loss of signal" --color red`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := types.StatusEntry{Code: args[0], Description: args[1], Color: statusColor}
		if err := app.db.AddStatus(cmd.Context(), entry); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved status %s\n", args[0])
		return nil
	},
}

var statusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List status codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := app.db.StatusEntries(cmd.Context())
		if err != nil {
			return err
		}
		return printStatuses(cmd.OutOrStdout(), entries)
	},
}

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Manage the default OLT login",
}

var (
	defaultUsername string
	defaultPassword string
)

var defaultsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the login used by OLTs without their own credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cred := types.Credential{Username: defaultUsername, Password: defaultPassword}
		if !cred.Complete() {
			return fmt.Errorf("both --username and --password are required")
		}
		if err := app.db.SetDefaultCredential(cmd.Context(), cred); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Default login saved")
		return nil
	},
}

var defaultsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show whether a default login is configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		cred, err := app.db.DefaultCredential(cmd.Context())
		if err != nil {
			return err
		}
		if !cred.Complete() {
			fmt.Fprintln(cmd.OutOrStdout(), "No default login configured")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default login: %s (password set)\n", cred.Username)
		return nil
	},
}

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := app.db.RecentEvents(cmd.Context(), logsLimit)
		if err != nil {
			return err
		}
		return printEvents(cmd.OutOrStdout(), events)
	},
}

func init() {
	statusAddCmd.Flags().StringVar(&statusColor, "color", types.DefaultColor, "Display color")
	statusCmd.AddCommand(statusAddCmd, statusListCmd)

	defaultsSetCmd.Flags().StringVar(&defaultUsername, "username", "", "Default username")
	defaultsSetCmd.Flags().StringVar(&defaultPassword, "password", "", "Default password")
	defaultsCmd.AddCommand(defaultsSetCmd, defaultsShowCmd)

	logsCmd.Flags().IntVar(&logsLimit, "limit", 100, "Maximum number of events")
}
