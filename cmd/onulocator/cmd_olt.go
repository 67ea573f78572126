package main

import (
	"fmt"

	"github.com/nanoncore/nano-onulocator/types"
	"github.com/spf13/cobra"
)

var rawCheckCmd = &cobra.Command{
	Use:   "raw-check <address> <interface>",
	Short: "Print the unparsed optical readings of one ONU interface",
	Long: `Runs the optical power commands for a gpon-onu interface on one OLT and
prints the device output as-is.

Examples:
  onulocator raw-check 10.0.0.1 gpon-onu_1/2/1:5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := app.service()
		if err != nil {
			return err
		}
		replies, err := svc.RawCheck(app.operationContext(cmd), args[0], args[1])
		if err != nil {
			return err
		}
		return printReplies(cmd.OutOrStdout(), replies)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <address> <interface>",
	Short: "Remove an ONU registration from an OLT",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := app.service()
		if err != nil {
			return err
		}
		if err := svc.DeleteTerminal(app.operationContext(cmd), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[1], args[0])
		return nil
	},
}

var oltCmd = &cobra.Command{
	Use:   "olt",
	Short: "Manage the OLT inventory",
}

var (
	oltName     string
	oltUsername string
	oltPassword string
	oltVendor   string
	oltProtocol string
	oltPort     int
)

var oltAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Add or update an OLT",
	Long: `Adds an OLT to the inventory. OLTs without their own credentials use the
default login (see "defaults set").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := types.Target{
			Name:     oltName,
			Address:  args[0],
			Username: oltUsername,
			Password: oltPassword,
			Vendor:   types.Vendor(oltVendor),
			Protocol: types.Protocol(oltProtocol),
			Port:     oltPort,
		}
		if err := app.db.AddTarget(cmd.Context(), target); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved OLT %s\n", args[0])
		return nil
	},
}

var oltListCmd = &cobra.Command{
	Use:   "list",
	Short: "List inventoried OLTs",
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := app.db.Targets(cmd.Context())
		if err != nil {
			return err
		}
		return printTargets(cmd.OutOrStdout(), targets)
	},
}

var oltRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Remove an OLT from the inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := app.db.RemoveTarget(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("OLT %s is not in the inventory", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed OLT %s\n", args[0])
		return nil
	},
}

func init() {
	oltAddCmd.Flags().StringVar(&oltName, "name", "", "Display name (defaults to the address)")
	oltAddCmd.Flags().StringVar(&oltUsername, "username", "", "Device username (optional)")
	oltAddCmd.Flags().StringVar(&oltPassword, "password", "", "Device password (optional)")
	oltAddCmd.Flags().StringVar(&oltVendor, "vendor", "", "Vendor dialect (default from config)")
	oltAddCmd.Flags().StringVar(&oltProtocol, "protocol", "", "telnet or ssh (default from config)")
	oltAddCmd.Flags().IntVar(&oltPort, "port", 0, "Port (default from config)")

	oltCmd.AddCommand(oltAddCmd, oltListCmd, oltRemoveCmd)
}
