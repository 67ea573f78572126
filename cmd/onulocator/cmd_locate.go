package main

import (
	"errors"
	"fmt"

	"github.com/nanoncore/nano-onulocator/types"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate <serial>",
	Short: "Find the OLT serving an ONU and show its status and receive levels",
	Long: `Searches every OLT of the inventory in parallel for the ONU serial.
The first OLT that reports the serial wins; the remaining searches are
canceled. Diagnostics are then read from the matched OLT.

Examples:
  onulocator locate ZTEGC8F21A04
  onulocator locate ZTEGC8F21A04 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := app.service()
		if err != nil {
			return err
		}
		result, err := svc.Locate(app.operationContext(cmd), args[0])
		if err != nil {
			return describeLocateError(args[0], err)
		}
		return printResult(cmd.OutOrStdout(), result, false)
	},
}

var signalCmd = &cobra.Command{
	Use:   "signal <serial>",
	Short: "Like locate, adding transmit levels and the port state table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := app.service()
		if err != nil {
			return err
		}
		result, err := svc.Signal(app.operationContext(cmd), args[0])
		if err != nil {
			return describeLocateError(args[0], err)
		}
		return printResult(cmd.OutOrStdout(), result, true)
	},
}

func describeLocateError(serial string, err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidSerial):
		return fmt.Errorf("invalid serial %q: expected 12 characters", serial)
	case errors.Is(err, types.ErrNotFound):
		return fmt.Errorf("ONU %s not found on any reachable OLT", serial)
	}
	return err
}
