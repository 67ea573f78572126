package zte

import (
	"context"
	"fmt"

	"github.com/nanoncore/nano-onulocator/logging"
	"github.com/nanoncore/nano-onulocator/types"
)

// Adapter wraps a base driver with ZTE-specific logic
// ZTE C300/C320 OLTs are managed over telnet CLI
type Adapter struct {
	baseDriver  types.Driver
	cliExecutor types.CLIExecutor
	config      *types.EquipmentConfig
}

// NewAdapter creates a new ZTE adapter
func NewAdapter(baseDriver types.Driver, config *types.EquipmentConfig) *Adapter {
	adapter := &Adapter{baseDriver: baseDriver, config: config}

	// Check if base driver supports CLI execution
	if executor, ok := baseDriver.(types.CLIExecutor); ok {
		adapter.cliExecutor = executor
	}

	return adapter
}

func (a *Adapter) Connect(ctx context.Context) error {
	return a.baseDriver.Connect(ctx)
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	return a.baseDriver.Disconnect(ctx)
}

func (a *Adapter) IsConnected() bool {
	return a.baseDriver.IsConnected()
}

func (a *Adapter) executor() (types.CLIExecutor, error) {
	if a.cliExecutor == nil {
		return nil, fmt.Errorf("CLI executor not available - ZTE requires CLI driver")
	}
	return a.cliExecutor, nil
}

// ValidateInterface checks a gpon-onu_ identifier without any I/O
func (a *Adapter) ValidateInterface(iface string) error {
	_, err := ParseInterface(iface)
	return err
}

// FindTerminal searches the OLT for a serial. A nil match with a nil error
// means the OLT answered but does not serve the terminal.
func (a *Adapter) FindTerminal(ctx context.Context, serial string) (*types.TerminalMatch, error) {
	exec, err := a.executor()
	if err != nil {
		return nil, err
	}

	output, err := exec.ExecCommand(ctx, types.Command{
		Text:    SearchCommand(serial),
		Key:     types.KeySearch,
		Timeout: a.config.Timeouts.Command,
	})
	if err != nil {
		return nil, err
	}

	match := ParseSearch(output, serial)
	logging.WithDevice(a.config.Address).WithField("found", match != nil).Debug("serial search finished")
	return match, nil
}

// CollectDiagnostics runs the diagnostics batch. Signal scope adds transmit
// levels and the state table of the head-end interface.
func (a *Adapter) CollectDiagnostics(ctx context.Context, iface string, scope types.DiagnosticScope) ([]types.Reply, error) {
	exec, err := a.executor()
	if err != nil {
		return nil, err
	}
	if err := a.ValidateInterface(iface); err != nil {
		return nil, err
	}

	return exec.ExecCommands(ctx, DiagnosticCommands(iface, scope, a.config.Timeouts))
}

// ReadOptical runs the receive/transmit level commands for a terminal
func (a *Adapter) ReadOptical(ctx context.Context, iface string) ([]types.Reply, error) {
	exec, err := a.executor()
	if err != nil {
		return nil, err
	}
	if err := a.ValidateInterface(iface); err != nil {
		return nil, err
	}

	return exec.ExecCommands(ctx, OpticalCommands(iface, a.config.Timeouts))
}

// RemoveTerminal deletes the ONU registration on its head-end interface.
// Replies are returned even when the device rejected a step.
func (a *Adapter) RemoveTerminal(ctx context.Context, iface string) ([]types.Reply, error) {
	exec, err := a.executor()
	if err != nil {
		return nil, err
	}
	parsed, err := ParseInterface(iface)
	if err != nil {
		return nil, err
	}

	replies, err := exec.ExecCommands(ctx, RemoveCommands(parsed, a.config.Timeouts))
	if err != nil {
		return nil, fmt.Errorf("ZTE ONU removal failed: %w", err)
	}

	for _, r := range replies {
		if err := CheckOutput(r.Output); err != nil {
			return replies, fmt.Errorf("%s: %w", r.Command, err)
		}
	}

	return replies, nil
}
