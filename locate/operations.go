package locate

import (
	"context"
	"errors"
	"fmt"
	"time"

	onulocator "github.com/nanoncore/nano-onulocator"
	"github.com/nanoncore/nano-onulocator/credentials"
	"github.com/nanoncore/nano-onulocator/logging"
	"github.com/nanoncore/nano-onulocator/metrics"
	"github.com/nanoncore/nano-onulocator/status"
	"github.com/nanoncore/nano-onulocator/types"
	"github.com/nanoncore/nano-onulocator/vendors/zte"
)

// Operation names used in metrics, logs and audit events
const (
	OpLocate   = "locate"
	OpSignal   = "signal"
	OpRawCheck = "raw-check"
	OpDelete   = "delete"
)

// Locate finds the OLT serving serial and reads its status and receive levels
func (s *Service) Locate(ctx context.Context, serial string) (*types.LocateResult, error) {
	return s.diagnose(ctx, OpLocate, serial, types.ScopeLocate)
}

// Signal is Locate with transmit levels and the per-port state table
func (s *Service) Signal(ctx context.Context, serial string) (*types.LocateResult, error) {
	return s.diagnose(ctx, OpSignal, serial, types.ScopeSignal)
}

func (s *Service) diagnose(ctx context.Context, op, serial string, scope types.DiagnosticScope) (result *types.LocateResult, err error) {
	start := s.now()
	defer func() { s.finish(op, start, err) }()

	if err := types.ValidateSerial(serial); err != nil {
		return nil, err
	}

	log := logging.WithOperation(op).WithField("serial", serial)

	targets, err := s.inventory.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	fallback, err := s.creds.DefaultCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read default credential: %w", err)
	}

	h, err := s.search(ctx, serial, targets, fallback)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			s.record(ctx, op, fmt.Sprintf("terminal %s not found on %d OLTs", serial, len(targets)))
			return nil, fmt.Errorf("%s: %w", serial, err)
		}
		return nil, err
	}

	result = &types.LocateResult{
		Serial: serial,
		Location: types.TerminalLocation{
			DeviceAddress: h.target.Address,
			DeviceName:    h.target.Name,
			Interface:     h.match.Interface,
			RawLine:       h.match.RawLine,
		},
	}

	replies, err := s.collect(ctx, h, scope)
	if err != nil {
		log.WithError(err).Warn("diagnostics unavailable, reporting defaults")
	}
	result.Raw = replies
	result.Diagnostics = s.extractor.Extract(h.match.Interface, replies)
	s.statusTable(ctx).Apply(&result.Diagnostics)

	s.record(ctx, op, fmt.Sprintf("%s: terminal %s on %s (%s) at %s, status %s",
		op, serial, h.target.Name, h.target.Address, h.match.Interface, result.Diagnostics.Status))

	return result, nil
}

// collect opens a second session on the matched OLT and runs the batch
func (s *Service) collect(ctx context.Context, h *hit, scope types.DiagnosticScope) ([]types.Reply, error) {
	drv, err := s.newDriver(h.target, h.cred, s.timeouts)
	if err != nil {
		return nil, err
	}
	if err := drv.Connect(ctx); err != nil {
		return nil, err
	}
	defer drv.Disconnect(context.Background())

	return drv.CollectDiagnostics(ctx, h.match.Interface, scope)
}

func (s *Service) statusTable(ctx context.Context) *status.Table {
	entries, err := s.statuses.StatusEntries(ctx)
	if err != nil {
		logging.Logger.WithError(err).Warn("status table unavailable, statuses stay unclassified")
		return nil
	}
	return status.NewTable(entries)
}

// RawCheck reads the optical levels of one interface on one OLT and returns
// the replies unparsed
func (s *Service) RawCheck(ctx context.Context, address, iface string) (replies []types.Reply, err error) {
	start := s.now()
	defer func() { s.finish(OpRawCheck, start, err) }()

	drv, _, err := s.single(ctx, address, iface)
	if err != nil {
		return nil, err
	}
	if err := drv.Connect(ctx); err != nil {
		return nil, err
	}
	defer drv.Disconnect(context.Background())

	replies, err = drv.ReadOptical(ctx, iface)
	if err != nil {
		return nil, err
	}

	s.record(ctx, OpRawCheck, fmt.Sprintf("raw optical check of %s on %s", iface, address))
	return replies, nil
}

// DeleteTerminal removes the terminal registration behind iface on one OLT
func (s *Service) DeleteTerminal(ctx context.Context, address, iface string) (err error) {
	start := s.now()
	defer func() { s.finish(OpDelete, start, err) }()

	drv, target, err := s.single(ctx, address, iface)
	if err != nil {
		return err
	}
	if err := removable(target.Vendor); err != nil {
		return err
	}
	if err := drv.Connect(ctx); err != nil {
		return err
	}
	defer drv.Disconnect(context.Background())

	_, err = drv.RemoveTerminal(ctx, iface)
	outcome := "removed"
	if err != nil {
		outcome = fmt.Sprintf("removal failed (code=%s recoverable=%t): %v", zte.GetErrorCode(err), zte.IsRecoverable(err), err)
	}
	s.record(ctx, OpDelete, fmt.Sprintf("terminal %s on %s %s", iface, address, outcome))

	return err
}

// removable rejects vendors whose adapters cannot remove terminals
func removable(vendor types.Vendor) error {
	if vendor == "" {
		vendor = types.VendorZTE
	}
	caps, ok := onulocator.GetVendorCapabilities(vendor)
	if !ok || !caps.SupportsDelete {
		return fmt.Errorf("%w: %s does not support terminal removal", types.ErrUnsupportedVendor, vendor)
	}
	return nil
}

// single prepares a driver for an operation on one OLT. The interface is
// validated before any network activity.
func (s *Service) single(ctx context.Context, address, iface string) (types.OLTDriver, types.Target, error) {
	if address == "" || iface == "" {
		return nil, types.Target{}, fmt.Errorf("%w: address and interface are required", types.ErrInvalidInterface)
	}

	target, ok, err := s.inventory.TargetByAddress(ctx, address)
	if err != nil {
		return nil, types.Target{}, fmt.Errorf("failed to read inventory: %w", err)
	}
	if !ok {
		target = types.Target{Address: address}
	}

	fallback, err := s.creds.DefaultCredential(ctx)
	if err != nil {
		return nil, target, fmt.Errorf("failed to read default credential: %w", err)
	}
	cred, ok := credentials.Resolve(target, fallback)
	if !ok {
		return nil, target, fmt.Errorf("%s: %w", address, types.ErrMissingCredentials)
	}

	drv, err := s.newDriver(target, cred, s.timeouts)
	if err != nil {
		return nil, target, err
	}
	if err := drv.ValidateInterface(iface); err != nil {
		return nil, target, err
	}
	return drv, target, nil
}

func (s *Service) record(ctx context.Context, action, details string) {
	if s.audit == nil {
		return
	}
	event := types.AuditEvent{
		Operator:  OperatorFrom(ctx),
		Action:    action,
		Details:   details,
		Timestamp: s.now(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		logging.WithOperation(action).WithError(err).Warn("failed to record audit event")
	}
}

func (s *Service) finish(op string, start time.Time, err error) {
	result := metrics.ResultOK
	switch {
	case errors.Is(err, types.ErrNotFound):
		result = metrics.ResultNotFound
	case err != nil:
		result = metrics.ResultError
	}
	metrics.RecordOperation(op, result, s.now().Sub(start))
}
