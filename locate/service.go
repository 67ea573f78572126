// Package locate finds which OLT of the fleet serves a terminal and collects
// its diagnostics. It also runs the raw optical check and terminal removal
// against a single OLT.
package locate

import (
	"context"
	"fmt"
	"time"

	onulocator "github.com/nanoncore/nano-onulocator"
	"github.com/nanoncore/nano-onulocator/diagnostics"
	"github.com/nanoncore/nano-onulocator/types"
)

// DefaultConcurrency caps the number of simultaneous OLT sessions of a search
const DefaultConcurrency = 20

// Inventory reads the OLT fleet
type Inventory interface {
	Targets(ctx context.Context) ([]types.Target, error)

	// TargetByAddress returns false when the address is not inventoried
	TargetByAddress(ctx context.Context, address string) (types.Target, bool, error)
}

// CredentialSource reads the fleet-wide default login; missing fields are empty
type CredentialSource interface {
	DefaultCredential(ctx context.Context) (types.Credential, error)
}

// StatusSource reads the status-code vocabulary
type StatusSource interface {
	StatusEntries(ctx context.Context) ([]types.StatusEntry, error)
}

// AuditSink persists action descriptions
type AuditSink interface {
	Record(ctx context.Context, event types.AuditEvent) error
}

// DriverFactory builds an unconnected driver for a target
type DriverFactory func(target types.Target, cred types.Credential, timeouts types.Timeouts) (types.OLTDriver, error)

// Service runs locator operations. It holds no per-operation state and is
// safe for concurrent use.
type Service struct {
	inventory Inventory
	creds     CredentialSource
	statuses  StatusSource
	audit     AuditSink

	newDriver   DriverFactory
	concurrency int
	timeouts    types.Timeouts
	extractor   *diagnostics.Extractor
	now         func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithDriverFactory replaces how drivers are built
func WithDriverFactory(f DriverFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.newDriver = f
		}
	}
}

// WithConcurrency sets the session cap of a search
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTimeouts sets the per-step timeout policy
func WithTimeouts(t types.Timeouts) Option {
	return func(s *Service) {
		s.timeouts = t.WithDefaults()
	}
}

// WithExtractor replaces the diagnostics rules
func WithExtractor(e *diagnostics.Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithAuditSink records an event for every operation
func WithAuditSink(a AuditSink) Option {
	return func(s *Service) {
		s.audit = a
	}
}

// NewService creates a Service over the given collaborators
func NewService(inventory Inventory, creds CredentialSource, statuses StatusSource, opts ...Option) (*Service, error) {
	if inventory == nil || creds == nil || statuses == nil {
		return nil, fmt.Errorf("inventory, credential source and status source are required")
	}

	s := &Service{
		inventory:   inventory,
		creds:       creds,
		statuses:    statuses,
		newDriver:   DefaultDriverFactory,
		concurrency: DefaultConcurrency,
		timeouts:    types.DefaultTimeouts(),
		extractor:   diagnostics.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DefaultDriverFactory builds a driver from the vendor capability matrix
func DefaultDriverFactory(target types.Target, cred types.Credential, timeouts types.Timeouts) (types.OLTDriver, error) {
	return onulocator.NewDriver(target.Vendor, target.Protocol, &types.EquipmentConfig{
		Name:     target.Name,
		Address:  target.Address,
		Port:     target.Port,
		Username: cred.Username,
		Password: cred.Password,
		Timeouts: timeouts,
	})
}
