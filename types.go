package onulocator

// Re-export types from the types sub-package so callers can use
// onulocator.Target, onulocator.OLTDriver, etc.

import (
	"github.com/nanoncore/nano-onulocator/types"
)

// Type aliases
type (
	Protocol         = types.Protocol
	Vendor           = types.Vendor
	EquipmentConfig  = types.EquipmentConfig
	Timeouts         = types.Timeouts
	Target           = types.Target
	Credential       = types.Credential
	Driver           = types.Driver
	CLIExecutor      = types.CLIExecutor
	OLTDriver        = types.OLTDriver
	TerminalLocation = types.TerminalLocation
	Diagnostics      = types.Diagnostics
	LocateResult     = types.LocateResult
	StatusEntry      = types.StatusEntry
	Reply            = types.Reply
)

// Re-export constants
const (
	ProtocolTelnet = types.ProtocolTelnet
	ProtocolSSH    = types.ProtocolSSH

	VendorZTE = types.VendorZTE
)

// Re-export sentinel errors
var (
	ErrInvalidSerial      = types.ErrInvalidSerial
	ErrMissingCredentials = types.ErrMissingCredentials
	ErrNotFound           = types.ErrNotFound
	ErrInvalidInterface   = types.ErrInvalidInterface
	ErrCommandRejected    = types.ErrCommandRejected
	ErrUnsupportedVendor  = types.ErrUnsupportedVendor
)
