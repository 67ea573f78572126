package types

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is
var (
	ErrInvalidSerial      = errors.New("invalid serial number")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrConnect            = errors.New("connect failed")
	ErrTimeout            = errors.New("timed out")
	ErrProtocolMismatch   = errors.New("expected prompt not seen")
	ErrAuthFailed         = errors.New("login rejected")
	ErrNotReady           = errors.New("session not ready")
	ErrNotFound           = errors.New("terminal not found")
	ErrNoResult           = errors.New("command batch produced no result")
	ErrInvalidInterface   = errors.New("invalid interface identifier")
	ErrCommandRejected    = errors.New("command rejected by device")
	ErrUnsupportedVendor  = errors.New("unsupported vendor")
)

// SessionError records which session step failed on which device
type SessionError struct {
	Address string
	State   string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Address, e.State, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError wraps err with the device address and session state
func NewSessionError(address, state string, err error) *SessionError {
	return &SessionError{Address: address, State: state, Err: err}
}
