package zte

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nanoncore/nano-onulocator/types"
)

// ErrorCode represents a normalized error code for ZTE CLI replies
type ErrorCode string

const (
	ErrONUNotFound    ErrorCode = "ONU_NOT_FOUND"
	ErrNoInformation  ErrorCode = "NO_INFORMATION"
	ErrPortNotFound   ErrorCode = "PORT_NOT_FOUND"
	ErrUnknownCommand ErrorCode = "UNKNOWN_CMD"
	ErrPermission     ErrorCode = "PERMISSION"
	ErrConfigLocked   ErrorCode = "CONFIG_LOCKED"
	ErrUnknown        ErrorCode = "UNKNOWN"
)

// ErrorMapping maps a ZTE error pattern to a human-readable message
type ErrorMapping struct {
	Pattern     string
	Code        ErrorCode
	Human       string
	Action      string
	Recoverable bool
}

// zteErrorPatterns is checked in order; more specific patterns come first
var zteErrorPatterns = []ErrorMapping{
	{
		Pattern: "onu does not exist",
		Code:    ErrONUNotFound,
		Human:   "ONU is not registered on this interface",
		Action:  "Locate the serial again, the ONU may have moved",
	},
	{
		Pattern: "no related information",
		Code:    ErrNoInformation,
		Human:   "The OLT has no data for this query",
		Action:  "Verify the interface and that the ONU is online",
	},
	{
		Pattern: "interface does not exist",
		Code:    ErrPortNotFound,
		Human:   "PON interface does not exist",
		Action:  "Verify rack/shelf/slot/port of the interface",
	},
	{
		Pattern: "invalid input",
		Code:    ErrUnknownCommand,
		Human:   "Invalid command syntax",
		Action:  "Check OLT firmware version and command parameters",
	},
	{
		Pattern: "incomplete command",
		Code:    ErrUnknownCommand,
		Human:   "Command is incomplete",
		Action:  "Check command parameters",
	},
	{
		Pattern: "no permission",
		Code:    ErrPermission,
		Human:   "User privilege is too low for this command",
		Action:  "Use an account with configuration rights",
	},
	{
		Pattern:     "configuration is locked",
		Code:        ErrConfigLocked,
		Human:       "Another session holds the configuration",
		Action:      "Retry when the other session finishes",
		Recoverable: true,
	},
}

// TranslatedError represents a device error reply
type TranslatedError struct {
	Line        string
	Code        ErrorCode
	Human       string
	Action      string
	Recoverable bool
}

func (e *TranslatedError) Error() string {
	return fmt.Sprintf("%v: [%s] %s: %q (action: %s)", types.ErrCommandRejected, e.Code, e.Human, e.Line, e.Action)
}

// Unwrap lets callers match types.ErrCommandRejected
func (e *TranslatedError) Unwrap() error {
	return types.ErrCommandRejected
}

// CheckOutput returns a TranslatedError when a reply carries a device error
// line (%Error or %Code). Known patterns get a code and action.
func CheckOutput(output string) error {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "%Error") && !strings.HasPrefix(line, "%Code") {
			continue
		}

		lower := strings.ToLower(line)
		for _, m := range zteErrorPatterns {
			if strings.Contains(lower, m.Pattern) {
				return &TranslatedError{
					Line:        line,
					Code:        m.Code,
					Human:       m.Human,
					Action:      m.Action,
					Recoverable: m.Recoverable,
				}
			}
		}
		return &TranslatedError{
			Line:   line,
			Code:   ErrUnknown,
			Human:  "Device rejected the command",
			Action: "Check OLT logs for details",
		}
	}
	return nil
}

// IsRecoverable returns true if err wraps a device error that can be retried
func IsRecoverable(err error) bool {
	var te *TranslatedError
	if errors.As(err, &te) {
		return te.Recoverable
	}
	return false
}

// GetErrorCode returns the code of the device error wrapped by err
func GetErrorCode(err error) ErrorCode {
	var te *TranslatedError
	if errors.As(err, &te) {
		return te.Code
	}
	return ErrUnknown
}
