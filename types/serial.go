package types

import "fmt"

// SerialLength is the fixed length of a terminal serial number (4 vendor letters + 8 hex digits)
const SerialLength = 12

// ValidateSerial rejects serials of the wrong length before any network activity
func ValidateSerial(serial string) error {
	if len(serial) != SerialLength {
		return fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidSerial, serial, len(serial), SerialLength)
	}
	return nil
}
