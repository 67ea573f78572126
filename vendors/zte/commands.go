package zte

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nanoncore/nano-onulocator/types"
)

// Interface prefixes used by ZTE C300/C320 firmware
const (
	ONUPrefix = "gpon-onu_"
	OLTPrefix = "gpon-olt_"
)

// onuInterfacePattern matches gpon-onu_<rack/shelf/slot...>:<index>
var onuInterfacePattern = regexp.MustCompile(`^gpon-onu_(\d+(?:/\d+)*):(\d+)$`)

// ONUInterface is a parsed gpon-onu_ identifier
type ONUInterface struct {
	Port  string // 1/2/1
	Index string // 5
}

// ParseInterface splits a terminal interface identifier
func ParseInterface(iface string) (ONUInterface, error) {
	m := onuInterfacePattern.FindStringSubmatch(strings.TrimSpace(iface))
	if m == nil {
		return ONUInterface{}, fmt.Errorf("%w: %q", types.ErrInvalidInterface, iface)
	}
	return ONUInterface{Port: m[1], Index: m[2]}, nil
}

// String returns the gpon-onu_ form
func (i ONUInterface) String() string {
	return ONUPrefix + i.Port + ":" + i.Index
}

// Short returns the port:index form used as the row key of the state table
func (i ONUInterface) Short() string {
	return i.Port + ":" + i.Index
}

// OLT returns the head-end interface serving the terminal
func (i ONUInterface) OLT() string {
	return OLTPrefix + i.Port
}

// OLTInterface derives the head-end interface from a terminal interface by
// prefix substitution, dropping the index
func OLTInterface(iface string) string {
	s := strings.Replace(iface, ONUPrefix, OLTPrefix, 1)
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return s
}

// ShortInterface strips the terminal prefix
func ShortInterface(iface string) string {
	return strings.TrimPrefix(iface, ONUPrefix)
}

// SearchCommand returns the serial lookup command
func SearchCommand(serial string) string {
	return "show gpon onu by sn " + serial
}

// ParseSearch returns the first interface token of a search reply, ignoring
// the echoed command line. Nil means the serial is not registered.
func ParseSearch(output, serial string) *types.TerminalMatch {
	echo := SearchCommand(serial)
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.Contains(trimmed, ONUPrefix) || strings.HasPrefix(trimmed, echo) {
			continue
		}
		for _, field := range strings.Fields(trimmed) {
			if strings.HasPrefix(field, ONUPrefix) {
				return &types.TerminalMatch{Interface: field, RawLine: trimmed}
			}
		}
	}
	return nil
}

// DiagnosticCommands builds the diagnostics batch for a terminal
func DiagnosticCommands(iface string, scope types.DiagnosticScope, timeouts types.Timeouts) []types.Command {
	commands := []types.Command{
		{Text: "show gpon onu detail-info " + iface, Key: types.KeyDetail, Timeout: timeouts.LongCommand},
		{Text: "show pon power onu-rx " + iface, Key: types.KeyONURx, Timeout: timeouts.Command},
		{Text: "show pon power olt-rx " + iface, Key: types.KeyOLTRx, Timeout: timeouts.Command},
	}
	if scope != types.ScopeSignal {
		return commands
	}

	olt := OLTInterface(iface)
	return append(commands,
		types.Command{Text: "show pon power onu-tx " + iface, Key: types.KeyONUTx, Timeout: timeouts.Command},
		types.Command{Text: "show pon power olt-tx " + olt, Key: types.KeyOLTTx, Timeout: timeouts.Command},
		types.Command{Text: "show gpon onu state " + olt, Key: types.KeyState, Timeout: timeouts.LongCommand},
	)
}

// OpticalCommands builds the raw optical check for a terminal
func OpticalCommands(iface string, timeouts types.Timeouts) []types.Command {
	return []types.Command{
		{Text: "show pon power onu-rx " + iface, Key: types.KeyONURx, Timeout: timeouts.Command},
		{Text: "show pon power onu-tx " + iface, Key: types.KeyONUTx, Timeout: timeouts.Command},
	}
}

// RemoveCommands builds the configuration sequence deleting a terminal
func RemoveCommands(i ONUInterface, timeouts types.Timeouts) []types.Command {
	return []types.Command{
		{Text: "conf t", Timeout: timeouts.Command},
		{Text: "interface " + i.OLT(), Timeout: timeouts.Command},
		{Text: "no onu " + i.Index, Timeout: timeouts.Command},
		{Text: "exit", Timeout: timeouts.Command},
	}
}
