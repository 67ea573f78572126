package types

import (
	"context"
	"time"
)

// Protocol represents the transport used to reach the OLT command line
type Protocol string

const (
	ProtocolTelnet Protocol = "telnet"
	ProtocolSSH    Protocol = "ssh"
)

// Vendor represents the OLT vendor dialect
type Vendor string

const (
	VendorZTE Vendor = "zte"
)

// OpticalSentinel is reported for optical levels that could not be parsed
const OpticalSentinel = -99.9

const (
	// UnknownValue is the default for the status token
	UnknownValue = "Unknown"

	// NotAvailable is the default for free-text diagnostic fields
	NotAvailable = "N/A"

	// DefaultColor is the color of status codes missing from the status table
	DefaultColor = "gray"
)

// Target is one OLT from the inventory
type Target struct {
	// Address is the management IP/hostname
	Address string `json:"address"`

	// Name is the display name of the device
	Name string `json:"name"`

	// Username is the device-level username (optional)
	Username string `json:"username,omitempty"`

	// Password is the device-level password (optional)
	Password string `json:"-"`

	// Vendor selects the command dialect (defaults to zte)
	Vendor Vendor `json:"vendor,omitempty"`

	// Protocol selects the transport (defaults to telnet)
	Protocol Protocol `json:"protocol,omitempty"`

	// Port overrides the protocol default port
	Port int `json:"port,omitempty"`
}

// Credential is a username/password pair
type Credential struct {
	Username string
	Password string
}

// Complete returns true if both fields are present
func (c Credential) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// Timeouts is the per I/O step timeout policy of a session
type Timeouts struct {
	// Connect bounds the transport dial
	Connect time.Duration `mapstructure:"connect"`

	// Login bounds the wait for the login and password prompts
	Login time.Duration `mapstructure:"login"`

	// Shell bounds the wait for the shell prompt after the password
	Shell time.Duration `mapstructure:"shell"`

	// Enable bounds the privilege escalation step
	Enable time.Duration `mapstructure:"enable"`

	// Tuning bounds each pagination/idle-timeout command
	Tuning time.Duration `mapstructure:"tuning"`

	// Command is the default per-command read timeout
	Command time.Duration `mapstructure:"command"`

	// LongCommand is used for commands producing large tables
	LongCommand time.Duration `mapstructure:"long_command"`

	// Send bounds a single write to the transport
	Send time.Duration `mapstructure:"send"`
}

// DefaultTimeouts returns the default timeout policy
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:     10 * time.Second,
		Login:       10 * time.Second,
		Shell:       5 * time.Second,
		Enable:      3 * time.Second,
		Tuning:      2 * time.Second,
		Command:     10 * time.Second,
		LongCommand: 15 * time.Second,
		Send:        5 * time.Second,
	}
}

// WithDefaults fills zero values from DefaultTimeouts
func (t Timeouts) WithDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Connect == 0 {
		t.Connect = d.Connect
	}
	if t.Login == 0 {
		t.Login = d.Login
	}
	if t.Shell == 0 {
		t.Shell = d.Shell
	}
	if t.Enable == 0 {
		t.Enable = d.Enable
	}
	if t.Tuning == 0 {
		t.Tuning = d.Tuning
	}
	if t.Command == 0 {
		t.Command = d.Command
	}
	if t.LongCommand == 0 {
		t.LongCommand = d.LongCommand
	}
	if t.Send == 0 {
		t.Send = d.Send
	}
	return t
}

// EquipmentConfig contains everything needed to open one session to one OLT
type EquipmentConfig struct {
	// Name is the display name of the device
	Name string

	// Vendor is the equipment vendor
	Vendor Vendor

	// Protocol is the transport
	Protocol Protocol

	// Address is the management IP/hostname
	Address string

	// Port is the management port (if not default)
	Port int

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Timeouts is the per-step timeout policy
	Timeouts Timeouts
}

// Command is one line sent to the device
type Command struct {
	// Text is the command line without terminator
	Text string

	// Timeout overrides the session default read timeout when non-zero
	Timeout time.Duration

	// Key labels the reply for the caller (e.g. which diagnostics section it feeds)
	Key string
}

// Reply keys of the diagnostics batch; extractor rules select replies by key
const (
	KeySearch = "search"
	KeyDetail = "detail"
	KeyONURx  = "onu-rx"
	KeyOLTRx  = "olt-rx"
	KeyONUTx  = "onu-tx"
	KeyOLTTx  = "olt-tx"
	KeyState  = "state"
)

// Reply is the decoded output of one command
type Reply struct {
	Command string `json:"command"`
	Key     string `json:"key,omitempty"`
	Output  string `json:"output"`
}

// TerminalMatch is what a vendor adapter finds in a search reply
type TerminalMatch struct {
	Interface string
	RawLine   string
}

// TerminalLocation identifies the OLT interface currently serving a terminal
type TerminalLocation struct {
	DeviceAddress string `json:"device_address"`
	DeviceName    string `json:"device_name"`
	Interface     string `json:"interface"`
	RawLine       string `json:"raw_line"`
}

// OpticalLevels are receive/transmit levels in dBm on both ends of the link
type OpticalLevels struct {
	RxONU float64 `json:"rx_onu"`
	TxONU float64 `json:"tx_onu"`
	RxOLT float64 `json:"rx_olt"`
	TxOLT float64 `json:"tx_olt"`
}

// Diagnostics is the structured view of a terminal
type Diagnostics struct {
	Status      string        `json:"status"`
	Description string        `json:"status_description"`
	Color       string        `json:"status_color"`
	Name        string        `json:"name"`
	Distance    string        `json:"distance"`
	Uptime      string        `json:"uptime"`
	Signals     OpticalLevels `json:"signals"`
}

// NewDiagnostics returns diagnostics with every field at its default
func NewDiagnostics() Diagnostics {
	return Diagnostics{
		Status:      UnknownValue,
		Description: UnknownValue,
		Color:       DefaultColor,
		Name:        NotAvailable,
		Distance:    NotAvailable,
		Uptime:      NotAvailable,
		Signals: OpticalLevels{
			RxONU: OpticalSentinel,
			TxONU: OpticalSentinel,
			RxOLT: OpticalSentinel,
			TxOLT: OpticalSentinel,
		},
	}
}

// LocateResult is returned by the locate and signal operations
type LocateResult struct {
	Serial      string           `json:"sn"`
	Location    TerminalLocation `json:"location"`
	Diagnostics Diagnostics      `json:"diagnostics"`

	// Raw holds the diagnostics batch replies for audit
	Raw []Reply `json:"raw,omitempty"`
}

// StatusEntry is one row of the status-code vocabulary
type StatusEntry struct {
	Code        string `json:"status_code"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// AuditEvent is a free-text action description handed to the audit sink
type AuditEvent struct {
	Operator  string
	Action    string
	Details   string
	Timestamp time.Time
}

// DiagnosticScope selects how broad the diagnostics batch is
type DiagnosticScope string

const (
	// ScopeLocate reads status and receive levels only
	ScopeLocate DiagnosticScope = "locate"

	// ScopeSignal adds transmit levels and the per-port state table
	ScopeSignal DiagnosticScope = "signal"
)

// Driver is the interface that all session drivers implement
type Driver interface {
	// Connect opens the transport and logs in
	Connect(ctx context.Context) error

	// Disconnect leaves the shell and closes the transport
	Disconnect(ctx context.Context) error

	// IsConnected returns true while the session accepts commands
	IsConnected() bool
}

// CLIExecutor is implemented by drivers that run line-mode commands
type CLIExecutor interface {
	// ExecCommand executes one command and returns its output
	ExecCommand(ctx context.Context, command Command) (string, error)

	// ExecCommands executes a batch in order; any failure discards the whole batch
	ExecCommands(ctx context.Context, commands []Command) ([]Reply, error)
}

// OLTDriver is a vendor adapter over a session driver
type OLTDriver interface {
	Driver

	// FindTerminal searches the device for a serial; nil when absent
	FindTerminal(ctx context.Context, serial string) (*TerminalMatch, error)

	// CollectDiagnostics runs the diagnostics batch for an interface
	CollectDiagnostics(ctx context.Context, iface string, scope DiagnosticScope) ([]Reply, error)

	// ReadOptical runs the raw optical check for an interface
	ReadOptical(ctx context.Context, iface string) ([]Reply, error)

	// RemoveTerminal deletes the terminal registration behind an interface
	RemoveTerminal(ctx context.Context, iface string) ([]Reply, error)

	// ValidateInterface checks an interface identifier without any I/O
	ValidateInterface(iface string) error
}
