package cli

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/nanoncore/nano-onulocator/logging"
	"github.com/nanoncore/nano-onulocator/metrics"
	"github.com/nanoncore/nano-onulocator/types"
)

const (
	defaultTelnetPort = 23
	defaultSSHPort    = 22
)

// Driver implements types.Driver and types.CLIExecutor over an interactive
// telnet or SSH command line
type Driver struct {
	config *types.EquipmentConfig
	dial   DialFunc

	mu        sync.Mutex
	session   *ExpectSession
	stopWatch func() bool
}

// Option configures a Driver
type Option func(*Driver)

// WithDialer replaces the network dialer
func WithDialer(dial DialFunc) Option {
	return func(d *Driver) {
		if dial != nil {
			d.dial = dial
		}
	}
}

// NewDriver creates a new CLI driver
func NewDriver(config *types.EquipmentConfig, opts ...Option) (*Driver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	if config.Vendor == "" {
		config.Vendor = types.VendorZTE
	}

	if config.Protocol == "" {
		config.Protocol = types.ProtocolTelnet
	}

	if config.Port == 0 {
		switch config.Protocol {
		case types.ProtocolSSH:
			config.Port = defaultSSHPort
		default:
			config.Port = defaultTelnetPort
		}
	}

	config.Timeouts = config.Timeouts.WithDefaults()

	d := &Driver{
		config: config,
		dial:   defaultDial,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the equipment configuration the driver was built with
func (d *Driver) Config() *types.EquipmentConfig {
	return d.config
}

// Connect opens the transport and logs in. The session is torn down when ctx
// is done.
func (d *Driver) Connect(ctx context.Context) error {
	vendor := string(d.config.Vendor)

	cred := types.Credential{Username: d.config.Username, Password: d.config.Password}
	if !cred.Complete() {
		metrics.RecordSession(vendor, metrics.OutcomeSkipped)
		return fmt.Errorf("%s: %w", d.config.Address, types.ErrMissingCredentials)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return nil
	}

	target := net.JoinHostPort(d.config.Address, strconv.Itoa(d.config.Port))
	log := logging.WithDevice(d.config.Address).WithField("protocol", d.config.Protocol)
	log.Debug("connecting")

	var (
		exp *ExpectSessionConfig
		err error
	)
	switch d.config.Protocol {
	case types.ProtocolTelnet:
		exp, err = d.spawn(ctx, target, false)
	case types.ProtocolSSH:
		exp, err = d.spawn(ctx, target, true)
	default:
		err = fmt.Errorf("unsupported protocol %q", d.config.Protocol)
	}
	if err != nil {
		metrics.RecordSession(vendor, metrics.OutcomeFailed)
		return types.NewSessionError(d.config.Address, string(StateConnecting), err)
	}

	// Canceling ctx aborts the login and later ends the session
	stop := context.AfterFunc(ctx, func() {
		_ = exp.Transport.Close()
	})

	session, err := NewExpectSession(ctx, *exp)
	if err != nil {
		stop()
		metrics.RecordSession(vendor, metrics.OutcomeFailed)
		log.WithError(err).Debug("login failed")
		return err
	}

	d.session = session
	d.stopWatch = stop
	metrics.RecordSession(vendor, metrics.OutcomeReady)
	log.WithField("privileged", session.Privileged()).Debug("session ready")

	return nil
}

func (d *Driver) spawn(ctx context.Context, target string, ssh bool) (*ExpectSessionConfig, error) {
	cfg := &ExpectSessionConfig{
		Address:   d.config.Address,
		Vendor:    d.config.Vendor,
		Username:  d.config.Username,
		Password:  d.config.Password,
		Timeouts:  d.config.Timeouts,
		SkipLogin: ssh,
	}

	var err error
	if ssh {
		cfg.Expecter, cfg.Transport, err = spawnSSH(ctx, d.dial, target, d.config.Username, d.config.Password, d.config.Timeouts)
	} else {
		cfg.Expecter, cfg.Transport, err = spawnTelnet(ctx, d.dial, target, d.config.Timeouts)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Disconnect leaves the shell and closes the transport
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopWatch != nil {
		d.stopWatch()
		d.stopWatch = nil
	}
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	return err
}

// IsConnected returns true if the session accepts commands
func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session != nil && d.session.Ready()
}

// ExecCommand executes one command and returns its decoded output
func (d *Driver) ExecCommand(ctx context.Context, command types.Command) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.execLocked(ctx, command)
}

func (d *Driver) execLocked(ctx context.Context, command types.Command) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.session == nil || !d.session.Ready() {
		return "", fmt.Errorf("%s: %w", d.config.Address, types.ErrNotReady)
	}

	output, err := d.session.Execute(command)
	if err != nil {
		metrics.RecordCommand(metrics.ResultError)
		return "", fmt.Errorf("%s: %w", d.config.Address, err)
	}
	metrics.RecordCommand(metrics.ResultOK)

	return output, nil
}

// ExecCommands executes commands in order. Any failure discards every reply
// of the batch.
func (d *Driver) ExecCommands(ctx context.Context, commands []types.Command) ([]types.Reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	replies := make([]types.Reply, 0, len(commands))
	for _, cmd := range commands {
		output, err := d.execLocked(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("%w: command %q: %w", types.ErrNoResult, cmd.Text, err)
		}
		replies = append(replies, types.Reply{Command: cmd.Text, Key: cmd.Key, Output: output})
	}

	return replies, nil
}
