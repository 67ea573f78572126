package cli

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	expect "github.com/google/goexpect"
	"github.com/nanoncore/nano-onulocator/logging"
	"github.com/nanoncore/nano-onulocator/types"
	"github.com/nanoncore/nano-onulocator/vendors/common"
	"github.com/sirupsen/logrus"
)

// State is a step of the login/command state machine
type State string

const (
	StateConnecting       State = "connecting"
	StateAwaitingLogin    State = "awaiting-login-prompt"
	StateSubmitUsername   State = "submit-username"
	StateAwaitingPassword State = "awaiting-password-prompt"
	StateSubmitPassword   State = "submit-password"
	StateAwaitingShell    State = "awaiting-shell-prompt"
	StatePrivilegeCheck   State = "privilege-check"
	StateSessionTuning    State = "session-tuning"
	StateReady            State = "ready"
	StateClosing          State = "closing"
	StateClosed           State = "closed"
	StateFailed           State = "failed"
)

var (
	// LoginPromptPattern matches the username prompt at the end of the buffer
	LoginPromptPattern = regexp.MustCompile(`(?i)(?:login|username|user)\s*:\s*$`)

	// PasswordPromptPattern matches the password prompt at the end of the buffer
	PasswordPromptPattern = regexp.MustCompile(`(?i)password\s*:\s*$`)

	// LoginFailedPattern matches rejection text printed after a bad password
	LoginFailedPattern = regexp.MustCompile(`(?i)(?:incorrect|authentication fail|access denied|bad password|login fail)`)
)

// Prompts holds the shell prompt patterns of a vendor
type Prompts struct {
	Privileged   *regexp.Regexp
	Unprivileged *regexp.Regexp
}

// DefaultPrompts matches prompts like "OLT-01#", "ZXAN(config-if)#" or "OLT-01>"
var DefaultPrompts = Prompts{
	Privileged:   regexp.MustCompile(`[\w\-.\[\]()/:@]+#\s*$`),
	Unprivileged: regexp.MustCompile(`[\w\-.\[\]()/:@]+>\s*$`),
}

// VendorPrompts contains vendor-specific prompt patterns
var VendorPrompts = map[types.Vendor]Prompts{
	types.VendorZTE: DefaultPrompts,
}

// EnableCommands contains the privilege escalation command per vendor
var EnableCommands = map[types.Vendor]string{
	types.VendorZTE: "enable",
}

// TuningCommands disable paging and the idle timeout per vendor.
// Firmware revisions differ on the spelling, so both are sent.
var TuningCommands = map[types.Vendor][]string{
	types.VendorZTE: {"terminal length 0", "terminal-length 0", "idle-timeout 0"},
}

const exitCommand = "exit"

// ExpectSession drives one interactive session through login, privilege
// escalation and tuning, then runs commands until closed.
type ExpectSession struct {
	expecter   *expect.GExpect
	transport  *transport
	address    string
	vendor     types.Vendor
	prompts    Prompts
	promptRE   *regexp.Regexp
	timeouts   types.Timeouts
	state      State
	privileged bool
	log        *logrus.Entry
}

// ExpectSessionConfig holds configuration for creating an expect session
type ExpectSessionConfig struct {
	Expecter  *expect.GExpect
	Transport *transport
	Address   string
	Vendor    types.Vendor
	Username  string
	Password  string
	Timeouts  types.Timeouts

	// SkipLogin is set when the transport already authenticated (SSH).
	// A second login prompt is still answered if the device shows one.
	SkipLogin bool
}

// NewExpectSession logs in and prepares the session for commands. On any
// failure the transport is closed before returning.
func NewExpectSession(ctx context.Context, cfg ExpectSessionConfig) (*ExpectSession, error) {
	if cfg.Expecter == nil || cfg.Transport == nil {
		return nil, fmt.Errorf("expect session requires an expecter and a transport")
	}

	prompts, ok := VendorPrompts[cfg.Vendor]
	if !ok {
		prompts = DefaultPrompts
	}

	s := &ExpectSession{
		expecter:  cfg.Expecter,
		transport: cfg.Transport,
		address:   cfg.Address,
		vendor:    cfg.Vendor,
		prompts:   prompts,
		promptRE:  prompts.Privileged,
		timeouts:  cfg.Timeouts,
		state:     StateConnecting,
		log:       logging.WithDevice(cfg.Address),
	}

	if err := s.login(ctx, cfg.Username, cfg.Password, cfg.SkipLogin); err != nil {
		failedIn := s.state
		s.setState(StateFailed)
		_ = s.Close()
		return nil, types.NewSessionError(s.address, string(failedIn), err)
	}

	s.setState(StateSessionTuning)
	s.tune()

	s.setState(StateReady)
	return s, nil
}

func (s *ExpectSession) setState(state State) {
	s.state = state
	s.log.WithField("state", state).Debug("session state")
}

// enter moves to state unless the caller already gave up
func (s *ExpectSession) enter(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setState(state)
	return nil
}

func (s *ExpectSession) send(text string) error {
	if err := s.expecter.Send(text + "\n"); err != nil {
		return fmt.Errorf("%w: send: %v", types.ErrTimeout, err)
	}
	return nil
}

// login runs the states from AwaitingLoginPrompt through PrivilegeCheck
func (s *ExpectSession) login(ctx context.Context, username, password string, skipLogin bool) error {
	if !skipLogin {
		if err := s.enter(ctx, StateAwaitingLogin); err != nil {
			return err
		}
		if _, _, err := s.expecter.Expect(LoginPromptPattern, s.timeouts.Login); err != nil {
			return fmt.Errorf("%w: login prompt: %v", types.ErrProtocolMismatch, err)
		}
		if err := s.submitCredentials(ctx, username, password); err != nil {
			return err
		}
	}

	if err := s.enter(ctx, StateAwaitingShell); err != nil {
		return err
	}
	idx, err := s.awaitShell()
	if err != nil {
		return err
	}

	if idx == shellLogin && skipLogin {
		// Device asks for a second login inside the SSH channel
		if err := s.submitCredentials(ctx, username, password); err != nil {
			return err
		}
		if err := s.enter(ctx, StateAwaitingShell); err != nil {
			return err
		}
		if idx, err = s.awaitShell(); err != nil {
			return err
		}
	}

	switch idx {
	case shellPrivileged:
		s.privileged = true
		s.promptRE = s.prompts.Privileged
	case shellUnprivileged:
		s.promptRE = s.prompts.Unprivileged
	default:
		return types.ErrAuthFailed
	}

	if err := s.enter(ctx, StatePrivilegeCheck); err != nil {
		return err
	}
	if !s.privileged {
		s.escalate(password)
	}
	return nil
}

// Outcomes of the wait after the password
const (
	shellPrivileged = iota
	shellUnprivileged
	shellLogin
	shellPassword
	shellRejected
)

// awaitShell waits for a shell prompt after the password. Rejection text
// only fails the login when the device prompts for credentials again or no
// shell follows it: legal banners often carry the same words.
func (s *ExpectSession) awaitShell() (int, error) {
	cases := []expect.Caser{
		shellPrivileged:   &expect.Case{R: s.prompts.Privileged},
		shellUnprivileged: &expect.Case{R: s.prompts.Unprivileged},
		shellLogin:        &expect.Case{R: LoginPromptPattern},
		shellPassword:     &expect.Case{R: PasswordPromptPattern},
		shellRejected:     &expect.Case{R: LoginFailedPattern},
	}
	_, _, idx, err := s.expecter.ExpectSwitchCase(cases, s.timeouts.Shell)
	if err != nil {
		return 0, fmt.Errorf("%w: shell prompt: %v", types.ErrProtocolMismatch, err)
	}
	if idx != shellRejected {
		return idx, nil
	}

	_, _, idx, err = s.expecter.ExpectSwitchCase(cases[:shellRejected], s.timeouts.Shell)
	if err != nil {
		return shellRejected, nil
	}
	return idx, nil
}

func (s *ExpectSession) submitCredentials(ctx context.Context, username, password string) error {
	if err := s.enter(ctx, StateSubmitUsername); err != nil {
		return err
	}
	if err := s.send(username); err != nil {
		return err
	}

	if err := s.enter(ctx, StateAwaitingPassword); err != nil {
		return err
	}
	if _, _, err := s.expecter.Expect(PasswordPromptPattern, s.timeouts.Login); err != nil {
		return fmt.Errorf("%w: password prompt: %v", types.ErrProtocolMismatch, err)
	}

	if err := s.enter(ctx, StateSubmitPassword); err != nil {
		return err
	}
	return s.send(password)
}

// escalate tries to reach the privileged prompt. Failure is not fatal: the
// session keeps whatever privilege it has.
func (s *ExpectSession) escalate(password string) {
	cmd, ok := EnableCommands[s.vendor]
	if !ok {
		cmd = "enable"
	}
	if err := s.send(cmd); err != nil {
		s.log.WithError(err).Debug("privilege escalation not sent")
		return
	}

	cases := []expect.Caser{
		&expect.Case{R: s.prompts.Privileged},
		&expect.Case{R: PasswordPromptPattern},
		&expect.Case{R: s.prompts.Unprivileged},
	}
	_, _, idx, err := s.expecter.ExpectSwitchCase(cases, s.timeouts.Enable)
	if err == nil && idx == 1 {
		if err = s.send(password); err == nil {
			cases = []expect.Caser{cases[0], cases[2]}
			_, _, idx, err = s.expecter.ExpectSwitchCase(cases, s.timeouts.Enable)
			if idx == 1 {
				idx = 2
			}
		}
	}
	if err != nil || idx != 0 {
		s.log.WithError(err).Debug("privilege escalation failed, continuing unprivileged")
		return
	}

	s.privileged = true
	s.promptRE = s.prompts.Privileged
}

// tune disables paging and the idle timeout; replies are discarded
func (s *ExpectSession) tune() {
	cmds, ok := TuningCommands[s.vendor]
	if !ok {
		cmds = []string{"terminal length 0"}
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			s.log.WithError(err).Debug("tuning command not sent")
			return
		}
		if _, _, err := s.expecter.Expect(s.promptRE, s.timeouts.Tuning); err != nil {
			s.log.WithField("command", cmd).Debug("no prompt after tuning command")
		}
	}
}

// Ready returns true while the session accepts commands
func (s *ExpectSession) Ready() bool {
	return s.state == StateReady && s.transport.Open()
}

// Privileged reports whether escalation reached the privileged prompt
func (s *ExpectSession) Privileged() bool {
	return s.privileged
}

// State returns the current state
func (s *ExpectSession) State() State {
	return s.state
}

// Execute sends a command and waits for the prompt, returning the output
func (s *ExpectSession) Execute(command types.Command) (string, error) {
	if !s.Ready() {
		return "", types.ErrNotReady
	}

	if err := s.send(command.Text); err != nil {
		return "", err
	}

	timeout := command.Timeout
	if timeout == 0 {
		timeout = s.timeouts.Command
	}

	output, _, err := s.expecter.Expect(s.promptRE, timeout)
	if err != nil {
		return "", fmt.Errorf("%w: waiting for prompt after command %q: %v", types.ErrTimeout, command.Text, err)
	}

	return s.cleanOutput(output, command.Text), nil
}

// cleanOutput decodes the reply and removes the command echo and trailing prompt
func (s *ExpectSession) cleanOutput(output, command string) string {
	lines := common.Lines(common.DecodeOutput(output))

	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start < end && strings.Contains(lines[start], command) {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if end > start && s.isPrompt(strings.TrimSpace(lines[end-1])) {
		end--
	}

	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

func (s *ExpectSession) isPrompt(line string) bool {
	return s.prompts.Privileged.MatchString(line) || s.prompts.Unprivileged.MatchString(line)
}

// Close sends exit while the transport is open and closes it. Safe to call
// more than once; the transport is closed exactly once.
func (s *ExpectSession) Close() error {
	if s.state == StateClosed {
		return nil
	}
	if s.state != StateFailed {
		s.setState(StateClosing)
	}
	if s.transport.Open() {
		err := s.expecter.Send(exitCommand + "\n")
		if err == nil && s.state == StateClosing {
			// Give the device a moment to read exit and hang up
			select {
			case <-s.transport.done:
			case <-time.After(s.timeouts.Tuning):
			}
		}
	}
	err := s.transport.Close()
	s.setState(StateClosed)
	return err
}
