package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	expect "github.com/google/goexpect"
	"github.com/nanoncore/nano-onulocator/types"
	"github.com/ziutek/telnet"
	"golang.org/x/crypto/ssh"
)

// DialFunc opens the raw byte stream to a device
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// defaultDial is net.Dialer.DialContext; the connect timeout comes from the context
func defaultDial(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// transport owns the live connection and guarantees it is closed exactly once
type transport struct {
	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
	closeFn   func() error
	err       error
}

func newTransport(closeFn func() error) *transport {
	return &transport{done: make(chan struct{}), closeFn: closeFn}
}

// Close tears the connection down; later calls return the first result
func (t *transport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)
		t.err = t.closeFn()
	})
	return t.err
}

// Open reports whether Close has not been called yet
func (t *transport) Open() bool {
	return !t.closed.Load()
}

// closingReader closes the transport on the first read error so pending
// expects fail fast when the device drops the connection
type closingReader struct {
	r  io.Reader
	tr *transport
}

func (c closingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil {
		_ = c.tr.Close()
	}
	return n, err
}

func expectOptions(timeouts types.Timeouts) []expect.Option {
	return []expect.Option{
		expect.Verbose(false),
		expect.CheckDuration(100 * time.Millisecond),
		expect.SendTimeout(timeouts.Send),
	}
}

// spawnTelnet dials address and spawns an expecter over a telnet connection
func spawnTelnet(ctx context.Context, dial DialFunc, address string, timeouts types.Timeouts) (*expect.GExpect, *transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeouts.Connect)
	defer cancel()

	raw, err := dial(dialCtx, "tcp", address)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", types.ErrConnect, err)
	}

	conn, err := telnet.NewConn(raw)
	if err != nil {
		raw.Close()
		return nil, nil, fmt.Errorf("%w: telnet: %v", types.ErrConnect, err)
	}

	tr := newTransport(conn.Close)
	exp, _, err := expect.SpawnGeneric(&expect.GenOptions{
		In:  conn,
		Out: closingReader{r: conn, tr: tr},
		Wait: func() error {
			<-tr.done
			return nil
		},
		Close: tr.Close,
		Check: tr.Open,
	}, timeouts.Command, expectOptions(timeouts)...)
	if err != nil {
		tr.Close()
		return nil, nil, fmt.Errorf("%w: failed to spawn telnet expect session: %v", types.ErrConnect, err)
	}

	return exp, tr, nil
}

// spawnSSH dials address, authenticates and spawns an expecter over an SSH shell
func spawnSSH(ctx context.Context, dial DialFunc, address, username, password string, timeouts types.Timeouts) (*expect.GExpect, *transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeouts.Connect)
	defer cancel()

	raw, err := dial(dialCtx, "tcp", address)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", types.ErrConnect, err)
	}

	// Some devices require keyboard-interactive instead of password
	keyboardInteractive := ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	})

	sshConfig := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			keyboardInteractive,
		},
		Timeout:         timeouts.Login,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // OLT host keys are not inventoried
	}

	_ = raw.SetDeadline(time.Now().Add(timeouts.Login))
	c, chans, reqs, err := ssh.NewClientConn(raw, address, sshConfig)
	if err != nil {
		raw.Close()
		return nil, nil, fmt.Errorf("%w: ssh handshake: %v", types.ErrAuthFailed, err)
	}
	_ = raw.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("%w: ssh session: %v", types.ErrConnect, err)
	}
	tr := newTransport(func() error {
		_ = session.Close()
		// The connection is already gone when the device hung up first
		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	})

	stdin, stdout, err := startShell(session)
	if err != nil {
		tr.Close()
		return nil, nil, fmt.Errorf("%w: ssh shell: %v", types.ErrConnect, err)
	}

	exp, _, err := expect.SpawnGeneric(&expect.GenOptions{
		In:  stdin,
		Out: closingReader{r: stdout, tr: tr},
		Wait: func() error {
			<-tr.done
			return nil
		},
		Close: tr.Close,
		Check: tr.Open,
	}, timeouts.Command, expectOptions(timeouts)...)
	if err != nil {
		tr.Close()
		return nil, nil, fmt.Errorf("%w: failed to spawn SSH expect session: %v", types.ErrConnect, err)
	}

	return exp, tr, nil
}

// startShell requests a terminal and starts the remote shell
func startShell(session *ssh.Session) (io.WriteCloser, io.Reader, error) {
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("vt100", 0, 512, modes); err != nil {
		return nil, nil, err
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := session.Shell(); err != nil {
		return nil, nil, err
	}
	return stdin, stdout, nil
}
