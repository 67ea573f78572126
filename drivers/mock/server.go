package mock

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// ONU is a terminal registered on the simulated OLT
type ONU struct {
	Serial    string
	Interface string // gpon-onu_1/2/1:5
	Name      string
	Phase     string
	Distance  string
	Uptime    string
	RxONU     float64
	TxONU     float64
	RxOLT     float64
	TxOLT     float64
}

// Config describes the behavior of a simulated OLT
type Config struct {
	Hostname string
	Username string
	Password string

	// EnablePassword is asked after "enable" when StartUnprivileged is set.
	// Empty means enable succeeds without a password.
	EnablePassword string

	StartUnprivileged bool

	// SilentLogin accepts connections and never sends anything
	SilentLogin bool

	// CommandDelay is slept before every reply
	CommandDelay time.Duration

	// CloseOn drops the connection when a command starts with this prefix
	CloseOn string

	// Banner is written after a successful login, BannerDelay before the prompt
	Banner      string
	BannerDelay time.Duration

	// SSH serves the command line over SSH instead of telnet. Authentication
	// happens in the handshake unless SSHSecondLogin also asks for
	// credentials inside the channel.
	SSH            bool
	SSHSecondLogin bool

	ONUs []ONU
}

// Server simulates the command line of a ZTE GPON OLT over plain TCP or SSH.
type Server struct {
	cfg      Config
	listener net.Listener
	sshCfg   *ssh.ServerConfig

	mu       sync.Mutex
	onus     []ONU
	commands []string
	sessions int
	conns    map[net.Conn]struct{}
	closed   bool

	wg sync.WaitGroup
}

// NewServer starts a simulated OLT on a random loopback port
func NewServer(cfg Config) (*Server, error) {
	if cfg.Hostname == "" {
		cfg.Hostname = "ZXAN"
	}
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
	if cfg.Password == "" {
		cfg.Password = "admin"
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		listener: ln,
		onus:     append([]ONU(nil), cfg.ONUs...),
		conns:    make(map[net.Conn]struct{}),
	}
	if cfg.SSH {
		if s.sshCfg, err = newSSHConfig(cfg); err != nil {
			ln.Close()
			return nil, err
		}
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Addr returns the listen address (host:port)
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listen host
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listen port
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// Commands returns every command received after login, in order
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Sessions returns the number of accepted connections
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// ONUs returns the currently registered terminals
func (s *Server) ONUs() []ONU {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ONU(nil), s.onus...)
}

// Close stops the listener and drops every open connection
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.listener.Close()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.sessions++
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				conn.Close()
			}()
			if s.sshCfg != nil {
				s.handleSSH(conn)
				return
			}
			s.run(conn, true)
		}()
	}
}

type mode int

const (
	modeUser mode = iota
	modeExec
	modeConfig
	modeConfigIf
)

type session struct {
	srv   *Server
	r     *bufio.Reader
	w     io.Writer
	mode  mode
	oltIf string
}

// run drives one command line session; login asks for credentials first
func (s *Server) run(rw io.ReadWriter, login bool) {
	sess := &session{srv: s, r: bufio.NewReader(rw), w: rw}

	if s.cfg.SilentLogin {
		for {
			if _, err := sess.readLine(); err != nil {
				return
			}
		}
	}

	if login && !sess.login() {
		return
	}
	if s.cfg.Banner != "" {
		sess.write(s.cfg.Banner + "\r\n")
		time.Sleep(s.cfg.BannerDelay)
	}

	sess.mode = modeExec
	if s.cfg.StartUnprivileged {
		sess.mode = modeUser
	}
	sess.prompt()

	for {
		line, err := sess.readLine()
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		sess.write(line + "\r\n")

		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		if s.cfg.CloseOn != "" && strings.HasPrefix(line, s.cfg.CloseOn) {
			return
		}
		if s.cfg.CommandDelay > 0 {
			time.Sleep(s.cfg.CommandDelay)
		}

		if !sess.dispatch(line) {
			return
		}
		sess.prompt()
	}
}

func (sess *session) readLine() (string, error) {
	line, err := sess.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (sess *session) write(text string) {
	_, _ = sess.w.Write([]byte(text))
}

func (sess *session) prompt() {
	host := sess.srv.cfg.Hostname
	switch sess.mode {
	case modeUser:
		sess.write(host + ">")
	case modeConfig:
		sess.write(host + "(config)#")
	case modeConfigIf:
		sess.write(host + "(config-if)#")
	default:
		sess.write(host + "#")
	}
}

func (sess *session) login() bool {
	cfg := sess.srv.cfg
	sess.write("\r\n************************************************\r\nWelcome to ZXAN product C320 of ZTE Corporation\r\n************************************************\r\n\r\n")

	for attempt := 0; attempt < 3; attempt++ {
		sess.write("Username:")
		user, err := sess.readLine()
		if err != nil {
			return false
		}
		sess.write(user + "\r\n")

		sess.write("Password:")
		pass, err := sess.readLine()
		if err != nil {
			return false
		}
		sess.write("\r\n")

		if user == cfg.Username && pass == cfg.Password {
			sess.write("\r\n")
			return true
		}
		sess.write("%Error 20209: Bad password or user name.\r\n\r\n")
	}
	return false
}

func (sess *session) lines(lines ...string) {
	for _, l := range lines {
		sess.write(l + "\r\n")
	}
}

func (sess *session) invalid() {
	sess.lines("%Error 20200: Invalid input detected at '^' marker.")
}

// dispatch handles one command; false closes the connection
func (sess *session) dispatch(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch {
	case line == "terminal length 0", line == "terminal-length 0", line == "idle-timeout 0":
		return true
	case line == "exit":
		switch sess.mode {
		case modeConfigIf:
			sess.mode = modeConfig
		case modeConfig:
			sess.mode = modeExec
		default:
			return false
		}
		return true
	case line == "enable":
		return sess.enable()
	}

	if sess.mode == modeUser {
		sess.invalid()
		return true
	}

	switch {
	case line == "conf t" || line == "configure terminal":
		sess.mode = modeConfig
	case sess.mode == modeConfig && fields[0] == "interface" && len(fields) == 2:
		sess.oltIf = fields[1]
		sess.mode = modeConfigIf
	case sess.mode == modeConfigIf && len(fields) == 3 && fields[0] == "no" && fields[1] == "onu":
		sess.removeONU(fields[2])
	case strings.HasPrefix(line, "show gpon onu by sn ") && len(fields) == 6:
		sess.search(fields[5])
	case strings.HasPrefix(line, "show gpon onu detail-info ") && len(fields) == 5:
		sess.detail(fields[4])
	case strings.HasPrefix(line, "show pon power ") && len(fields) == 5:
		sess.power(fields[3], fields[4])
	case strings.HasPrefix(line, "show gpon onu state ") && len(fields) == 5:
		sess.stateTable(fields[4])
	default:
		sess.invalid()
	}
	return true
}

func (sess *session) enable() bool {
	cfg := sess.srv.cfg
	if sess.mode != modeUser {
		return true
	}
	if cfg.EnablePassword == "" {
		sess.mode = modeExec
		return true
	}

	sess.write("Password:")
	pass, err := sess.readLine()
	if err != nil {
		return false
	}
	sess.write("\r\n")
	if pass == cfg.EnablePassword {
		sess.mode = modeExec
	} else {
		sess.lines("%Error 20209: Bad password.")
	}
	return true
}

func (sess *session) find(iface string) (ONU, bool) {
	sess.srv.mu.Lock()
	defer sess.srv.mu.Unlock()
	for _, o := range sess.srv.onus {
		if o.Interface == iface {
			return o, true
		}
	}
	return ONU{}, false
}

func (sess *session) search(serial string) {
	sess.srv.mu.Lock()
	var found *ONU
	for i := range sess.srv.onus {
		if strings.EqualFold(sess.srv.onus[i].Serial, serial) {
			o := sess.srv.onus[i]
			found = &o
			break
		}
	}
	sess.srv.mu.Unlock()

	if found == nil {
		sess.lines("%Code 32310-GPONSRV : No related information to show.")
		return
	}
	sess.lines("SearchResult", "-----------------", found.Interface)
}

func (sess *session) detail(iface string) {
	o, ok := sess.find(iface)
	if !ok {
		sess.lines("%Code 32310-GPONSRV : No related information to show.")
		return
	}
	sess.lines(
		fmt.Sprintf("ONU interface:          %s", o.Interface),
		fmt.Sprintf("  Name:                 %s", o.Name),
		"  Type:                 F601",
		"  State:                ready",
		"  Admin state:          enable",
		fmt.Sprintf("  Phase state:          %s", o.Phase),
		"  Config state:         success",
		fmt.Sprintf("  Serial number:        %s", o.Serial),
		fmt.Sprintf("  ONU Distance:         %s", o.Distance),
		fmt.Sprintf("  Online Duration:      %s", o.Uptime),
	)
}

func (sess *session) power(kind, iface string) {
	if kind == "olt-tx" {
		sess.srv.mu.Lock()
		var tx float64
		ok := false
		for _, o := range sess.srv.onus {
			if oltInterface(o.Interface) == iface {
				tx, ok = o.TxOLT, true
				break
			}
		}
		sess.srv.mu.Unlock()
		if !ok {
			sess.invalid()
			return
		}
		sess.lines("Olt                 Tx power", "----------------------------------", fmt.Sprintf("%-20s%.3f(dbm)", iface, tx))
		return
	}

	o, ok := sess.find(iface)
	if !ok {
		sess.lines("%Code 32310-GPONSRV : No related information to show.")
		return
	}

	var value float64
	header := "Rx power"
	switch kind {
	case "onu-rx":
		value = o.RxONU
	case "olt-rx":
		value = o.RxOLT
	case "onu-tx":
		value, header = o.TxONU, "Tx power"
	default:
		sess.invalid()
		return
	}
	sess.lines(fmt.Sprintf("Onu                 %s", header), "----------------------------------", fmt.Sprintf("%-20s%.3f(dbm)", o.Interface, value))
}

func (sess *session) stateTable(iface string) {
	sess.srv.mu.Lock()
	defer sess.srv.mu.Unlock()

	sess.lines(
		"OnuIndex   Admin State  OMCC State  Phase State  Channel",
		"--------------------------------------------------------------",
	)
	for _, o := range sess.srv.onus {
		if oltInterface(o.Interface) != iface {
			continue
		}
		short := strings.TrimPrefix(o.Interface, "gpon-onu_")
		sess.lines(fmt.Sprintf("%-11s%-13s%-12s%-13s%s", short, "enable", "enable", o.Phase, "1(GPON)"))
	}
}

func (sess *session) removeONU(index string) {
	target := strings.Replace(sess.oltIf, "gpon-olt_", "gpon-onu_", 1) + ":" + index

	sess.srv.mu.Lock()
	defer sess.srv.mu.Unlock()
	for i, o := range sess.srv.onus {
		if o.Interface == target {
			sess.srv.onus = append(sess.srv.onus[:i], sess.srv.onus[i+1:]...)
			return
		}
	}
	sess.lines("%Code 32310-GPONSRV : The ONU does not exist.")
}

func oltInterface(onuIface string) string {
	s := strings.Replace(onuIface, "gpon-onu_", "gpon-olt_", 1)
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return s
}
