package locate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	onulocator "github.com/nanoncore/nano-onulocator"
	"github.com/nanoncore/nano-onulocator/drivers/mock"
	"github.com/nanoncore/nano-onulocator/types"
	"github.com/nanoncore/nano-onulocator/vendors/zte"
)

const testSerial = "AAAABBBBCCCC"

func testONU(serial, iface string) mock.ONU {
	return mock.ONU{
		Serial:    serial,
		Interface: iface,
		Name:      "cliente-01",
		Phase:     "working",
		Distance:  "1234m",
		Uptime:    "3h 12m 5s",
		RxONU:     -21.3,
		TxONU:     2.14,
		RxOLT:     -23.01,
		TxOLT:     5.12,
	}
}

func testTimeouts() types.Timeouts {
	return types.Timeouts{
		Connect:     time.Second,
		Login:       300 * time.Millisecond,
		Shell:       500 * time.Millisecond,
		Enable:      300 * time.Millisecond,
		Tuning:      200 * time.Millisecond,
		Command:     time.Second,
		LongCommand: time.Second,
		Send:        time.Second,
	}
}

type fakeInventory struct {
	targets []types.Target
	calls   atomic.Int32
}

func (f *fakeInventory) Targets(context.Context) ([]types.Target, error) {
	f.calls.Add(1)
	return f.targets, nil
}

func (f *fakeInventory) TargetByAddress(_ context.Context, address string) (types.Target, bool, error) {
	f.calls.Add(1)
	for _, t := range f.targets {
		if t.Address == address {
			return t, true, nil
		}
	}
	return types.Target{}, false, nil
}

type fakeCredentials struct{ cred types.Credential }

func (f fakeCredentials) DefaultCredential(context.Context) (types.Credential, error) {
	return f.cred, nil
}

type fakeStatuses struct{ entries []types.StatusEntry }

func (f fakeStatuses) StatusEntries(context.Context) ([]types.StatusEntry, error) {
	return f.entries, nil
}

type memoryAudit struct {
	mu     sync.Mutex
	events []types.AuditEvent
}

func (m *memoryAudit) Record(_ context.Context, e types.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memoryAudit) Events() []types.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.AuditEvent(nil), m.events...)
}

// recordingFactory counts driver builds and remembers the credential used per target
type recordingFactory struct {
	mu     sync.Mutex
	builds int
	creds  map[string]types.Credential

	// defaultPort is used for targets without a port
	defaultPort int
}

func (f *recordingFactory) build(target types.Target, cred types.Credential, timeouts types.Timeouts) (types.OLTDriver, error) {
	f.mu.Lock()
	f.builds++
	if f.creds == nil {
		f.creds = make(map[string]types.Credential)
	}
	f.creds[target.Name] = cred
	f.mu.Unlock()

	if target.Port == 0 {
		target.Port = f.defaultPort
	}
	return DefaultDriverFactory(target, cred, timeouts)
}

func (f *recordingFactory) Builds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

func (f *recordingFactory) Cred(name string) (types.Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[name]
	return c, ok
}

func newServer(t *testing.T, cfg mock.Config) *mock.Server {
	t.Helper()
	srv, err := mock.NewServer(cfg)
	if err != nil {
		t.Fatalf("failed to start mock OLT: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func target(name string, srv *mock.Server, user, pass string) types.Target {
	return types.Target{Name: name, Address: srv.Host(), Port: srv.Port(), Username: user, Password: pass}
}

var defaultCred = types.Credential{Username: "default", Password: "defpass"}

var statusEntries = []types.StatusEntry{
	{Code: "working", Description: "Online", Color: "green"},
	{Code: "LOS", Description: "Loss of signal", Color: "red"},
}

func newTestService(t *testing.T, inv *fakeInventory, factory *recordingFactory, opts ...Option) (*Service, *memoryAudit) {
	t.Helper()
	audit := &memoryAudit{}
	opts = append([]Option{
		WithDriverFactory(factory.build),
		WithTimeouts(testTimeouts()),
		WithAuditSink(audit),
	}, opts...)
	s, err := NewService(inv, fakeCredentials{cred: defaultCred}, fakeStatuses{entries: statusEntries}, opts...)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return s, audit
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewService(nil, fakeCredentials{}, fakeStatuses{}); err == nil {
		t.Error("expected error without inventory")
	}
}

func TestLocateResolvesCredentialsPerDevice(t *testing.T) {
	deviceA := newServer(t, mock.Config{Hostname: "OLT-A", Username: "default", Password: "defpass"})
	deviceB := newServer(t, mock.Config{
		Hostname: "OLT-B",
		Username: "dev",
		Password: "devpass",
		ONUs:     []mock.ONU{testONU(testSerial, "gpon-onu_1/2/1:5")},
	})

	inv := &fakeInventory{targets: []types.Target{
		target("DeviceA", deviceA, "", ""),
		target("DeviceB", deviceB, "dev", "devpass"),
	}}
	factory := &recordingFactory{}
	s, audit := newTestService(t, inv, factory)

	ctx := WithOperator(context.Background(), "alice")
	result, err := s.Locate(ctx, testSerial)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}

	if result.Location.DeviceName != "DeviceB" {
		t.Errorf("DeviceName = %q, want DeviceB", result.Location.DeviceName)
	}
	if result.Location.Interface != "gpon-onu_1/2/1:5" {
		t.Errorf("Interface = %q", result.Location.Interface)
	}
	if result.Diagnostics.Status != "working" || result.Diagnostics.Description != "Online" || result.Diagnostics.Color != "green" {
		t.Errorf("status = %q/%q/%q", result.Diagnostics.Status, result.Diagnostics.Description, result.Diagnostics.Color)
	}
	if result.Diagnostics.Signals.RxONU != -21.3 || result.Diagnostics.Signals.RxOLT != -23.01 {
		t.Errorf("receive levels = %+v", result.Diagnostics.Signals)
	}
	if result.Diagnostics.Signals.TxONU != types.OpticalSentinel {
		t.Errorf("locate should not read transmit levels, TxONU = %v", result.Diagnostics.Signals.TxONU)
	}
	if len(result.Raw) != 3 {
		t.Errorf("raw replies = %d, want 3", len(result.Raw))
	}

	waitFor(t, func() bool {
		_, ok := factory.Cred("DeviceA")
		return ok
	})
	if c, _ := factory.Cred("DeviceA"); c != defaultCred {
		t.Errorf("DeviceA resolved %+v, want default credential", c)
	}
	if c, _ := factory.Cred("DeviceB"); c != (types.Credential{Username: "dev", Password: "devpass"}) {
		t.Errorf("DeviceB resolved %+v, want its own credential", c)
	}

	events := audit.Events()
	if len(events) != 1 || events[0].Operator != "alice" || events[0].Action != OpLocate {
		t.Fatalf("audit events = %+v", events)
	}
	if !strings.Contains(events[0].Details, testSerial) {
		t.Errorf("audit details = %q", events[0].Details)
	}
}

func TestSignalReadsBroadFieldSet(t *testing.T) {
	onu := testONU(testSerial, "gpon-onu_1/2/1:5")
	onu.Phase = "LOS"
	srv := newServer(t, mock.Config{Username: "default", Password: "defpass", ONUs: []mock.ONU{onu}})

	inv := &fakeInventory{targets: []types.Target{target("OLT-1", srv, "", "")}}
	s, _ := newTestService(t, inv, &recordingFactory{})

	result, err := s.Signal(context.Background(), testSerial)
	if err != nil {
		t.Fatalf("Signal() error = %v", err)
	}

	d := result.Diagnostics
	if d.Status != "LOS" || d.Description != "Loss of signal" || d.Color != "red" {
		t.Errorf("status = %q/%q/%q", d.Status, d.Description, d.Color)
	}
	want := types.OpticalLevels{RxONU: -21.3, TxONU: 2.14, RxOLT: -23.01, TxOLT: 5.12}
	if d.Signals != want {
		t.Errorf("Signals = %+v, want %+v", d.Signals, want)
	}
	if d.Name != "cliente-01" || d.Distance != "1234m" || d.Uptime != "3h 12m 5s" {
		t.Errorf("detail fields = %q/%q/%q", d.Name, d.Distance, d.Uptime)
	}
	if len(result.Raw) != 6 {
		t.Errorf("raw replies = %d, want 6", len(result.Raw))
	}
}

func TestLocateRejectsInvalidSerialBeforeIO(t *testing.T) {
	inv := &fakeInventory{targets: []types.Target{{Name: "x", Address: "127.0.0.1", Port: 1}}}
	factory := &recordingFactory{}
	s, _ := newTestService(t, inv, factory)

	for _, serial := range []string{"", "SHORT", "AAAABBBBCCCCD"} {
		if _, err := s.Locate(context.Background(), serial); !errors.Is(err, types.ErrInvalidSerial) {
			t.Errorf("Locate(%q) error = %v, want ErrInvalidSerial", serial, err)
		}
		if _, err := s.Signal(context.Background(), serial); !errors.Is(err, types.ErrInvalidSerial) {
			t.Errorf("Signal(%q) error = %v, want ErrInvalidSerial", serial, err)
		}
	}
	if factory.Builds() != 0 || inv.calls.Load() != 0 {
		t.Errorf("invalid serial caused %d driver builds and %d inventory reads", factory.Builds(), inv.calls.Load())
	}
}

func TestLocateSkipsTargetsWithoutCredentials(t *testing.T) {
	srv := newServer(t, mock.Config{ONUs: []mock.ONU{testONU(testSerial, "gpon-onu_1/2/1:5")}})

	inv := &fakeInventory{targets: []types.Target{target("OLT-1", srv, "", "")}}
	factory := &recordingFactory{}
	s, err := NewService(inv, fakeCredentials{}, fakeStatuses{}, WithDriverFactory(factory.build), WithTimeouts(testTimeouts()))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Locate(context.Background(), testSerial); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Locate() error = %v, want ErrNotFound", err)
	}
	if factory.Builds() != 0 || srv.Sessions() != 0 {
		t.Errorf("target without credentials was contacted: builds=%d sessions=%d", factory.Builds(), srv.Sessions())
	}
}

func TestLocateSilentFleetBoundedByConcurrency(t *testing.T) {
	var targets []types.Target
	for i := 0; i < 20; i++ {
		srv := newServer(t, mock.Config{SilentLogin: true})
		targets = append(targets, target("silent", srv, "", ""))
	}

	s, audit := newTestService(t, &fakeInventory{targets: targets}, &recordingFactory{}, WithConcurrency(20))

	start := time.Now()
	_, err := s.Locate(context.Background(), testSerial)
	elapsed := time.Since(start)

	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("Locate() error = %v, want ErrNotFound", err)
	}
	// one login timeout is 300ms; sequential would take 6s
	if elapsed > 2*time.Second {
		t.Errorf("silent fleet took %v, want about one login timeout", elapsed)
	}
	if events := audit.Events(); len(events) != 1 || !strings.Contains(events[0].Details, "not found") {
		t.Errorf("audit events = %+v", events)
	}
}

func TestLocateMultipleMatchesReturnsOne(t *testing.T) {
	onu := testONU(testSerial, "gpon-onu_1/2/1:5")
	a := newServer(t, mock.Config{Username: "default", Password: "defpass", ONUs: []mock.ONU{onu}})
	b := newServer(t, mock.Config{Username: "default", Password: "defpass", ONUs: []mock.ONU{onu}})

	inv := &fakeInventory{targets: []types.Target{target("A", a, "", ""), target("B", b, "", "")}}
	s, _ := newTestService(t, inv, &recordingFactory{})

	result, err := s.Locate(context.Background(), testSerial)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if name := result.Location.DeviceName; name != "A" && name != "B" {
		t.Errorf("DeviceName = %q", name)
	}
}

func TestLocateStopsLaunchingAfterMatch(t *testing.T) {
	first := newServer(t, mock.Config{Username: "default", Password: "defpass", ONUs: []mock.ONU{testONU(testSerial, "gpon-onu_1/2/1:5")}})
	second := newServer(t, mock.Config{Username: "default", Password: "defpass"})
	third := newServer(t, mock.Config{Username: "default", Password: "defpass"})

	inv := &fakeInventory{targets: []types.Target{
		target("first", first, "", ""),
		target("second", second, "", ""),
		target("third", third, "", ""),
	}}
	s, _ := newTestService(t, inv, &recordingFactory{}, WithConcurrency(1))

	result, err := s.Locate(context.Background(), testSerial)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if result.Location.DeviceName != "first" {
		t.Errorf("DeviceName = %q, want first", result.Location.DeviceName)
	}

	time.Sleep(100 * time.Millisecond)
	if second.Sessions() != 0 || third.Sessions() != 0 {
		t.Errorf("OLTs after the match were contacted: second=%d third=%d", second.Sessions(), third.Sessions())
	}
}

func TestLocateCallerCancellation(t *testing.T) {
	srv := newServer(t, mock.Config{SilentLogin: true})
	inv := &fakeInventory{targets: []types.Target{target("silent", srv, "", "")}}

	timeouts := testTimeouts()
	timeouts.Login = 5 * time.Second
	s, _ := newTestService(t, inv, &recordingFactory{}, WithTimeouts(timeouts))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Locate(ctx, testSerial)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Locate() error = %v, want context deadline", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation blocked the caller for %v", elapsed)
	}
}

func TestRawCheck(t *testing.T) {
	srv := newServer(t, mock.Config{Username: "dev", Password: "devpass", ONUs: []mock.ONU{testONU(testSerial, "gpon-onu_1/2/1:5")}})
	inv := &fakeInventory{targets: []types.Target{target("OLT-1", srv, "dev", "devpass")}}
	s, audit := newTestService(t, inv, &recordingFactory{})

	ctx := WithOperator(context.Background(), "bob")
	replies, err := s.RawCheck(ctx, srv.Host(), "gpon-onu_1/2/1:5")
	if err != nil {
		t.Fatalf("RawCheck() error = %v", err)
	}
	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(replies))
	}
	if !strings.Contains(replies[0].Output, "-21.300") || !strings.Contains(replies[1].Output, "2.140") {
		t.Errorf("replies = %+v", replies)
	}
	if events := audit.Events(); len(events) != 1 || events[0].Operator != "bob" || events[0].Action != OpRawCheck {
		t.Errorf("audit events = %+v", events)
	}
}

func TestRawCheckUnknownAddressUsesDefault(t *testing.T) {
	srv := newServer(t, mock.Config{Username: "default", Password: "defpass", ONUs: []mock.ONU{testONU(testSerial, "gpon-onu_1/2/1:5")}})
	factory := &recordingFactory{defaultPort: srv.Port()}
	s, _ := newTestService(t, &fakeInventory{}, factory)

	if _, err := s.RawCheck(context.Background(), srv.Host(), "gpon-onu_1/2/1:5"); err != nil {
		t.Fatalf("RawCheck() error = %v", err)
	}
	if c, _ := factory.Cred(""); c != defaultCred {
		t.Errorf("resolved %+v, want default credential", c)
	}
}

func TestRawCheckRejectsBeforeIO(t *testing.T) {
	srv := newServer(t, mock.Config{})
	inv := &fakeInventory{targets: []types.Target{target("OLT-1", srv, "admin", "admin")}}
	s, _ := newTestService(t, inv, &recordingFactory{})

	tests := []struct {
		name    string
		address string
		iface   string
		wantErr error
	}{
		{"bad_interface", srv.Host(), "gpon-olt_1/2/1", types.ErrInvalidInterface},
		{"empty_interface", srv.Host(), "", types.ErrInvalidInterface},
		{"empty_address", "", "gpon-onu_1/2/1:5", types.ErrInvalidInterface},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.RawCheck(context.Background(), tt.address, tt.iface); !errors.Is(err, tt.wantErr) {
				t.Errorf("RawCheck() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if srv.Sessions() != 0 {
		t.Errorf("rejected requests opened %d sessions", srv.Sessions())
	}
}

func TestRawCheckMissingCredentials(t *testing.T) {
	inv := &fakeInventory{targets: []types.Target{{Name: "OLT-1", Address: "10.0.0.1"}}}
	factory := &recordingFactory{}
	s, err := NewService(inv, fakeCredentials{}, fakeStatuses{}, WithDriverFactory(factory.build))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.RawCheck(context.Background(), "10.0.0.1", "gpon-onu_1/2/1:5"); !errors.Is(err, types.ErrMissingCredentials) {
		t.Errorf("RawCheck() error = %v, want ErrMissingCredentials", err)
	}
	if factory.Builds() != 0 {
		t.Errorf("driver built without credentials")
	}
}

func TestDeleteTerminal(t *testing.T) {
	srv := newServer(t, mock.Config{Username: "default", Password: "defpass", ONUs: []mock.ONU{testONU(testSerial, "gpon-onu_1/2/1:5")}})
	inv := &fakeInventory{targets: []types.Target{target("OLT-1", srv, "", "")}}
	s, audit := newTestService(t, inv, &recordingFactory{})
	ctx := WithOperator(context.Background(), "carol")

	if err := s.DeleteTerminal(ctx, srv.Host(), "gpon-onu_1/2/1:5"); err != nil {
		t.Fatalf("DeleteTerminal() error = %v", err)
	}
	if len(srv.ONUs()) != 0 {
		t.Error("terminal still registered")
	}

	err := s.DeleteTerminal(ctx, srv.Host(), "gpon-onu_1/2/1:5")
	if !errors.Is(err, types.ErrCommandRejected) {
		t.Errorf("second DeleteTerminal() error = %v, want ErrCommandRejected", err)
	}

	events := audit.Events()
	if len(events) != 2 {
		t.Fatalf("audit events = %+v", events)
	}
	if !strings.Contains(events[0].Details, "removed") || !strings.Contains(events[1].Details, "failed") {
		t.Errorf("audit details = %q / %q", events[0].Details, events[1].Details)
	}
	if !strings.Contains(events[1].Details, "code="+string(zte.ErrONUNotFound)) || !strings.Contains(events[1].Details, "recoverable=false") {
		t.Errorf("failed removal detail lacks the device error code: %q", events[1].Details)
	}
	if events[0].Operator != "carol" {
		t.Errorf("operator = %q", events[0].Operator)
	}
}

func TestDeleteTerminalUnsupportedVendor(t *testing.T) {
	saved := onulocator.CapabilityMatrix[types.VendorZTE]
	caps := saved
	caps.SupportsDelete = false
	onulocator.CapabilityMatrix[types.VendorZTE] = caps
	defer func() { onulocator.CapabilityMatrix[types.VendorZTE] = saved }()

	srv := newServer(t, mock.Config{ONUs: []mock.ONU{testONU(testSerial, "gpon-onu_1/2/1:5")}})
	inv := &fakeInventory{targets: []types.Target{target("OLT-1", srv, "admin", "admin")}}
	s, audit := newTestService(t, inv, &recordingFactory{})

	err := s.DeleteTerminal(context.Background(), srv.Host(), "gpon-onu_1/2/1:5")
	if !errors.Is(err, types.ErrUnsupportedVendor) {
		t.Fatalf("DeleteTerminal() error = %v, want ErrUnsupportedVendor", err)
	}
	if srv.Sessions() != 0 {
		t.Error("unsupported removal opened a session")
	}
	if len(srv.ONUs()) != 1 {
		t.Error("terminal removed despite the capability check")
	}
	if len(audit.Events()) != 0 {
		t.Errorf("audit events = %+v", audit.Events())
	}
}

func TestDeleteTerminalMalformedInterface(t *testing.T) {
	srv := newServer(t, mock.Config{})
	inv := &fakeInventory{targets: []types.Target{target("OLT-1", srv, "admin", "admin")}}
	s, _ := newTestService(t, inv, &recordingFactory{})

	if err := s.DeleteTerminal(context.Background(), srv.Host(), "gpon-onu_1/2/1"); !errors.Is(err, types.ErrInvalidInterface) {
		t.Errorf("DeleteTerminal() error = %v, want ErrInvalidInterface", err)
	}
	if srv.Sessions() != 0 {
		t.Error("malformed interface opened a session")
	}
}

func TestOperatorFrom(t *testing.T) {
	if got := OperatorFrom(context.Background()); got != SystemOperator {
		t.Errorf("OperatorFrom(empty) = %q", got)
	}
	if got := OperatorFrom(WithOperator(context.Background(), "dave")); got != "dave" {
		t.Errorf("OperatorFrom() = %q", got)
	}
}
