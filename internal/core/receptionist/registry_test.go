package receptionist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/event"
)

type fakeDirectory struct {
	mu         sync.Mutex
	self       domain.Peer
	peers      []domain.Peer
	advertised []domain.ServicePath
}

func (d *fakeDirectory) Self() domain.Peer {
	return d.self
}

func (d *fakeDirectory) Peers() []domain.Peer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Peer(nil), d.peers...)
}

func (d *fakeDirectory) Advertise(paths []domain.ServicePath) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advertised = paths
}

func (d *fakeDirectory) advertisedPaths() []domain.ServicePath {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.advertised
}

type forwarded struct {
	addr domain.EndpointID
	env  domain.Envelope
}

type fakeForwarder struct {
	mu   sync.Mutex
	sent []forwarded
	err  error
}

func (f *fakeForwarder) Deliver(_ context.Context, addr domain.EndpointID, env domain.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, forwarded{addr: addr, env: env})
	return nil
}

func (f *fakeForwarder) all() []forwarded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forwarded(nil), f.sent...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingService struct {
	mu       sync.Mutex
	received []domain.Envelope
	err      error
}

func (s *recordingService) Deliver(_ context.Context, env domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.received = append(s.received, env)
	return nil
}

func (s *recordingService) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

type fixture struct {
	reg   *Registry
	dir   *fakeDirectory
	fwd   *fakeForwarder
	clock *fakeClock
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		dir: &fakeDirectory{
			self: domain.Peer{Name: "node-a", Address: "http://a:7400"},
			peers: []domain.Peer{
				{Name: "node-b", Address: "http://b:7400", Services: []domain.ServicePath{"/svc"}},
				{Name: "node-c", Address: "http://c:7400"},
			},
		},
		fwd:   &fakeForwarder{},
		clock: &fakeClock{now: time.Unix(1700000000, 0)},
	}
	cfg := Config{
		Directory:                f.dir,
		Forwarder:                f.fwd,
		AcceptableHeartbeatPause: 10 * time.Second,
		FailureDetectionInterval: 5 * time.Millisecond,
		Now:                      f.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	reg, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	reg.Start()
	t.Cleanup(func() { _ = reg.Stop(context.Background()) })
	f.reg = reg
	return f
}

func TestNew_InvalidConfiguration(t *testing.T) {
	dir := &fakeDirectory{self: domain.Peer{Name: "a", Address: "http://a"}}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no directory", Config{AcceptableHeartbeatPause: time.Second}},
		{"zero pause", Config{Directory: dir}},
		{"negative contacts", Config{Directory: dir, AcceptableHeartbeatPause: time.Second, NumberOfContacts: -1}},
		{"negative rate", Config{Directory: dir, AcceptableHeartbeatPause: time.Second, ClientRateLimit: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, domain.ErrInvalidConfiguration) {
				t.Errorf("New() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestRegistry_RegisterIsIdempotentUpsert(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := &recordingService{}
	second := &recordingService{}

	id1, err := f.reg.Register(ctx, "/svc", first)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	id2, err := f.reg.Register(ctx, "/svc", second)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("Register() ids = %s, %s, want equal", id1, id2)
	}
	if got := f.reg.Services(); len(got) != 1 || got[0] != "/svc" {
		t.Errorf("Services() = %v, want [/svc]", got)
	}
	if got := f.dir.advertisedPaths(); len(got) != 1 || got[0] != "/svc" {
		t.Errorf("advertised = %v, want [/svc]", got)
	}

	if err := f.reg.Deliver(ctx, domain.Envelope{Target: "/svc", LocalAffinity: true}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if first.count() != 0 || second.count() != 1 {
		t.Errorf("deliveries = %d, %d, want 0, 1", first.count(), second.count())
	}
}

func TestRegistry_RegisterRejectsInvalid(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.reg.Register(ctx, "svc", &recordingService{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Register(relative) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := f.reg.Register(ctx, "/svc", nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Register(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.reg.Register(ctx, "/local", &recordingService{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	ok, err := f.reg.Unregister(ctx, "/local")
	if err != nil || !ok {
		t.Fatalf("Unregister() = %v, %v, want true, nil", ok, err)
	}
	ok, _ = f.reg.Unregister(ctx, "/local")
	if ok {
		t.Error("second Unregister() = true, want false")
	}
	if got := f.dir.advertisedPaths(); len(got) != 0 {
		t.Errorf("advertised = %v, want none", got)
	}
	err = f.reg.Deliver(ctx, domain.Envelope{Target: "/local"})
	if !errors.Is(err, domain.ErrUnknownTarget) {
		t.Errorf("Deliver() error = %v, want ErrUnknownTarget", err)
	}
}

func TestRegistry_OnDiscoveryRequest(t *testing.T) {
	f := newFixture(t, nil)

	got, err := f.reg.OnDiscoveryRequest(context.Background(), "gmcl_k")
	if err != nil {
		t.Fatalf("OnDiscoveryRequest() error = %v", err)
	}
	want := []domain.EndpointID{"http://a:7400", "http://b:7400", "http://c:7400"}
	if len(got) != len(want) {
		t.Fatalf("OnDiscoveryRequest() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("OnDiscoveryRequest()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	known, _ := f.reg.KnownClients(context.Background())
	if len(known) != 1 || known[0].Identity != "gmcl_k" {
		t.Errorf("KnownClients() = %+v, want gmcl_k", known)
	}
}

func TestRegistry_NumberOfContactsIsStablePerClient(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.NumberOfContacts = 2 })
	ctx := context.Background()

	first, err := f.reg.OnDiscoveryRequest(ctx, "gmcl_k")
	if err != nil {
		t.Fatalf("OnDiscoveryRequest() error = %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("len(OnDiscoveryRequest()) = %d, want 2", len(first))
	}
	for i := 0; i < 5; i++ {
		again, _ := f.reg.OnDiscoveryRequest(ctx, "gmcl_k")
		if again[0] != first[0] || again[1] != first[1] {
			t.Fatalf("OnDiscoveryRequest() = %v, want stable %v", again, first)
		}
	}
}

// No heartbeat from K for longer than the acceptable pause: exactly one
// unreachable event and K is forgotten.
func TestRegistry_UnreachableClient(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	events := make(chan event.Event[domain.ClientID], 16)
	f.reg.SubscribeClusterClients(events)

	if ev := <-events; ev.Kind != event.KindSnapshot || len(ev.Items) != 0 {
		t.Fatalf("first event = %+v, want empty snapshot", ev)
	}

	if err := f.reg.OnHeartbeat(ctx, "gmcl_k"); err != nil {
		t.Fatalf("OnHeartbeat() error = %v", err)
	}
	if err := f.reg.OnHeartbeat(ctx, "gmcl_k"); err != nil {
		t.Fatalf("OnHeartbeat() error = %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != event.KindAdded || ev.Item != "gmcl_k" {
			t.Fatalf("event = %+v, want added gmcl_k", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no up event")
	}

	f.clock.Advance(11 * time.Second)

	select {
	case ev := <-events:
		if ev.Kind != event.KindRemoved || ev.Item != "gmcl_k" {
			t.Fatalf("event = %+v, want removed gmcl_k", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no unreachable event")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	known, _ := f.reg.KnownClients(ctx)
	if len(known) != 0 {
		t.Errorf("KnownClients() = %+v, want none", known)
	}
}

func TestRegistry_HeartbeatKeepsClientAlive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_ = f.reg.OnHeartbeat(ctx, "gmcl_k")
	for i := 0; i < 5; i++ {
		f.clock.Advance(5 * time.Second)
		_ = f.reg.OnHeartbeat(ctx, "gmcl_k")
		time.Sleep(10 * time.Millisecond)
	}

	known, _ := f.reg.KnownClients(ctx)
	if len(known) != 1 {
		t.Errorf("KnownClients() = %+v, want gmcl_k", known)
	}
}

func TestRegistry_RateLimit(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.ClientRateLimit = 1
		c.ClientRateBurst = 2
	})
	ctx := context.Background()

	var limited int
	for i := 0; i < 5; i++ {
		if err := f.reg.OnHeartbeat(ctx, "gmcl_k"); errors.Is(err, domain.ErrRateLimited) {
			limited++
		}
	}
	if limited == 0 {
		t.Error("no request was rate limited")
	}
	if err := f.reg.OnHeartbeat(ctx, "gmcl_other"); err != nil {
		t.Errorf("OnHeartbeat(other) error = %v, want nil", err)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.reg.Register(context.Background(), "/svc", &recordingService{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got := f.reg.Resolve("/svc")
	if len(got) != 2 {
		t.Fatalf("Resolve() = %+v, want local and node-b", got)
	}
	if got[0].Owner != "http://a:7400" || got[0].ID != domain.NewRegistrationID("node-a", "/svc") {
		t.Errorf("Resolve()[0] = %+v, want local registration", got[0])
	}
	if got[1].Owner != "http://b:7400" || got[1].ID != domain.NewRegistrationID("node-b", "/svc") {
		t.Errorf("Resolve()[1] = %+v, want node-b registration", got[1])
	}
	if got := f.reg.Resolve("/none"); len(got) != 0 {
		t.Errorf("Resolve(/none) = %+v, want none", got)
	}
}

func TestRegistry_DeliverLocalAffinity(t *testing.T) {
	tests := []struct {
		name        string
		allowRemote bool
		wantErr     error
		wantForward int
	}{
		{"fallback to remote", true, nil, 1},
		{"strict local", false, domain.ErrUnknownTarget, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			err := f.reg.Deliver(context.Background(), domain.Envelope{
				Target:        "/svc",
				LocalAffinity: true,
				AllowRemote:   tt.allowRemote,
			})
			if !errors.Is(err, tt.wantErr) && (err != nil || tt.wantErr != nil) {
				t.Fatalf("Deliver() error = %v, want %v", err, tt.wantErr)
			}
			if got := len(f.fwd.all()); got != tt.wantForward {
				t.Errorf("forwarded = %d, want %d", got, tt.wantForward)
			}
		})
	}
}

func TestRegistry_DeliverForwardsToPeer(t *testing.T) {
	f := newFixture(t, nil)

	env := domain.Envelope{ID: "e1", ClientID: "gmcl_k", Target: "/svc", Payload: []byte("p")}
	if err := f.reg.Deliver(context.Background(), env); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	sent := f.fwd.all()
	if len(sent) != 1 {
		t.Fatalf("forwarded = %d, want 1", len(sent))
	}
	if sent[0].addr != "http://b:7400" || !sent[0].env.Forwarded || sent[0].env.ID != "e1" {
		t.Errorf("forwarded = %+v, want e1 to node-b marked forwarded", sent[0])
	}
}

func TestRegistry_DeliverForwardedIsLocalOnly(t *testing.T) {
	f := newFixture(t, nil)

	err := f.reg.Deliver(context.Background(), domain.Envelope{Target: "/svc", Forwarded: true})
	if !errors.Is(err, domain.ErrUnknownTarget) {
		t.Errorf("Deliver() error = %v, want ErrUnknownTarget", err)
	}
	if got := len(f.fwd.all()); got != 0 {
		t.Errorf("forwarded = %d, want 0", got)
	}
}

func TestRegistry_DeliverPinned(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	local := &recordingService{}
	if _, err := f.reg.Register(ctx, "/svc", local); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name        string
		id          domain.RegistrationID
		wantErr     error
		wantLocal   int
		wantForward int
	}{
		{"local registration", domain.NewRegistrationID("node-a", "/svc"), nil, 1, 0},
		{"peer registration", domain.NewRegistrationID("node-b", "/svc"), nil, 1, 1},
		{"unknown registration", domain.NewRegistrationID("node-z", "/svc"), domain.ErrUnknownTarget, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.reg.Deliver(ctx, domain.Envelope{Target: "/svc", RegistrationID: tt.id})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Deliver() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Deliver() error = %v, want %v", err, tt.wantErr)
			}
			if local.count() != tt.wantLocal {
				t.Errorf("local deliveries = %d, want %d", local.count(), tt.wantLocal)
			}
			if got := len(f.fwd.all()); got != tt.wantForward {
				t.Errorf("forwarded = %d, want %d", got, tt.wantForward)
			}
		})
	}
}

func TestRegistry_DeliverServiceError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	svc := &recordingService{err: errors.New("boom")}
	if _, err := f.reg.Register(ctx, "/svc", svc); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := f.reg.Deliver(ctx, domain.Envelope{Target: "/svc", LocalAffinity: true})
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Errorf("Deliver() error = %v, want ErrDeliveryFailed", err)
	}
}

func TestRegistry_StoppedRejectsCalls(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.reg.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := f.reg.OnHeartbeat(context.Background(), "gmcl_k"); !errors.Is(err, domain.ErrReceptionistStopped) {
		t.Errorf("OnHeartbeat() error = %v, want ErrReceptionistStopped", err)
	}
}

func TestRegistry_StopWithoutStart(t *testing.T) {
	dir := &fakeDirectory{self: domain.Peer{Name: "a", Address: "http://a:7400"}}
	reg, err := New(Config{Directory: dir, Forwarder: &fakeForwarder{}, AcceptableHeartbeatPause: time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reg.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v, want nil", err)
	}
	select {
	case <-reg.Done():
	default:
		t.Error("Done() is still open after Stop()")
	}

	reg.Start()
	if err := reg.OnHeartbeat(ctx, "gmcl_k"); !errors.Is(err, domain.ErrReceptionistStopped) {
		t.Errorf("OnHeartbeat() after Stop() error = %v, want ErrReceptionistStopped", err)
	}
}

func TestSelectContacts(t *testing.T) {
	addrs := []domain.EndpointID{"c", "a", "b", "d"}

	all := selectContacts("k", addrs, 0)
	if len(all) != 4 || all[0] != "a" || all[3] != "d" {
		t.Errorf("selectContacts(0) = %v, want sorted full set", all)
	}

	two := selectContacts("k", addrs, 2)
	if len(two) != 2 || two[0] == two[1] {
		t.Errorf("selectContacts(2) = %v, want two distinct", two)
	}
	if addrs[0] != "c" {
		t.Error("selectContacts() modified its input")
	}
}
