package benchmark

import (
	"context"
	"fmt"
	"sync"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// PeerCounts are the receptionist cluster sizes benchmarked.
var PeerCounts = []int{3, 10, 50}

// ClientCounts are the known client populations benchmarked.
var ClientCounts = []int{1000, 10000, 50000}

// staticDirectory is a fixed receptionist cluster.
type staticDirectory struct {
	self  domain.Peer
	peers []domain.Peer
}

func newDirectory(peers int, paths ...domain.ServicePath) *staticDirectory {
	d := &staticDirectory{self: domain.Peer{Name: "bench-0", Address: "http://10.0.0.0:7400"}}
	for i := 1; i < peers; i++ {
		d.peers = append(d.peers, domain.Peer{
			Name:     fmt.Sprintf("bench-%d", i),
			Address:  domain.EndpointID(fmt.Sprintf("http://10.0.0.%d:7400", i)),
			Services: paths,
		})
	}
	return d
}

func (d *staticDirectory) Self() domain.Peer                    { return d.self }
func (d *staticDirectory) Peers() []domain.Peer                 { return d.peers }
func (d *staticDirectory) Advertise(paths []domain.ServicePath) {}

// nopForwarder accepts every relayed envelope.
type nopForwarder struct{}

func (nopForwarder) Deliver(ctx context.Context, addr domain.EndpointID, env domain.Envelope) error {
	return nil
}

// loopbackTransport answers every receptionist call in memory.
type loopbackTransport struct {
	contacts []domain.EndpointID

	mu        sync.Mutex
	delivered int
}

func newLoopback(contacts int) *loopbackTransport {
	t := &loopbackTransport{}
	for i := 0; i < contacts; i++ {
		t.contacts = append(t.contacts, domain.EndpointID(fmt.Sprintf("http://10.0.1.%d:7400", i)))
	}
	return t
}

func (t *loopbackTransport) GetContacts(ctx context.Context, addr domain.EndpointID, id domain.ClientID) ([]domain.EndpointID, error) {
	return t.contacts, nil
}

func (t *loopbackTransport) Heartbeat(ctx context.Context, addr domain.EndpointID, id domain.ClientID) error {
	return nil
}

func (t *loopbackTransport) Resolve(ctx context.Context, addr domain.EndpointID, path domain.ServicePath) ([]domain.Registration, error) {
	return []domain.Registration{{ID: domain.RegistrationID(string(addr) + string(path)), Path: path, Owner: addr}}, nil
}

func (t *loopbackTransport) Deliver(ctx context.Context, addr domain.EndpointID, env domain.Envelope) error {
	t.mu.Lock()
	t.delivered++
	t.mu.Unlock()
	return nil
}
