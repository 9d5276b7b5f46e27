package clusterserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// Discovery tracks the other receptionists through memberlist gossip and
// implements receptionist.PeerDirectory.
//
// Node metadata carries the RPC address clients dial. The service paths a
// node has registered travel as delegate state: full state on push/pull
// and a versioned broadcast whenever the local set changes.
type Discovery struct {
	config     *memberlist.Config
	memberList *memberlist.Memberlist
	broadcasts *memberlist.TransmitLimitedQueue
	logger     *slog.Logger

	self    domain.Peer
	mu      sync.RWMutex
	local   nodeState
	peers   map[string]*peerState
	stopped bool

	// Callbacks
	onJoin  func(node string, addr domain.EndpointID)
	onLeave func(node string)
}

// DiscoveryConfig configures the discovery mechanism.
type DiscoveryConfig struct {
	// NodeName is the unique node identifier.
	NodeName string

	// BindAddr and BindPort are the gossip listen address. Port 0 picks a
	// free port.
	BindAddr string
	BindPort int

	// AdvertiseAddr and AdvertisePort override the gossip address other
	// nodes use to reach this one.
	AdvertiseAddr string
	AdvertisePort int

	// RPCAddr is the receptionist address clients dial. It is shared with
	// the other nodes through node metadata.
	RPCAddr domain.EndpointID

	// Seeds are the gossip addresses of nodes to join.
	Seeds []string

	// PushPullInterval is the full state sync period. Zero keeps the
	// memberlist default.
	PushPullInterval time.Duration

	Logger *slog.Logger
}

// nodeMetadata is the memberlist node meta of a receptionist.
type nodeMetadata struct {
	RPCAddr string `json:"rpc_addr"`
}

// nodeState is the delegate state of a receptionist.
type nodeState struct {
	Node     string   `json:"node"`
	Version  uint64   `json:"version"`
	Services []string `json:"services"`
}

type peerState struct {
	addr     domain.EndpointID
	alive    bool
	version  uint64
	services []domain.ServicePath
}

// NewDiscovery creates a memberlist node and joins the seeds, if any.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NodeName == "" {
		return nil, domain.ErrInvalidConfiguration.WithDetails("node name is required")
	}
	if cfg.RPCAddr == "" {
		return nil, domain.ErrInvalidConfiguration.WithDetails("rpc address is required")
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeName
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
		mlConfig.AdvertisePort = cfg.AdvertisePort
	}
	if cfg.PushPullInterval > 0 {
		mlConfig.PushPullInterval = cfg.PushPullInterval
	}
	mlConfig.LogOutput = &slogWriter{logger: cfg.Logger}

	d := &Discovery{
		config: mlConfig,
		logger: cfg.Logger,
		self:   domain.Peer{Name: cfg.NodeName, Address: cfg.RPCAddr},
		local: nodeState{
			Node: cfg.NodeName,
			// Seeded from the clock so a restarted node supersedes the
			// state its peers remember.
			Version: uint64(time.Now().UnixNano()),
		},
		peers: make(map[string]*peerState),
	}

	meta, err := json.Marshal(nodeMetadata{RPCAddr: string(cfg.RPCAddr)})
	if err != nil {
		return nil, fmt.Errorf("encode node metadata: %w", err)
	}
	d.broadcasts = &memberlist.TransmitLimitedQueue{
		NumNodes:       d.numNodes,
		RetransmitMult: mlConfig.RetransmitMult,
	}
	mlConfig.Delegate = &metadataDelegate{discovery: d, meta: meta}
	mlConfig.Events = &eventDelegate{discovery: d}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	d.memberList = ml

	if len(cfg.Seeds) > 0 {
		n, err := ml.Join(cfg.Seeds)
		if err != nil {
			_ = ml.Shutdown()
			return nil, fmt.Errorf("join seed nodes: %w", err)
		}
		cfg.Logger.Info("joined cluster",
			"node", cfg.NodeName,
			"seed_nodes", cfg.Seeds,
			"joined_count", n)
	} else {
		cfg.Logger.Info("started discovery (bootstrap mode)",
			"node", cfg.NodeName)
	}

	return d, nil
}

// Self returns this node's name, RPC address and advertised services.
func (d *Discovery) Self() domain.Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	self := d.self
	self.Services = toPaths(d.local.Services)
	return self
}

// Peers returns the live receptionists other than this one, sorted by name.
func (d *Discovery) Peers() []domain.Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Peer, 0, len(d.peers))
	for name, p := range d.peers {
		if !p.alive || p.addr == "" {
			continue
		}
		out = append(out, domain.Peer{
			Name:     name,
			Address:  p.addr,
			Services: slices.Clone(p.services),
		})
	}
	slices.SortFunc(out, func(a, b domain.Peer) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// Advertise replaces the service paths of this node and broadcasts them.
func (d *Discovery) Advertise(paths []domain.ServicePath) {
	d.mu.Lock()
	d.local.Version++
	d.local.Services = make([]string, 0, len(paths))
	for _, p := range paths {
		d.local.Services = append(d.local.Services, string(p))
	}
	msg, err := json.Marshal(d.local)
	d.mu.Unlock()

	if err != nil {
		d.logger.Error("failed to encode service state", "error", err)
		return
	}
	d.broadcasts.QueueBroadcast(&stateBroadcast{node: d.self.Name, msg: msg})
}

// Members returns the number of live gossip members, this node included.
func (d *Discovery) Members() int {
	if d.memberList == nil {
		return 0
	}
	return d.memberList.NumMembers()
}

// LocalNode returns the local node information.
func (d *Discovery) LocalNode() *memberlist.Node {
	if d.memberList == nil {
		return nil
	}
	return d.memberList.LocalNode()
}

// GossipAddr returns the host:port other nodes use to join this one.
func (d *Discovery) GossipAddr() string {
	n := d.LocalNode()
	if n == nil {
		return ""
	}
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// OnJoin registers a callback for node join events.
func (d *Discovery) OnJoin(fn func(node string, addr domain.EndpointID)) {
	d.onJoin = fn
}

// OnLeave registers a callback for node leave events.
func (d *Discovery) OnLeave(fn func(node string)) {
	d.onLeave = fn
}

// Leave gracefully leaves the cluster.
func (d *Discovery) Leave(timeout time.Duration) error {
	if d.memberList == nil {
		return nil
	}
	if err := d.memberList.Leave(timeout); err != nil {
		d.logger.Error("failed to leave cluster", "error", err)
		return err
	}
	d.logger.Info("left cluster")
	return nil
}

// Shutdown stops the discovery mechanism. It is safe to call twice.
func (d *Discovery) Shutdown() error {
	d.mu.Lock()
	if d.stopped || d.memberList == nil {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	if err := d.memberList.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	d.logger.Info("discovery shutdown complete")
	return nil
}

// numNodes estimates the cluster size for broadcast retransmits.
func (d *Discovery) numNodes() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 1
	for _, p := range d.peers {
		if p.alive {
			n++
		}
	}
	return n
}

func (d *Discovery) localState() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	buf, err := json.Marshal(d.local)
	if err != nil {
		return nil
	}
	return buf
}

// applyState records the services of a remote node if st is newer than
// what is known.
func (d *Discovery) applyState(buf []byte) {
	if len(buf) == 0 {
		return
	}
	var st nodeState
	if err := json.Unmarshal(buf, &st); err != nil {
		d.logger.Warn("discarding malformed node state", "error", err)
		return
	}
	if st.Node == "" || st.Node == d.self.Name {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[st.Node]
	if !ok {
		p = &peerState{}
		d.peers[st.Node] = p
	}
	if ok && st.Version <= p.version {
		return
	}
	p.version = st.Version
	p.services = toPaths(st.Services)

	d.logger.Debug("peer services updated",
		"peer", st.Node,
		"services", len(p.services))
}

func (d *Discovery) markAlive(name string, addr domain.EndpointID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[name]
	if !ok {
		p = &peerState{}
		d.peers[name] = p
	}
	p.alive = true
	p.addr = addr
}

func (d *Discovery) forget(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, name)
}

func toPaths(raw []string) []domain.ServicePath {
	out := make([]domain.ServicePath, 0, len(raw))
	for _, s := range raw {
		out = append(out, domain.ServicePath(s))
	}
	return out
}

// rpcAddr extracts the RPC address from node metadata.
func rpcAddr(node *memberlist.Node) domain.EndpointID {
	var meta nodeMetadata
	if err := json.Unmarshal(node.Meta, &meta); err != nil {
		return ""
	}
	return domain.NormalizeEndpoint(meta.RPCAddr)
}

// eventDelegate implements memberlist.EventDelegate.
type eventDelegate struct {
	discovery *Discovery
}

// NotifyJoin is called when a node joins.
func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	d := e.discovery
	if node.Name == d.self.Name {
		return
	}

	addr := rpcAddr(node)
	if addr == "" {
		d.logger.Warn("node joined without rpc metadata",
			"peer", node.Name,
			"gossip_addr", node.Address())
		return
	}
	d.markAlive(node.Name, addr)

	d.logger.Info("node joined",
		"peer", node.Name,
		"gossip_addr", node.Address(),
		"rpc_addr", addr)

	if d.onJoin != nil {
		d.onJoin(node.Name, addr)
	}
}

// NotifyLeave is called when a node leaves or is declared dead.
func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	d := e.discovery
	if node.Name == d.self.Name {
		return
	}
	d.forget(node.Name)

	d.logger.Info("node left",
		"peer", node.Name,
		"addr", node.Addr.String())

	if d.onLeave != nil {
		d.onLeave(node.Name)
	}
}

// NotifyUpdate is called when a node's metadata changes.
func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	d := e.discovery
	if node.Name == d.self.Name {
		return
	}
	if addr := rpcAddr(node); addr != "" {
		d.markAlive(node.Name, addr)
	}
	d.logger.Debug("node updated",
		"peer", node.Name,
		"addr", node.Addr.String())
}

// slogWriter adapts slog.Logger to io.Writer for memberlist.
type slogWriter struct {
	logger *slog.Logger
}

// Write implements io.Writer.
func (w *slogWriter) Write(p []byte) (n int, err error) {
	w.logger.Debug(string(p))
	return len(p), nil
}

// metadataDelegate implements memberlist.Delegate.
type metadataDelegate struct {
	discovery *Discovery
	meta      []byte
}

// NodeMeta returns metadata about this node (up to limit bytes).
func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return m.meta[:limit]
	}
	return m.meta
}

// NotifyMsg receives a service state broadcast.
func (m *metadataDelegate) NotifyMsg(buf []byte) {
	// buf is only valid for the duration of the call.
	m.discovery.applyState(slices.Clone(buf))
}

// GetBroadcasts returns pending service state broadcasts.
func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte {
	return m.discovery.broadcasts.GetBroadcasts(overhead, limit)
}

// LocalState returns this node's services for a push/pull sync.
func (m *metadataDelegate) LocalState(join bool) []byte {
	return m.discovery.localState()
}

// MergeRemoteState applies a peer's services received on push/pull.
func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool) {
	m.discovery.applyState(buf)
}

// stateBroadcast is a service state update of one node. A newer update of
// the same node invalidates an older one still queued.
type stateBroadcast struct {
	node string
	msg  []byte
}

func (b *stateBroadcast) Invalidates(other memberlist.Broadcast) bool {
	o, ok := other.(*stateBroadcast)
	return ok && o.node == b.node
}

func (b *stateBroadcast) Message() []byte { return b.msg }

func (b *stateBroadcast) Finished() {}
