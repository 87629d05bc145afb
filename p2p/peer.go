package p2p

import (
	"net"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
)

// Direction records which side dialed a connection (spec §3).
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Peer is the durable, address-keyed identity record the PeerBook tracks.
// It outlives any single TCP connection (spec §3 "Peer").
type Peer struct {
	mu sync.RWMutex

	Addr         net.TCPAddr
	Capabilities Capabilities
	UserAgent    string
	Version      uint32

	lastContact      time.Time
	lastBan          time.Time
	banReason        BanReason
	lastTxHashSetReq time.Time
	dirty            bool
}

// NewPeer creates a freshly-observed peer record with unknown capabilities
// (spec §4.10 add_fresh).
func NewPeer(addr net.TCPAddr) *Peer {
	return &Peer{Addr: addr, Capabilities: CapUnknown, lastContact: time.Now()}
}

// Key identifies a peer by address, the Peer identity per spec §3.
func (p *Peer) Key() string { return p.Addr.String() }

// IsBanned reports whether the peer is inside its ban window.
func (p *Peer) IsBanned() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.lastBan.IsZero() && time.Since(p.lastBan) < BanWindow
}

// Ban marks the peer banned with reason r; idempotent within the current
// ban window (spec testable property 9: first reason wins until prune).
func (p *Peer) Ban(r BanReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.lastBan.IsZero() && time.Since(p.lastBan) < BanWindow {
		return
	}
	p.lastBan = time.Now()
	p.banReason = r
	p.dirty = true
}

// Unban clears the ban state.
func (p *Peer) Unban() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastBan = time.Time{}
	p.banReason = BanReasonNone
	p.dirty = true
}

func (p *Peer) BanReason() BanReason {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.banReason
}

func (p *Peer) Touch() {
	p.mu.Lock()
	p.lastContact = time.Now()
	p.dirty = true
	p.mu.Unlock()
}

func (p *Peer) LastContact() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastContact
}

// TryTxHashSetRequest enforces the ≤1-per-2h rate limit (spec §4.6); it
// returns true and records the attempt if the request is allowed.
func (p *Peer) TryTxHashSetRequest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.lastTxHashSetReq.IsZero() && time.Since(p.lastTxHashSetReq) < txHashSetRateLimit {
		return false
	}
	p.lastTxHashSetReq = time.Now()
	return true
}

func (p *Peer) SetHandshakeInfo(version uint32, caps Capabilities, userAgent string) {
	p.mu.Lock()
	p.Version = version
	p.Capabilities = caps
	p.UserAgent = userAgent
	p.mu.Unlock()
}

// TakeDirty reports and clears the persistence-pending flag (spec §4.10's
// background flush task).
func (p *Peer) TakeDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.dirty
	p.dirty = false
	return d
}

// ConnectedPeer pairs a durable Peer with the live socket state of one
// connection: direction, negotiated version and the advertised chain tip
// (spec §3 "ConnectedPeer"). Updated on every Ping/Pong/Header.
type ConnectedPeer struct {
	*Peer

	ID        uint64
	Direction Direction
	Conn      net.Conn

	mu              sync.RWMutex
	totalDifficulty uint64
	height          uint64

	knownBlocks mapset.Set
	knownTxs    mapset.Set

	sendQueue chan []byte
	terminate chan struct{}
	once      sync.Once
}

const sendQueueCapacity = 128
const knownSetCapacity = 4096

// NewConnectedPeer wraps peer with the live-connection state a just-opened
// socket needs, embedding the durable Peer the same way a protocol-level
// peer type pairs a raw connection with session bookkeeping.
func NewConnectedPeer(id uint64, peer *Peer, dir Direction, conn net.Conn) *ConnectedPeer {
	return &ConnectedPeer{
		Peer:        peer,
		ID:          id,
		Direction:   dir,
		Conn:        conn,
		knownBlocks: mapset.NewSetWithSize(knownSetCapacity),
		knownTxs:    mapset.NewSetWithSize(knownSetCapacity),
		sendQueue:   make(chan []byte, sendQueueCapacity),
		terminate:   make(chan struct{}),
	}
}

// UpdateTip records the peer's advertised total difficulty and height,
// ignoring stale (non-increasing) updates.
func (cp *ConnectedPeer) UpdateTip(td, height uint64) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if td > cp.totalDifficulty {
		cp.totalDifficulty = td
	}
	if height > cp.height {
		cp.height = height
	}
}

func (cp *ConnectedPeer) Tip() (td, height uint64) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.totalDifficulty, cp.height
}

// MarkKnownBlock records that this peer has (or will shortly have) a block.
// The broadcast dispatcher does not consult this set; it sends every
// broadcast to every connected peer.
func (cp *ConnectedPeer) MarkKnownBlock(h Hash) {
	for cp.knownBlocks.Cardinality() >= knownSetCapacity {
		cp.knownBlocks.Pop()
	}
	cp.knownBlocks.Add(h)
}

func (cp *ConnectedPeer) KnowsBlock(h Hash) bool { return cp.knownBlocks.Contains(h) }

func (cp *ConnectedPeer) MarkKnownTx(h Hash) {
	for cp.knownTxs.Cardinality() >= knownSetCapacity {
		cp.knownTxs.Pop()
	}
	cp.knownTxs.Add(h)
}

func (cp *ConnectedPeer) KnowsTx(h Hash) bool { return cp.knownTxs.Contains(h) }

// Send enqueues a pre-encoded frame for the connection's single writer.
// Returns ErrWouldBlock if the send queue is full; non-blocking by design
// so one slow peer can't stall the broadcaster.
func (cp *ConnectedPeer) Send(frame []byte) error {
	select {
	case cp.sendQueue <- frame:
		return nil
	default:
		return WrapErr(KindSocket, ErrWouldBlock)
	}
}

// Terminated reports whether Terminate has been called.
func (cp *ConnectedPeer) Terminated() <-chan struct{} { return cp.terminate }

// Terminate idempotently signals the connection loop to exit (spec §4.4
// Disconnect).
func (cp *ConnectedPeer) Terminate() {
	cp.once.Do(func() { close(cp.terminate) })
}
