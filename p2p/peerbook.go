package p2p

import (
	"math/rand"
	"net"
	"sync"
	"time"
)

const peerRetryWindow = 30 * time.Second

// PeerBook is the in-memory peer directory backed by PeerDB (spec §4.10).
// On construction it loads all persisted peers; a background task flushes
// dirty entries and evicts stale ones.
type PeerBook struct {
	mu    sync.RWMutex
	peers map[string]*Peer
	db    PeerDB

	connected func(addr net.TCPAddr) bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPeerBook loads all peers from db and starts the maintenance loop.
// connected reports whether addr currently has a live connection, letting
// get_new_peer skip already-connected candidates without PeerBook knowing
// about ConnectionManager directly.
func NewPeerBook(db PeerDB, connected func(net.TCPAddr) bool) (*PeerBook, error) {
	loaded, err := db.LoadAll()
	if err != nil {
		return nil, err
	}
	pb := &PeerBook{
		peers:     make(map[string]*Peer, len(loaded)),
		db:        db,
		connected: connected,
		stop:      make(chan struct{}),
	}
	for _, p := range loaded {
		pb.peers[p.Key()] = p
	}
	pb.wg.Add(1)
	go pb.maintain()
	return pb, nil
}

func (pb *PeerBook) Close() {
	close(pb.stop)
	pb.wg.Wait()
}

// AddFresh inserts unknown addresses as candidate peers with empty
// capabilities (spec §4.10 add_fresh).
func (pb *PeerBook) AddFresh(addrs []net.TCPAddr) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	for _, a := range addrs {
		key := a.String()
		if _, exists := pb.peers[key]; exists {
			continue
		}
		pb.peers[key] = NewPeer(a)
	}
}

// GetNewPeer picks a peer that is not connected, not banned, and whose last
// attempt was more than peerRetryWindow ago, preferring the requested
// capability and falling back to UNKNOWN (spec §4.10 get_new_peer).
func (pb *PeerBook) GetNewPeer(preferred Capabilities) (*Peer, bool) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	var fallback []*Peer
	var matched []*Peer
	for _, p := range pb.peers {
		if pb.connected(p.Addr) || p.IsBanned() {
			continue
		}
		if time.Since(p.LastContact()) < peerRetryWindow {
			continue
		}
		if p.Capabilities.Has(preferred) {
			matched = append(matched, p)
		} else {
			fallback = append(fallback, p)
		}
	}
	if len(matched) > 0 {
		return matched[rand.Intn(len(matched))], true
	}
	if len(fallback) > 0 {
		return fallback[rand.Intn(len(fallback))], true
	}
	return nil, false
}

// GetPeers returns up to max peers advertising cap, for gossip replies
// (spec §4.6 GetPeerAddrs, §4.10 get_peers).
func (pb *PeerBook) GetPeers(cap Capabilities, max int) []*Peer {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	out := make([]*Peer, 0, max)
	for _, p := range pb.peers {
		if len(out) >= max {
			break
		}
		if cap == CapUnknown || p.Capabilities.Has(cap) {
			out = append(out, p)
		}
	}
	return out
}

func (pb *PeerBook) Ban(addr net.TCPAddr, reason BanReason) {
	pb.mu.RLock()
	p, ok := pb.peers[addr.String()]
	pb.mu.RUnlock()
	if ok {
		p.Ban(reason)
	}
}

func (pb *PeerBook) Unban(addr net.TCPAddr) {
	pb.mu.RLock()
	p, ok := pb.peers[addr.String()]
	pb.mu.RUnlock()
	if ok {
		p.Unban()
	}
}

func (pb *PeerBook) Get(addr net.TCPAddr) (*Peer, bool) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	p, ok := pb.peers[addr.String()]
	return p, ok
}

// maintain flushes dirty peers every 15s and evicts peers with no contact
// in the last 7 days (spec §4.10).
func (pb *PeerBook) maintain() {
	defer pb.wg.Done()
	ticker := time.NewTicker(peerFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-pb.stop:
			return
		case <-ticker.C:
			pb.flushAndEvict()
		}
	}
}

func (pb *PeerBook) flushAndEvict() {
	pb.mu.Lock()
	var dirty []*Peer
	var stale []*Peer
	now := time.Now()
	for key, p := range pb.peers {
		if p.TakeDirty() {
			dirty = append(dirty, p)
		}
		if now.Sub(p.LastContact()) > noContactEvictionWindow {
			stale = append(stale, p)
			delete(pb.peers, key)
		}
	}
	pb.mu.Unlock()

	if len(dirty) > 0 {
		if err := pb.db.SaveMany(dirty); err != nil {
			log.Warn("failed to flush peer book", "err", err)
		}
	}
	if len(stale) > 0 {
		if err := pb.db.DeleteMany(stale); err != nil {
			log.Warn("failed to evict stale peers", "err", err)
		}
	}
}
