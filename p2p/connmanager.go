package p2p

import (
	"math/rand"
	"net"
	"sync"
)

// broadcastJob is one item on the broadcast dispatcher's MPSC queue.
type broadcastJob struct {
	frame    []byte
	sourceID uint64
}

// ConnectionManager holds the live connection registry and the broadcast
// dispatcher (spec §4.5). The registry is read-mostly: lookups and
// broadcast happen far more often than add/prune/ban, so it is guarded by
// an RWMutex rather than a plain mutex.
type ConnectionManager struct {
	mu    sync.RWMutex
	peers map[uint64]*ConnectedPeer
	bans  map[uint64]BanReason

	broadcastCh chan broadcastJob
	stop        chan struct{}

	nextID uint64
}

// NewConnectionManager builds an empty registry and starts its broadcast
// dispatcher goroutine.
func NewConnectionManager() *ConnectionManager {
	cm := &ConnectionManager{
		peers:       make(map[uint64]*ConnectedPeer),
		bans:        make(map[uint64]BanReason),
		broadcastCh: make(chan broadcastJob, 1024),
		stop:        make(chan struct{}),
	}
	go cm.broadcastLoop()
	return cm
}

func (cm *ConnectionManager) Close() { close(cm.stop) }

// AddConnection registers a connection after a successful handshake.
func (cm *ConnectionManager) AddConnection(cp *ConnectedPeer) {
	cm.mu.Lock()
	cm.peers[cp.ID] = cp
	cm.mu.Unlock()
	peerConnectsMeter.Mark(1)
}

// Prune removes dead or banned connections. When inactiveOnly is true, only
// connections whose Terminated channel has fired are removed; bans are
// always applied regardless (spec §4.5 prune).
func (cm *ConnectionManager) Prune(inactiveOnly bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for id, cp := range cm.peers {
		_, banned := cm.bans[id]
		active := !isClosed(cp.Terminated())
		if banned {
			cp.Ban(cm.bans[id])
			cp.Terminate()
			cp.Conn.Close()
			delete(cm.peers, id)
			delete(cm.bans, id)
			peerDisconnMeter.Mark(1)
			continue
		}
		if inactiveOnly && active {
			continue
		}
		if !active {
			cp.Conn.Close()
			delete(cm.peers, id)
			peerDisconnMeter.Mark(1)
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Ban queues a ban for id; idempotent — the first reason wins until the
// next Prune clears it (spec testable property 9).
func (cm *ConnectionManager) Ban(id uint64, reason BanReason) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.bans[id]; exists {
		return
	}
	cm.bans[id] = reason
	peerBansMeter.Mark(1)
}

// IsConnectedAddr reports whether addr already has a live connection.
func (cm *ConnectionManager) IsConnectedAddr(addr net.TCPAddr) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for _, cp := range cm.peers {
		if cp.Addr.String() == addr.String() {
			return true
		}
	}
	return false
}

func (cm *ConnectionManager) IsConnectedID(id uint64) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.peers[id]
	return ok
}

// Peers returns a snapshot of currently-connected peers.
func (cm *ConnectionManager) Peers() []*ConnectedPeer {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*ConnectedPeer, 0, len(cm.peers))
	for _, cp := range cm.peers {
		out = append(out, cp)
	}
	return out
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.peers)
}

// SendToPeer delivers a pre-encoded frame to a specific connection.
func (cm *ConnectionManager) SendToPeer(id uint64, frame []byte) error {
	cm.mu.RLock()
	cp, ok := cm.peers[id]
	cm.mu.RUnlock()
	if !ok {
		return WrapErr(KindProtocol, ErrNotConnected)
	}
	return cp.Send(frame)
}

// MostWorkPeers returns the set of connected peers whose (total_difficulty,
// height) is lexicographically maximal among peers with height > 0 (spec
// §4.5).
func (cm *ConnectionManager) MostWorkPeers() []*ConnectedPeer {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var bestTD, bestHeight uint64
	var best []*ConnectedPeer
	for _, cp := range cm.peers {
		td, height := cp.Tip()
		if height == 0 {
			continue
		}
		switch {
		case td > bestTD || (td == bestTD && height > bestHeight):
			bestTD, bestHeight = td, height
			best = []*ConnectedPeer{cp}
		case td == bestTD && height == bestHeight:
			best = append(best, cp)
		}
	}
	return best
}

// SendToMostWorkPeer unicasts frame to a uniformly-random member of the
// most-work set, returning its id, or 0 if no peer qualifies (spec §4.5).
func (cm *ConnectionManager) SendToMostWorkPeer(frame []byte) (uint64, error) {
	best := cm.MostWorkPeers()
	if len(best) == 0 {
		return 0, WrapErr(KindProtocol, ErrNotConnected)
	}
	chosen := best[rand.Intn(len(best))]
	if err := chosen.Send(frame); err != nil {
		return 0, err
	}
	return chosen.ID, nil
}

// Broadcast enqueues frame for delivery to every connection except
// sourceID (0 means "no exclusion"). Best-effort: no per-peer ACK (spec
// §4.5, testable property 8).
func (cm *ConnectionManager) Broadcast(frame []byte, sourceID uint64) {
	select {
	case cm.broadcastCh <- broadcastJob{frame: frame, sourceID: sourceID}:
	default:
		log.Warn("broadcast queue full, dropping message")
	}
}

func (cm *ConnectionManager) broadcastLoop() {
	for {
		select {
		case <-cm.stop:
			return
		case job := <-cm.broadcastCh:
			for _, cp := range cm.Peers() {
				if cp.ID == job.sourceID {
					continue
				}
				_ = cp.Send(job.frame)
			}
		}
	}
}

// NextID allocates a process-unique connection id.
func (cm *ConnectionManager) NextID() uint64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.nextID++
	return cm.nextID
}
