package p2p

import "net"

// PeerDB is the persistence boundary for the peer directory, keyed by IP
// address (spec §4.10, §6). A concrete implementation (e.g. backed by
// leveldb/bolt) lives outside this module; PeerBook only needs this
// interface.
type PeerDB interface {
	LoadAll() ([]*Peer, error)
	SaveMany(peers []*Peer) error
	DeleteMany(peers []*Peer) error
	Get(addr net.TCPAddr) (*Peer, bool, error)
}

// memoryPeerDB is a process-local PeerDB used when no durable store is
// configured (tests, first-run bootstrap before a real store is wired in).
// It is intentionally not a production PeerDB: persisted state is limited
// to the peer book (§6), so a real deployment supplies a disk-backed
// implementation.
type memoryPeerDB struct {
	peers map[string]*Peer
}

func NewMemoryPeerDB() PeerDB {
	return &memoryPeerDB{peers: make(map[string]*Peer)}
}

func (m *memoryPeerDB) LoadAll() ([]*Peer, error) {
	out := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryPeerDB) SaveMany(peers []*Peer) error {
	for _, p := range peers {
		m.peers[p.Key()] = p
	}
	return nil
}

func (m *memoryPeerDB) DeleteMany(peers []*Peer) error {
	for _, p := range peers {
		delete(m.peers, p.Key())
	}
	return nil
}

func (m *memoryPeerDB) Get(addr net.TCPAddr) (*Peer, bool, error) {
	p, ok := m.peers[addr.String()]
	return p, ok, nil
}
