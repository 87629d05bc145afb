package p2p

import (
	"context"
	"net"
	"sync"
	"time"
)

// Seeder keeps outbound connection count at PeerMinPreferredCount, dialing
// from the PeerBook and falling back to DNS seeds when it has no candidate
// (spec §4.11 Seeder).
type Seeder struct {
	deps    ConnDeps
	connMgr *ConnectionManager
	target  int
	runCtx  context.Context

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSeeder builds a Seeder; runCtx bounds the lifetime of every connection
// it dials (cancelled on process shutdown), distinct from the per-dial
// handshake timeout applied inside DialAndRun.
func NewSeeder(runCtx context.Context, deps ConnDeps, target int) *Seeder {
	return &Seeder{deps: deps, connMgr: deps.ConnMgr, target: target, runCtx: runCtx, stop: make(chan struct{})}
}

func (s *Seeder) Start() {
	s.wg.Add(1)
	go s.loop()
}

func (s *Seeder) Close() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Seeder) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(seederTick)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.round()
		}
	}
}

func (s *Seeder) round() {
	s.connMgr.Prune(true)

	outbound := 0
	for _, cp := range s.connMgr.Peers() {
		if cp.Direction == Outbound {
			outbound++
		}
	}
	if outbound >= s.target {
		return
	}

	dials := s.target - outbound
	if dials > seederMaxDialsBurst {
		dials = seederMaxDialsBurst
	}

	dialedAny := false
	for i := 0; i < dials; i++ {
		peer, ok := s.deps.PeerBook.GetNewPeer(CapFullNode)
		if !ok {
			break
		}
		peer.Touch()
		dialedAny = true
		go s.dial(peer.Addr)
	}

	if !dialedAny {
		s.fallbackToDNS()
	}
}

func (s *Seeder) dial(addr net.TCPAddr) {
	if s.connMgr.IsConnectedAddr(addr) {
		return
	}
	if err := DialAndRun(s.runCtx, addr, s.deps); err != nil {
		log.Debug("outbound dial failed", "addr", addr.String(), "err", err)
	}
}

func (s *Seeder) fallbackToDNS() {
	addrs := resolveDNSSeeds(s.deps.Network)
	if len(addrs) == 0 {
		return
	}
	s.deps.PeerBook.AddFresh(addrs)

	frame := Encode(s.deps.Network, MsgGetPeerAddrs, encodeGetPeerAddrs(GetPeerAddrsPayload{Capabilities: CapFullNode}))
	for _, cp := range s.connMgr.Peers() {
		_ = cp.Send(frame)
	}
}
