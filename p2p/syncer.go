package p2p

import (
	"context"
	"sync"
	"time"
)

// Syncer is the top-level task that wakes roughly every 10 ms and drives
// the three sub-state-machines in a fixed order: the first one that claims
// work wins the tick, and the rest are not evaluated (spec §4.8).
type Syncer struct {
	chain   BlockChain
	connMgr *ConnectionManager
	status  *SyncStatus

	headers *HeaderSyncer
	state   *StateSyncer
	blocks  *BlockSyncer

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewSyncer(netw Network, chain BlockChain, connMgr *ConnectionManager, status *SyncStatus, pipe *TxHashSetPipe) *Syncer {
	return &Syncer{
		chain: chain, connMgr: connMgr, status: status,
		headers: NewHeaderSyncer(netw, chain, connMgr, status),
		state:   NewStateSyncer(netw, chain, connMgr, status, pipe),
		blocks:  NewBlockSyncer(netw, chain, connMgr, status),
		stop:    make(chan struct{}),
	}
}

func (s *Syncer) Start() {
	s.wg.Add(1)
	go s.loop()
}

func (s *Syncer) Close() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Syncer) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(forceSyncTick)
	defer ticker.Stop()
	ctx := context.Background()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Syncer) tick(ctx context.Context) {
	s.status.SetNumConnections(s.connMgr.Count())

	if s.connMgr.Count() < minPeersToSync {
		s.status.SetPhase(PhaseNoSync)
		return
	}

	s.refreshStatus(ctx)

	if s.headers.Tick(ctx) {
		return
	}
	if s.state.Tick(ctx) {
		return
	}
	if s.blocks.Tick(ctx) {
		return
	}
	s.status.SetPhase(PhaseDone)
}

func (s *Syncer) refreshStatus(ctx context.Context) {
	tip, err := s.chain.TipHeader(ctx)
	if err != nil {
		return
	}
	s.status.SetHeaderHeight(tip.Height)
	s.status.SetHeadHeight(s.chain.Height(ctx))
	s.status.SetHeadDifficulty(s.chain.TotalDifficulty(ctx))

	var bestTD, bestHeight uint64
	for _, cp := range s.connMgr.Peers() {
		td, h := cp.Tip()
		if td > bestTD {
			bestTD = td
		}
		if h > bestHeight {
			bestHeight = h
		}
	}
	s.status.SetNetworkHeight(bestHeight)
	s.status.SetNetworkDifficulty(bestTD)
}
