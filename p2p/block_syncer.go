package p2p

import (
	"context"
	"time"
)

type inFlightBlock struct {
	peerID   uint64
	hash     Hash
	deadline time.Time
	retried  bool
}

// BlockSyncer drives the third sync phase: requesting individual blocks by
// height across the most-work peer set in round-robin order (spec §4.8
// BlockSyncer).
type BlockSyncer struct {
	netw    Network
	chain   BlockChain
	connMgr *ConnectionManager
	status  *SyncStatus

	inFlight map[uint64]*inFlightBlock
	rrIndex  int
}

func NewBlockSyncer(netw Network, chain BlockChain, connMgr *ConnectionManager, status *SyncStatus) *BlockSyncer {
	return &BlockSyncer{netw: netw, chain: chain, connMgr: connMgr, status: status, inFlight: make(map[uint64]*inFlightBlock)}
}

// Active reports whether block sync has work: the network tip is more than
// 5 blocks ahead of our local block height (spec §4.8).
func (bs *BlockSyncer) Active() bool {
	return bs.status.NetworkHeight() > bs.status.HeadHeight()+5
}

func (bs *BlockSyncer) Tick(ctx context.Context) bool {
	if !bs.Active() {
		return false
	}
	bs.status.SetPhase(PhaseBlockSync)

	peers := bs.connMgr.MostWorkPeers()
	if len(peers) == 0 {
		return true
	}

	bs.reapTimeouts()

	capacity := blockRequestsPerPeer * len(peers)
	needed, err := bs.chain.BlocksNeeded(ctx, capacity)
	if err != nil {
		log.Warn("failed to list needed blocks", "err", err)
		return true
	}

	for _, hh := range needed {
		if len(bs.inFlight) >= capacity {
			break
		}
		if _, inflight := bs.inFlight[hh.Height]; inflight {
			continue
		}
		peer := peers[bs.rrIndex%len(peers)]
		bs.rrIndex++

		frame := Encode(bs.netw, MsgGetBlock, encodeHashOnly(hh.Hash))
		if err := bs.connMgr.SendToPeer(peer.ID, frame); err != nil {
			continue
		}
		bs.inFlight[hh.Height] = &inFlightBlock{peerID: peer.ID, hash: hh.Hash, deadline: time.Now().Add(blockRequestTimeout)}
	}
	return true
}

// blockRequestsPerPeer is the per-peer fan-out (spec §4.8's "16 x
// num_most_work_peers").
const blockRequestsPerPeer = 16

func (bs *BlockSyncer) reapTimeouts() {
	now := time.Now()
	for height, entry := range bs.inFlight {
		if bs.chain.HasBlock(height, entry.hash) {
			delete(bs.inFlight, height)
			continue
		}
		if now.Before(entry.deadline) {
			continue
		}
		if !entry.retried {
			entry.retried = true
			entry.deadline = now.Add(blockRequestRetryDelay)
			continue
		}
		bs.connMgr.Ban(entry.peerID, BanReasonFraudHeight)
		delete(bs.inFlight, height)
	}
}
