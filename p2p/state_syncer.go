package p2p

import (
	"context"
	"time"
)

// StateSyncer drives the second sync phase: fetching a TxHashSet snapshot
// once headers have caught up past the cut-through horizon (spec §4.8
// StateSyncer).
type StateSyncer struct {
	netw    Network
	chain   BlockChain
	connMgr *ConnectionManager
	status  *SyncStatus
	pipe    *TxHashSetPipe

	peerID    uint64
	startedAt time.Time
	lastBytes int64
	lastProgressAt time.Time
	requested bool
}

func NewStateSyncer(netw Network, chain BlockChain, connMgr *ConnectionManager, status *SyncStatus, pipe *TxHashSetPipe) *StateSyncer {
	return &StateSyncer{netw: netw, chain: chain, connMgr: connMgr, status: status, pipe: pipe}
}

// Active reports whether state sync is needed: headers are within the
// cut-through horizon but blocks trail by more than CUT_THROUGH_HORIZON,
// and no import is currently processing (spec §4.8).
func (ss *StateSyncer) Active() bool {
	if ss.status.Phase() == PhaseStateSync && ss.pipe.Active() {
		return false
	}
	headerHeight := ss.status.HeaderHeight()
	headHeight := ss.status.HeadHeight()
	return headerHeight > headHeight+cutThroughHorizon
}

func (ss *StateSyncer) Tick(ctx context.Context) bool {
	if !ss.Active() {
		return false
	}

	if ss.requested {
		if ss.timedOut() {
			ss.connMgr.Ban(ss.peerID, BanReasonBadTxHashSet)
			ss.requested = false
			ss.peerID = 0
		}
		return true
	}

	ss.status.SetPhase(PhaseStateSync)
	requestedHeight := ss.status.HeaderHeight() - stateSyncThreshold
	header, ok, err := ss.chain.HeaderByHeight(ctx, requestedHeight)
	if err != nil || !ok {
		return true
	}

	frame := Encode(ss.netw, MsgTxHashSetRequest, encodeTxHashSetRequest(TxHashSetRequestPayload{
		Hash: header.Hash, Height: header.Height,
	}))
	peerID, err := ss.connMgr.SendToMostWorkPeer(frame)
	if err != nil {
		return true
	}
	ss.peerID = peerID
	ss.requested = true
	ss.startedAt = time.Now()
	ss.lastProgressAt = time.Now()
	ss.lastBytes = 0
	return true
}

func (ss *StateSyncer) timedOut() bool {
	if !ss.connMgr.IsConnectedID(ss.peerID) {
		return true
	}
	if time.Since(ss.startedAt) >= stateSyncTimeout {
		return true
	}
	downloaded, _ := ss.status.StateProgress()
	if downloaded != ss.lastBytes {
		ss.lastBytes = downloaded
		ss.lastProgressAt = time.Now()
		return false
	}
	return time.Since(ss.lastProgressAt) >= stateSyncStallTimeout
}
