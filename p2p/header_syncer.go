package p2p

import (
	"context"
	"time"
)

// HeaderSyncer drives the first sync phase: pulling headers from the
// most-work peer in locator-based batches (spec §4.8 HeaderSyncer).
type HeaderSyncer struct {
	netw    Network
	chain   BlockChain
	connMgr *ConnectionManager
	status  *SyncStatus

	peerID       uint64
	lastProgress time.Time
	lastHeight   uint64
	timeouts     int
}

func NewHeaderSyncer(netw Network, chain BlockChain, connMgr *ConnectionManager, status *SyncStatus) *HeaderSyncer {
	return &HeaderSyncer{netw: netw, chain: chain, connMgr: connMgr, status: status}
}

// Active reports whether header sync should run this tick: the network is
// materially ahead of our header tip (spec §4.8's "network_height >
// local_header_height + 5", relaxed to "> local_header_height" on first
// startup when header height is 0).
func (hs *HeaderSyncer) Active() bool {
	headerHeight := hs.status.HeaderHeight()
	networkHeight := hs.status.NetworkHeight()
	if headerHeight == 0 {
		return networkHeight > headerHeight
	}
	return networkHeight > headerHeight+5
}

// Tick performs one round, returning true if it did work (claiming the
// Syncer's "first sub-machine with work wins" slot for this iteration).
func (hs *HeaderSyncer) Tick(ctx context.Context) bool {
	if !hs.Active() {
		return false
	}
	hs.status.SetPhase(PhaseHeaderSync)

	if hs.due() {
		hs.sendRequest(ctx)
	}
	return true
}

func (hs *HeaderSyncer) due() bool {
	if hs.peerID == 0 {
		return true
	}
	if !hs.connMgr.IsConnectedID(hs.peerID) {
		hs.peerID = 0
		return true
	}
	headerHeight := hs.status.HeaderHeight()
	if headerHeight != hs.lastHeight && headerHeight-hs.lastHeight >= MaxBlockHeaders-1 {
		return true
	}
	if time.Since(hs.lastProgress) >= headerSyncTimeout {
		hs.timeouts++
		if hs.timeouts >= 2 {
			hs.connMgr.Ban(hs.peerID, BanReasonFraudHeight)
			hs.peerID = 0
			hs.timeouts = 0
		}
		return true
	}
	return false
}

func (hs *HeaderSyncer) sendRequest(ctx context.Context) {
	loc, err := BuildLocator(ctx, hs.chain, hs.status.HeaderHeight())
	if err != nil {
		log.Warn("failed to build locator", "err", err)
		return
	}
	frame := Encode(hs.netw, MsgGetHeaders, encodeGetHeaders(GetHeadersPayload{Locator: loc}))

	var err2 error
	if hs.peerID != 0 {
		err2 = hs.connMgr.SendToPeer(hs.peerID, frame)
	} else {
		hs.peerID, err2 = hs.connMgr.SendToMostWorkPeer(frame)
	}
	if err2 != nil {
		hs.peerID = 0
		return
	}
	hs.lastHeight = hs.status.HeaderHeight()
	hs.lastProgress = time.Now()
}
