package p2p

import "sync/atomic"

// SyncPhase is the node's current position in the three-stage Syncer state
// machine (spec §5).
type SyncPhase int32

const (
	PhaseNoSync SyncPhase = iota
	PhaseHeaderSync
	PhaseStateSync
	PhaseBlockSync
	PhaseDone
)

var syncPhaseNames = [...]string{"no_sync", "header_sync", "state_sync", "block_sync", "done"}

func (p SyncPhase) String() string {
	if int(p) < 0 || int(p) >= len(syncPhaseNames) {
		return "unknown"
	}
	return syncPhaseNames[p]
}

// SyncStatus is a process-wide, lock-free view of sync progress, read by
// status RPCs and written by the Syncer, its stages and TxHashSetPipe.
// Each field is independently atomic rather than guarded
// by one lock, the same per-field atomics style a devp2p peer set or
// downloader progress tracker uses. Fields cover §3's SyncStatus: phase,
// connection count, local/network chain position, and the two in-flight
// transfer progress counters (state download, block processing).
type SyncStatus struct {
	phase             int32
	numConns          int32
	headerHeight      uint64
	headHeight        uint64
	headDifficulty    uint64
	networkHeight     uint64
	networkDifficulty uint64
	stateEta          int64 // unix seconds, 0 if unknown

	stateDownloaded int64
	stateTotal      int64

	processed    int64
	processTotal int64
}

func (s *SyncStatus) Phase() SyncPhase     { return SyncPhase(atomic.LoadInt32(&s.phase)) }
func (s *SyncStatus) SetPhase(p SyncPhase) { atomic.StoreInt32(&s.phase, int32(p)) }

func (s *SyncStatus) NumConnections() int     { return int(atomic.LoadInt32(&s.numConns)) }
func (s *SyncStatus) SetNumConnections(n int) { atomic.StoreInt32(&s.numConns, int32(n)) }

func (s *SyncStatus) HeaderHeight() uint64     { return atomic.LoadUint64(&s.headerHeight) }
func (s *SyncStatus) SetHeaderHeight(h uint64) { atomic.StoreUint64(&s.headerHeight, h) }

func (s *SyncStatus) HeadHeight() uint64     { return atomic.LoadUint64(&s.headHeight) }
func (s *SyncStatus) SetHeadHeight(h uint64) { atomic.StoreUint64(&s.headHeight, h) }

func (s *SyncStatus) HeadDifficulty() uint64     { return atomic.LoadUint64(&s.headDifficulty) }
func (s *SyncStatus) SetHeadDifficulty(d uint64) { atomic.StoreUint64(&s.headDifficulty, d) }

func (s *SyncStatus) NetworkHeight() uint64     { return atomic.LoadUint64(&s.networkHeight) }
func (s *SyncStatus) SetNetworkHeight(h uint64) { atomic.StoreUint64(&s.networkHeight, h) }

func (s *SyncStatus) NetworkDifficulty() uint64     { return atomic.LoadUint64(&s.networkDifficulty) }
func (s *SyncStatus) SetNetworkDifficulty(d uint64) { atomic.StoreUint64(&s.networkDifficulty, d) }

func (s *SyncStatus) StateSyncETA() int64     { return atomic.LoadInt64(&s.stateEta) }
func (s *SyncStatus) SetStateSyncETA(t int64) { atomic.StoreInt64(&s.stateEta, t) }

// SetStateProgress records TxHashSet download progress, in bytes, for status
// reporting during StateSyncer's fetch (spec §5.2).
func (s *SyncStatus) SetStateProgress(downloaded, total int64) {
	atomic.StoreInt64(&s.stateDownloaded, downloaded)
	atomic.StoreInt64(&s.stateTotal, total)
}

func (s *SyncStatus) StateProgress() (downloaded, total int64) {
	return atomic.LoadInt64(&s.stateDownloaded), atomic.LoadInt64(&s.stateTotal)
}

// SetProcessProgress records block-processing progress during BlockSyncer's
// catch-up replay (spec §5.3).
func (s *SyncStatus) SetProcessProgress(done, total int64) {
	atomic.StoreInt64(&s.processed, done)
	atomic.StoreInt64(&s.processTotal, total)
}

func (s *SyncStatus) ProcessProgress() (done, total int64) {
	return atomic.LoadInt64(&s.processed), atomic.LoadInt64(&s.processTotal)
}

// IsSynced reports whether the node believes itself caught up with the
// network tip: the sync phase is Done and the head height has reached the
// network height. Nothing in this package consults it.
func (s *SyncStatus) IsSynced() bool {
	return s.Phase() == PhaseDone && s.HeadHeight() >= s.NetworkHeight()
}
