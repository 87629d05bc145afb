package p2p

import (
	"context"
	"io"
	"os"
	"sync/atomic"
)

// TxHashSetPipe serializes TxHashSet snapshot imports: at most one active
// download/import at a time (spec §4.7 TxHashSetPipe, testable property 6).
type TxHashSetPipe struct {
	chain  BlockChain
	status *SyncStatus
	bans   func(peerID uint64, reason BanReason)

	active int32 // atomic bool
}

func NewTxHashSetPipe(chain BlockChain, status *SyncStatus, bans func(uint64, BanReason)) *TxHashSetPipe {
	return &TxHashSetPipe{chain: chain, status: status, bans: bans}
}

// Receive streams size bytes from r into a temp file, 256 KiB at a time,
// then imports it. If an import is already in flight, the second archive is
// refused with a warning and no state change (property 6).
func (tp *TxHashSetPipe) Receive(ctx context.Context, r io.Reader, hash Hash, height uint64, size int64, peerID uint64) {
	if !atomic.CompareAndSwapInt32(&tp.active, 0, 1) {
		log.Warn("txhashset import already in progress, refusing second archive", "peer", peerID)
		return
	}
	defer atomic.StoreInt32(&tp.active, 0)

	f, err := os.CreateTemp("", "txhashset-*.zip")
	if err != nil {
		log.Error("failed to create txhashset temp file", "err", err)
		return
	}
	path := f.Name()
	defer os.Remove(path)
	defer f.Close()

	buf := make([]byte, txHashSetChunkSize)
	var downloaded int64
	for downloaded < size {
		want := int64(len(buf))
		if remain := size - downloaded; remain < want {
			want = remain
		}
		n, err := io.ReadFull(r, buf[:want])
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				log.Error("failed writing txhashset chunk", "err", werr)
				return
			}
			downloaded += int64(n)
			tp.status.SetStateProgress(downloaded, size)
		}
		if err != nil {
			log.Warn("txhashset transfer ended early", "peer", peerID, "downloaded", downloaded, "want", size)
			tp.bans(peerID, BanReasonBadTxHashSet)
			tp.status.SetPhase(PhaseStateSync)
			return
		}
	}

	tp.status.SetPhase(PhaseStateSync)
	if err := tp.chain.ProcessTxHashSet(ctx, hash, path, tp.status); err != nil {
		log.Warn("invalid txhashset snapshot", "peer", peerID, "err", err)
		tp.bans(peerID, BanReasonBadTxHashSet)
		return
	}
}

func (tp *TxHashSetPipe) Active() bool { return atomic.LoadInt32(&tp.active) == 1 }
