package p2p

import (
	"context"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// blockJob is one pipeline entry, carrying the originating connection so a
// validation failure can be attributed to a ban (spec §4.7).
type blockJob struct {
	block  Block
	peerID uint64
}

// BlockPipe validates inbound blocks in parallel, deduplicated by hash, plus
// a dedicated worker draining the orphan backlog (spec §4.7 BlockPipe).
type BlockPipe struct {
	chain BlockChain
	bans  func(peerID uint64, reason BanReason)
	seen  *lru.Cache

	jobs chan blockJob
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewBlockPipe starts workers (CPU-count) plus the orphan-draining worker.
func NewBlockPipe(chain BlockChain, bans func(uint64, BanReason)) *BlockPipe {
	seen, _ := lru.New(4096)
	bp := &BlockPipe{
		chain: chain,
		bans:  bans,
		seen:  seen,
		jobs:  make(chan blockJob, 256),
		stop:  make(chan struct{}),
	}
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		bp.wg.Add(1)
		go bp.worker()
	}
	bp.wg.Add(1)
	go bp.orphanWorker()
	return bp
}

func (bp *BlockPipe) Close() {
	close(bp.stop)
	bp.wg.Wait()
}

// Submit enqueues a block for validation, coalescing concurrent duplicates
// by hash (spec testable property 7).
func (bp *BlockPipe) Submit(b Block, peerID uint64) {
	if _, ok := bp.seen.Get(b.Header.Hash); ok {
		return
	}
	bp.seen.Add(b.Header.Hash, struct{}{})
	select {
	case bp.jobs <- blockJob{block: b, peerID: peerID}:
	case <-bp.stop:
	default:
		log.Warn("block pipe full, dropping block", "hash", b.Header.Hash)
	}
}

func (bp *BlockPipe) worker() {
	defer bp.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-bp.stop:
			return
		case job := <-bp.jobs:
			switch bp.chain.AddBlock(ctx, job.block) {
			case ResultInvalid:
				bp.bans(job.peerID, BanReasonBadBlock)
			case ResultOrphaned:
				log.Debug("orphan block received", "hash", job.block.Header.Hash)
			}
		}
	}
}

// orphanWorker repeatedly drains out-of-order arrivals; a single worker
// guarantees single-advancement of the orphan chain (spec §4.7).
func (bp *BlockPipe) orphanWorker() {
	defer bp.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-bp.stop:
			return
		default:
		}
		if bp.chain.ProcessNextOrphanBlock(ctx) == ResultOther {
			select {
			case <-bp.stop:
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
}
