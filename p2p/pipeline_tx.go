package p2p

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

type txJob struct {
	tx     []byte
	hash   Hash
	peerID uint64
}

// TxPipe is a single-worker FIFO that hands transactions to the BlockChain's
// mempool, deduplicated by hash (spec §4.7 TxPipe).
type TxPipe struct {
	chain     BlockChain
	broadcast func(frame []byte, sourceID uint64)
	netw      Network
	seen      *lru.Cache

	jobs chan txJob
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewTxPipe(chain BlockChain, netw Network, broadcast func([]byte, uint64)) *TxPipe {
	seen, _ := lru.New(8192)
	tp := &TxPipe{chain: chain, broadcast: broadcast, netw: netw, seen: seen, jobs: make(chan txJob, 512), stop: make(chan struct{})}
	tp.wg.Add(1)
	go tp.worker()
	return tp
}

func (tp *TxPipe) Close() {
	close(tp.stop)
	tp.wg.Wait()
}

// Submit enqueues tx for mempool admission, deduped by hash.
func (tp *TxPipe) Submit(tx []byte, hash Hash, peerID uint64) {
	if _, ok := tp.seen.Get(hash); ok {
		return
	}
	tp.seen.Add(hash, struct{}{})
	select {
	case tp.jobs <- txJob{tx: tx, hash: hash, peerID: peerID}:
	case <-tp.stop:
	default:
		log.Warn("tx pipe full, dropping transaction", "hash", hash)
	}
}

func (tp *TxPipe) worker() {
	defer tp.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-tp.stop:
			return
		case job := <-tp.jobs:
			switch tp.chain.AddTransaction(ctx, job.tx, PoolMemPool) {
			case ResultSuccess:
				propTxnsOutPackets.Mark(1)
				frame := Encode(tp.netw, MsgTransactionKernel, job.hash[:])
				tp.broadcast(frame, job.peerID)
			}
		}
	}
}
