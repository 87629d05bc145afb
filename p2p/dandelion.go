package p2p

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Dandelion runs the stem/fluff/expiry tick independently of the Syncer
// (spec §4.9). Failures in any phase are logged and swallowed; Dandelion
// never crashes the node.
type Dandelion struct {
	netw    Network
	chain   BlockChain
	pool    TxPool
	connMgr *ConnectionManager

	patience time.Duration
	relaySeconds int

	mu             sync.Mutex
	relayPeerID    uint64
	relayExpiresAt time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewDandelion(netw Network, chain BlockChain, pool TxPool, connMgr *ConnectionManager, patience time.Duration, relaySeconds int) *Dandelion {
	return &Dandelion{
		netw: netw, chain: chain, pool: pool, connMgr: connMgr,
		patience: patience, relaySeconds: relaySeconds, stop: make(chan struct{}),
	}
}

func (d *Dandelion) Start() {
	d.wg.Add(1)
	go d.loop()
}

func (d *Dandelion) Close() {
	close(d.stop)
	d.wg.Wait()
}

func (d *Dandelion) loop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.patience)
	defer ticker.Stop()
	ctx := context.Background()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dandelion) tick(ctx context.Context) {
	d.stemPhase(ctx)
	d.fluffPhase(ctx)
	d.expiredPhase(ctx)
}

// stemPhase picks (or keeps) a relay, unicasts the next stem transaction to
// it, and falls back to fluffing immediately if the unicast fails (spec
// §4.9 step 1).
func (d *Dandelion) stemPhase(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("dandelion stem phase panicked", "err", r)
		}
	}()

	d.mu.Lock()
	needNewRelay := d.relayExpiresAt.IsZero() || time.Now().After(d.relayExpiresAt)
	if needNewRelay {
		peers := d.connMgr.MostWorkPeers()
		if len(peers) == 0 {
			d.mu.Unlock()
			return
		}
		chosen := peers[rand.Intn(len(peers))]
		d.relayPeerID = chosen.ID
		d.relayExpiresAt = time.Now().Add(time.Duration(d.relaySeconds) * time.Second)
	}
	relayID := d.relayPeerID
	d.mu.Unlock()

	tx, ok := d.pool.NextStemTx(ctx)
	if !ok {
		return
	}
	dandelionStemMeter.Mark(1)
	frame := Encode(d.netw, MsgStemTransaction, encodeTransaction(tx))
	if err := d.connMgr.SendToPeer(relayID, frame); err != nil {
		log.Debug("stem unicast failed, fluffing instead", "err", err)
		d.fluff(ctx, tx, 0)
	}
}

// fluffPhase drains the pool's ready-to-fluff transactions (spec §4.9 step 2).
func (d *Dandelion) fluffPhase(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("dandelion fluff phase panicked", "err", r)
		}
	}()
	for {
		tx, ok := d.pool.NextFluffTx(ctx)
		if !ok {
			return
		}
		d.fluff(ctx, tx, 0)
	}
}

// expiredPhase fluffs any stempool entry past its embargo (spec §4.9 step 3).
func (d *Dandelion) expiredPhase(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("dandelion expiry phase panicked", "err", r)
		}
	}()
	for _, tx := range d.pool.ExpiredTransactions(ctx) {
		d.fluff(ctx, tx, 0)
	}
}

func (d *Dandelion) fluff(ctx context.Context, tx []byte, sourceID uint64) {
	if d.chain.AddTransaction(ctx, tx, PoolMemPool) == ResultInvalid {
		return
	}
	dandelionFluffMeter.Mark(1)
	frame := Encode(d.netw, MsgTransaction, encodeTransaction(tx))
	d.connMgr.Broadcast(frame, sourceID)
}
