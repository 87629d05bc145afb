package main

import (
	"context"
	"sync"

	"github.com/grinpp/grin-go/p2p"
)

// devChain is a minimal in-memory stand-in for the consensus/storage layer
// that a real deployment plugs in behind p2p.BlockChain. It records the
// headers it is given (a block contributes only its header) and accepts
// headers/blocks/transactions without validating them, enough to let the P2P core run end-to-end (handshake, sync, relay)
// without a full chain implementation, which is out of this module's scope.
type devChain struct {
	mu      sync.RWMutex
	headers map[p2p.Hash]p2p.BlockHeader
	byHeight map[uint64]p2p.Hash
	tip     p2p.Hash
	height  uint64
	td      uint64
}

func newDevChain(genesis p2p.BlockHeader) *devChain {
	c := &devChain{
		headers:  make(map[p2p.Hash]p2p.BlockHeader),
		byHeight: make(map[uint64]p2p.Hash),
	}
	c.headers[genesis.Hash] = genesis
	c.byHeight[genesis.Height] = genesis.Hash
	c.tip = genesis.Hash
	c.height = genesis.Height
	c.td = genesis.TotalDifficulty
	return c
}

func (c *devChain) TipHeader(ctx context.Context) (p2p.BlockHeader, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headers[c.tip], nil
}

func (c *devChain) HeaderByHash(ctx context.Context, h p2p.Hash) (p2p.BlockHeader, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hdr, ok := c.headers[h]
	return hdr, ok, nil
}

func (c *devChain) HeaderByHeight(ctx context.Context, height uint64) (p2p.BlockHeader, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byHeight[height]
	if !ok {
		return p2p.BlockHeader{}, false, nil
	}
	return c.headers[h], true, nil
}

func (c *devChain) Height(ctx context.Context) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

func (c *devChain) TotalDifficulty(ctx context.Context) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.td
}

func (c *devChain) AddHeader(ctx context.Context, h p2p.BlockHeader) p2p.ChainResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.headers[h.Hash]; ok {
		return p2p.ResultAlreadyExists
	}
	if _, ok := c.headers[h.PrevHash]; !ok && h.Height != 0 {
		return p2p.ResultOrphaned
	}
	c.headers[h.Hash] = h
	c.byHeight[h.Height] = h.Hash
	if h.TotalDifficulty > c.td {
		c.tip, c.height, c.td = h.Hash, h.Height, h.TotalDifficulty
	}
	return p2p.ResultSuccess
}

func (c *devChain) AddHeaders(ctx context.Context, hs []p2p.BlockHeader) p2p.ChainResult {
	result := p2p.ResultSuccess
	for _, h := range hs {
		if r := c.AddHeader(ctx, h); r == p2p.ResultInvalid {
			return r
		} else if r != p2p.ResultSuccess {
			result = r
		}
	}
	return result
}

func (c *devChain) BlockByHash(ctx context.Context, h p2p.Hash) (p2p.Block, bool, error) {
	return p2p.Block{}, false, nil
}

func (c *devChain) CompactBlockByHash(ctx context.Context, h p2p.Hash) (p2p.CompactBlock, bool, error) {
	return p2p.CompactBlock{}, false, nil
}

func (c *devChain) AddBlock(ctx context.Context, b p2p.Block) p2p.ChainResult {
	return c.AddHeader(ctx, b.Header)
}

func (c *devChain) AddCompactBlock(ctx context.Context, cb p2p.CompactBlock) p2p.ChainResult {
	return c.AddHeader(ctx, cb.Header)
}

func (c *devChain) ProcessNextOrphanBlock(ctx context.Context) p2p.ChainResult {
	return p2p.ResultOther
}

func (c *devChain) AddTransaction(ctx context.Context, tx []byte, pool p2p.PoolType) p2p.ChainResult {
	return p2p.ResultSuccess
}

func (c *devChain) TxByKernelHash(ctx context.Context, kernelHash p2p.Hash) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *devChain) SnapshotTxHashSet(ctx context.Context, header p2p.BlockHeader) (string, int64, error) {
	return "", 0, nil
}

func (c *devChain) ProcessTxHashSet(ctx context.Context, hash p2p.Hash, path string, status *p2p.SyncStatus) error {
	return nil
}

func (c *devChain) BlocksNeeded(ctx context.Context, n int) ([]p2p.HeightHash, error) {
	return nil, nil
}

func (c *devChain) HasBlock(height uint64, hash p2p.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byHeight[height]
	return ok && h == hash
}

func (c *devChain) UpdateSyncStatus(status *p2p.SyncStatus) {}

// devPool is an always-empty TxPool; a real node wires its mempool/stempool
// here instead.
type devPool struct{}

func (devPool) NextStemTx(ctx context.Context) ([]byte, bool)    { return nil, false }
func (devPool) NextFluffTx(ctx context.Context) ([]byte, bool)   { return nil, false }
func (devPool) ExpiredTransactions(ctx context.Context) [][]byte { return nil }
