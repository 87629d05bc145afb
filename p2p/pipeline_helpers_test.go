package p2p

import (
	"context"
	"sync"
)

// recordingChain is a fake BlockChain whose mutating calls are counted and
// whose results are scripted, for exercising the pipelines without a real
// consensus/storage implementation.
type recordingChain struct {
	mu sync.Mutex

	addBlockResult       ChainResult
	addBlockCalls        int
	addTransactionResult ChainResult
	addTransactionCalls  int
	processTxHashSetErr  error
}

func (c *recordingChain) TipHeader(ctx context.Context) (BlockHeader, error) { return BlockHeader{}, nil }
func (c *recordingChain) HeaderByHash(ctx context.Context, h Hash) (BlockHeader, bool, error) {
	return BlockHeader{}, false, nil
}
func (c *recordingChain) HeaderByHeight(ctx context.Context, height uint64) (BlockHeader, bool, error) {
	return BlockHeader{}, false, nil
}
func (c *recordingChain) Height(ctx context.Context) uint64          { return 0 }
func (c *recordingChain) TotalDifficulty(ctx context.Context) uint64 { return 0 }
func (c *recordingChain) AddHeader(ctx context.Context, h BlockHeader) ChainResult {
	return ResultSuccess
}
func (c *recordingChain) AddHeaders(ctx context.Context, hs []BlockHeader) ChainResult {
	return ResultSuccess
}
func (c *recordingChain) BlockByHash(ctx context.Context, h Hash) (Block, bool, error) {
	return Block{}, false, nil
}
func (c *recordingChain) CompactBlockByHash(ctx context.Context, h Hash) (CompactBlock, bool, error) {
	return CompactBlock{}, false, nil
}
func (c *recordingChain) AddBlock(ctx context.Context, b Block) ChainResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addBlockCalls++
	return c.addBlockResult
}
func (c *recordingChain) AddCompactBlock(ctx context.Context, cb CompactBlock) ChainResult {
	return ResultSuccess
}
func (c *recordingChain) ProcessNextOrphanBlock(ctx context.Context) ChainResult { return ResultOther }
func (c *recordingChain) AddTransaction(ctx context.Context, tx []byte, pool PoolType) ChainResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addTransactionCalls++
	return c.addTransactionResult
}
func (c *recordingChain) TxByKernelHash(ctx context.Context, kernelHash Hash) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *recordingChain) SnapshotTxHashSet(ctx context.Context, header BlockHeader) (string, int64, error) {
	return "", 0, nil
}
func (c *recordingChain) ProcessTxHashSet(ctx context.Context, hash Hash, path string, status *SyncStatus) error {
	return c.processTxHashSetErr
}
func (c *recordingChain) BlocksNeeded(ctx context.Context, n int) ([]HeightHash, error) {
	return nil, nil
}
func (c *recordingChain) HasBlock(height uint64, hash Hash) bool { return false }
func (c *recordingChain) UpdateSyncStatus(status *SyncStatus)    {}

func (c *recordingChain) calls() (addBlock, addTx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addBlockCalls, c.addTransactionCalls
}
