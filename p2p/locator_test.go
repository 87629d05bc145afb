package p2p

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearChain is a fake BlockChain with one header per height, hash ==
// height encoded little-endian in the first 3 bytes, used only to exercise
// BuildLocator.
type linearChain struct{ tip uint64 }

func (c *linearChain) TipHeader(ctx context.Context) (BlockHeader, error) {
	return c.headerAt(c.tip), nil
}
func (c *linearChain) headerAt(h uint64) BlockHeader {
	var hash Hash
	hash[0] = byte(h)
	hash[1] = byte(h >> 8)
	hash[2] = byte(h >> 16)
	return BlockHeader{Hash: hash, Height: h}
}
func (c *linearChain) HeaderByHash(ctx context.Context, h Hash) (BlockHeader, bool, error) {
	return BlockHeader{}, false, nil
}
func (c *linearChain) HeaderByHeight(ctx context.Context, height uint64) (BlockHeader, bool, error) {
	if height > c.tip {
		return BlockHeader{}, false, nil
	}
	return c.headerAt(height), true, nil
}
func (c *linearChain) Height(ctx context.Context) uint64          { return c.tip }
func (c *linearChain) TotalDifficulty(ctx context.Context) uint64 { return c.tip }
func (c *linearChain) AddHeader(ctx context.Context, h BlockHeader) ChainResult {
	return ResultSuccess
}
func (c *linearChain) AddHeaders(ctx context.Context, hs []BlockHeader) ChainResult {
	return ResultSuccess
}
func (c *linearChain) BlockByHash(ctx context.Context, h Hash) (Block, bool, error) {
	return Block{}, false, nil
}
func (c *linearChain) CompactBlockByHash(ctx context.Context, h Hash) (CompactBlock, bool, error) {
	return CompactBlock{}, false, nil
}
func (c *linearChain) AddBlock(ctx context.Context, b Block) ChainResult { return ResultSuccess }
func (c *linearChain) AddCompactBlock(ctx context.Context, cb CompactBlock) ChainResult {
	return ResultSuccess
}
func (c *linearChain) ProcessNextOrphanBlock(ctx context.Context) ChainResult { return ResultOther }
func (c *linearChain) AddTransaction(ctx context.Context, tx []byte, pool PoolType) ChainResult {
	return ResultSuccess
}
func (c *linearChain) TxByKernelHash(ctx context.Context, kernelHash Hash) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *linearChain) SnapshotTxHashSet(ctx context.Context, header BlockHeader) (string, int64, error) {
	return "", 0, nil
}
func (c *linearChain) ProcessTxHashSet(ctx context.Context, hash Hash, path string, status *SyncStatus) error {
	return nil
}
func (c *linearChain) BlocksNeeded(ctx context.Context, n int) ([]HeightHash, error) {
	return nil, nil
}
func (c *linearChain) HasBlock(height uint64, hash Hash) bool { return false }
func (c *linearChain) UpdateSyncStatus(status *SyncStatus)    {}

func TestBuildLocatorEndsAtGenesis(t *testing.T) {
	chain := &linearChain{tip: 10000}
	loc, err := BuildLocator(context.Background(), chain, chain.tip)
	require.NoError(t, err)
	require.NotEmpty(t, loc.Hashes)
	assert.Equal(t, chain.headerAt(0).Hash, loc.Hashes[len(loc.Hashes)-1])
	assert.LessOrEqual(t, len(loc.Hashes), MaxLocators)
}

func TestBuildLocatorShortChain(t *testing.T) {
	chain := &linearChain{tip: 3}
	loc, err := BuildLocator(context.Background(), chain, chain.tip)
	require.NoError(t, err)
	assert.Equal(t, chain.headerAt(0).Hash, loc.Hashes[len(loc.Hashes)-1])
}
