package p2p

import "context"

// Hash is a 32-byte content hash, used for block, header, transaction and
// kernel identifiers (spec §6).
type Hash = [32]byte

// BlockHeader is the subset of header fields the P2P core needs to route
// and validate sync traffic; the authoritative definition lives in the
// consensus layer this package treats as an external boundary.
type BlockHeader struct {
	Hash            Hash
	PrevHash        Hash
	Height          uint64
	TotalDifficulty uint64
	Timestamp       int64
}

// Block pairs a header with its body. The body is left opaque (raw bytes)
// since the P2P core never inspects kernels/inputs/outputs directly — it
// only moves them between BlockChain and the wire.
type Block struct {
	Header BlockHeader
	Body   []byte
}

// CompactBlock is a block header plus short transaction identifiers, used
// to avoid re-sending transactions already in a peer's mempool.
type CompactBlock struct {
	Header   BlockHeader
	KernelShortIDs [][6]byte
}

// PoolType selects which transaction pool an incoming transaction lands in
// (spec §4.6, §4.9).
type PoolType int

const (
	PoolMemPool PoolType = iota
	PoolStemPool
)

// ChainResult is the outcome of a mutating BlockChain call (spec §6).
type ChainResult int

const (
	ResultSuccess ChainResult = iota
	ResultAlreadyExists
	ResultOrphaned
	ResultInvalid
	ResultTransactionsMissing
	ResultOther
)

// BlockLocator is an ordered set of header hashes used to find the common
// ancestor between two chains, built by BuildLocator (spec §4.8, property 10).
type BlockLocator struct {
	Hashes []Hash
}

// BlockChain is the boundary interface the P2P core consumes; it is
// implemented by the consensus/storage layer, which is out of scope for
// this module (spec §6, §1 Non-goals).
type BlockChain interface {
	TipHeader(ctx context.Context) (BlockHeader, error)
	HeaderByHash(ctx context.Context, h Hash) (BlockHeader, bool, error)
	HeaderByHeight(ctx context.Context, height uint64) (BlockHeader, bool, error)
	Height(ctx context.Context) uint64
	TotalDifficulty(ctx context.Context) uint64

	AddHeader(ctx context.Context, h BlockHeader) ChainResult
	AddHeaders(ctx context.Context, hs []BlockHeader) ChainResult

	BlockByHash(ctx context.Context, h Hash) (Block, bool, error)
	CompactBlockByHash(ctx context.Context, h Hash) (CompactBlock, bool, error)
	AddBlock(ctx context.Context, b Block) ChainResult
	AddCompactBlock(ctx context.Context, cb CompactBlock) ChainResult
	ProcessNextOrphanBlock(ctx context.Context) ChainResult

	AddTransaction(ctx context.Context, tx []byte, pool PoolType) ChainResult
	TxByKernelHash(ctx context.Context, kernelHash Hash) ([]byte, bool, error)

	SnapshotTxHashSet(ctx context.Context, header BlockHeader) (path string, size int64, err error)
	ProcessTxHashSet(ctx context.Context, hash Hash, path string, status *SyncStatus) error

	BlocksNeeded(ctx context.Context, n int) ([]HeightHash, error)
	HasBlock(height uint64, hash Hash) bool

	UpdateSyncStatus(status *SyncStatus)
}

// HeightHash pairs a height with the hash expected at that height, used by
// BlockSyncer's work queue.
type HeightHash struct {
	Height uint64
	Hash   Hash
}

// TxPool is the Dandelion-facing boundary interface (spec §6, §4.9).
type TxPool interface {
	NextStemTx(ctx context.Context) ([]byte, bool)
	NextFluffTx(ctx context.Context) ([]byte, bool)
	ExpiredTransactions(ctx context.Context) [][]byte
}
