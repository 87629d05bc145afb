package p2p

// Capabilities is a bitset advertised in the Hand/Shake exchange describing
// what a peer is willing to serve (spec §3).
type Capabilities uint32

const (
	CapUnknown Capabilities = 0
	// CapFullHist: peer has full transaction history, not just a recent window.
	CapFullHist Capabilities = 1 << 0
	// CapTxHashSetHist: peer can serve a TxHashSet snapshot to a fast-sync node.
	CapTxHashSetHist Capabilities = 1 << 1
	// CapPeerList: peer can answer GetPeerAddrs.
	CapPeerList Capabilities = 1 << 2
	// CapFastSyncNode: peer prefers to stay pruned and serve snapshots, not full history.
	CapFastSyncNode Capabilities = 1 << 3
)

// CapFullNode is the capability set a fully-synced archival node advertises.
const CapFullNode = CapFullHist | CapTxHashSetHist | CapPeerList

func (c Capabilities) Has(flag Capabilities) bool { return c&flag == flag }
