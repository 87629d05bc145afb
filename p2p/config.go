package p2p

import "time"

// Network selects the magic bytes and DNS seed list a node uses to find peers
// on the same chain (spec §3 "Protocol constants").
type Network int

const (
	Mainnet Network = iota
	Floonet
)

// ProtocolVersion is the current wire-protocol version this node speaks.
const ProtocolVersion = 1

// UserAgent identifies this implementation in the Hand/Shake exchange.
const UserAgent = "MW/Go 0.1.0"

// DefaultPort is the TCP port grin nodes listen on absent user override.
const DefaultPort = 13414

// Wire-stable protocol constants (spec §3).
const (
	MaxBlockHeaders = 512
	MaxBlockBodies  = 16
	MaxPeerAddrs    = 256
	MaxLocators     = 20
	BanWindow       = 10800 * time.Second

	PeerMaxCount            = 25
	PeerMinPreferredCount   = 8
	pingInterval            = 10 * time.Second
	idleTimeout             = 30 * time.Second
	handshakeTimeout        = 8 * time.Second
	connectionLoopSleep     = 5 * time.Millisecond
	headerSyncTimeout       = 12 * time.Second
	stateSyncTimeout        = 20 * time.Minute
	stateSyncStallTimeout   = 30 * time.Second
	blockRequestTimeout     = 10 * time.Second
	blockRequestRetryDelay  = 5 * time.Second
	txHashSetRateLimit      = 2 * time.Hour
	txHashSetChunkSize      = 256 * 1024
	txHashSetRecvTimeout    = 10 * time.Second
	socketRateLimitPerMin   = 500
	noContactEvictionWindow = 7 * 24 * time.Hour
	peerFlushInterval       = 15 * time.Second

	forceSyncTick  = 10 * time.Millisecond
	minPeersToSync = 4

	cutThroughHorizon  = 5 * 24 * 60 * 60 / 60 // five days of 1-minute blocks, in blocks
	stateSyncThreshold = 2 * 60                // blocks below the header tip at which the state snapshot is requested

	seederTick          = 100 * time.Millisecond
	seederMaxDialsBurst = 15
)

// magicBytes returns the 2-byte frame magic for the given network (spec §3,
// §4.1; ported from original_source P2P/Common.h's MAGIC_BYTES).
func magicBytes(n Network) [2]byte {
	switch n {
	case Floonet:
		return [2]byte{0x46, 0x35}
	default:
		return [2]byte{0x53, 0x35}
	}
}

// Config carries the tunables this component owns. It deliberately excludes
// node-wide bootstrap concerns (data directories, RPC, wallet) per spec §1's
// Non-goals. PeerMax and DandelionEmbargoSeconds are carried and loaded
// from TOML but not read by the P2P core; the listener's inbound cap is the
// PeerMaxCount constant.
type Config struct {
	Network        Network `toml:"-"`
	ListenAddr     string  `toml:"listen_addr"`
	GenesisHash    [32]byte `toml:"-"`
	PeerMax        int     `toml:"peer_max"`
	PeerMinPreferred int   `toml:"peer_min_preferred"`
	DandelionPatienceSeconds int `toml:"dandelion_patience_seconds"`
	DandelionRelaySeconds    int `toml:"dandelion_relay_seconds"`
	DandelionEmbargoSeconds  int `toml:"dandelion_embargo_seconds"`
	AllowUPnP      bool    `toml:"allow_upnp"`
}

// DefaultConfig exposes sane defaults as a package-level var, the common
// devp2p config idiom.
var DefaultConfig = Config{
	Network:                  Mainnet,
	ListenAddr:               ":13414",
	PeerMax:                  PeerMaxCount,
	PeerMinPreferred:         PeerMinPreferredCount,
	DandelionPatienceSeconds: 10,
	DandelionRelaySeconds:    600,
	DandelionEmbargoSeconds:  180,
	AllowUPnP:                true,
}
