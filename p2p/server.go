package p2p

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/grinpp/grin-go/internal/nataddr"
)

// P2PServer is the control surface exposed to the rest of the node (spec
// §6). It owns every long-lived task's lifetime; Close triggers orderly
// shutdown of all of them.
type P2PServer struct {
	config Config
	netw   Network

	connMgr  *ConnectionManager
	peerBook *PeerBook
	status   *SyncStatus
	chain    BlockChain
	pool     TxPool

	blockPipe     *BlockPipe
	txPipe        *TxPipe
	txHashSetPipe *TxHashSetPipe

	syncer    *Syncer
	dandelion *Dandelion
	seeder    *Seeder
	listener  *Listener

	externalAddr string

	cancel context.CancelFunc
}

// NewP2PServer wires every component described in spec §4 together and
// starts the fixed set of long-lived tasks from §5: one Seeder, one
// Listener, one Syncer, one Dandelion, one broadcast dispatcher (owned by
// ConnectionManager), one PeerBook maintenance task, and the pipeline
// workers.
func NewP2PServer(cfg Config, chain BlockChain, pool TxPool, peerDB PeerDB, nonce uint64) (*P2PServer, error) {
	netw := cfg.Network
	connMgr := NewConnectionManager()
	status := &SyncStatus{}

	localAddr, err := net.ResolveTCPAddr("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, WrapErr(KindOther, err)
	}

	peerBook, err := NewPeerBook(peerDB, connMgr.IsConnectedAddr)
	if err != nil {
		return nil, err
	}

	bans := func(peerID uint64, reason BanReason) { connMgr.Ban(peerID, reason) }
	blockPipe := NewBlockPipe(chain, bans)
	txPipe := NewTxPipe(chain, netw, connMgr.Broadcast)
	txHashSetPipe := NewTxHashSetPipe(chain, status, bans)

	processor := NewMessageProcessor(netw, chain, peerBook, connMgr, status, blockPipe, txPipe, txHashSetPipe)

	identity := HandshakeIdentity{
		Nonce:        nonce,
		GenesisHash:  cfg.GenesisHash,
		Capabilities: CapFullNode,
	}
	deps := ConnDeps{
		Network: netw, Identity: identity, LocalAddr: *localAddr,
		Chain: chain, PeerBook: peerBook, ConnMgr: connMgr,
		Processor: processor, HashSetPipe: txHashSetPipe,
	}

	ctx, cancel := context.WithCancel(context.Background())

	listener, err := NewListener(deps)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &P2PServer{
		config: cfg, netw: netw,
		connMgr: connMgr, peerBook: peerBook, status: status, chain: chain, pool: pool,
		blockPipe: blockPipe, txPipe: txPipe, txHashSetPipe: txHashSetPipe,
		syncer:    NewSyncer(netw, chain, connMgr, status, txHashSetPipe),
		dandelion: NewDandelion(netw, chain, pool, connMgr, time.Duration(cfg.DandelionPatienceSeconds)*time.Second, cfg.DandelionRelaySeconds),
		seeder:    NewSeeder(ctx, deps, cfg.PeerMinPreferred),
		listener:  listener,
		cancel:    cancel,
	}

	listener.Start(ctx)
	s.syncer.Start()
	s.dandelion.Start()
	s.seeder.Start()

	if cfg.AllowUPnP {
		go s.mapExternalPort(uint16(localAddr.Port))
	}

	return s, nil
}

// mapExternalPort runs once at startup; a failure here just means the node
// depends on outbound-initiated connections, so it only logs (spec §4.11
// Listener stays reachable either way).
func (s *P2PServer) mapExternalPort(port uint16) {
	ip, extPort, err := nataddr.EstablishMapping(port, noContactEvictionWindow)
	if err != nil {
		log.Debug("nat port mapping failed", "err", err)
		return
	}
	s.externalAddr = net.JoinHostPort(ip, strconv.Itoa(int(extPort)))
	log.Info("nat port mapping established", "external", s.externalAddr)
}

// ExternalAddr returns the externally-reachable address discovered via NAT
// traversal, empty if none was established.
func (s *P2PServer) ExternalAddr() string { return s.externalAddr }

// Close triggers orderly shutdown of every task this server owns.
func (s *P2PServer) Close() {
	s.cancel()
	s.seeder.Close()
	s.dandelion.Close()
	s.syncer.Close()
	s.listener.Close()
	s.blockPipe.Close()
	s.txPipe.Close()
	s.peerBook.Close()
	s.connMgr.Close()
}

func (s *P2PServer) ConnectedPeers() []*ConnectedPeer { return s.connMgr.Peers() }

func (s *P2PServer) Peers() []*Peer { return s.peerBook.GetPeers(CapUnknown, MaxPeerAddrs) }

func (s *P2PServer) Peer(addr net.TCPAddr) (*Peer, bool) { return s.peerBook.Get(addr) }

func (s *P2PServer) BanPeer(addr net.TCPAddr, reason BanReason) {
	s.peerBook.Ban(addr, reason)
	for _, cp := range s.connMgr.Peers() {
		if cp.Addr.String() == addr.String() {
			s.connMgr.Ban(cp.ID, reason)
		}
	}
}

func (s *P2PServer) UnbanPeer(addr net.TCPAddr) { s.peerBook.Unban(addr) }

// BroadcastTransaction injects tx into the local mempool and relays it,
// the externally-triggered counterpart to Dandelion's own tx flow.
func (s *P2PServer) BroadcastTransaction(ctx context.Context, tx []byte) ChainResult {
	result := s.chain.AddTransaction(ctx, tx, PoolMemPool)
	if result == ResultSuccess {
		frame := Encode(s.netw, MsgTransaction, encodeTransaction(tx))
		s.connMgr.Broadcast(frame, 0)
	}
	return result
}

func (s *P2PServer) Status() *SyncStatus { return s.status }
