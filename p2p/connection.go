package p2p

import (
	"context"
	"net"
	"time"
)

// Connection runs one peer's full lifecycle: optional dial, handshake,
// registration, then the read/write/ping loop (spec §4.4). Exactly one
// goroutine owns the socket; Send() is the only thread-safe entry point
// from the outside.
type Connection struct {
	sock *Socket
	cp   *ConnectedPeer

	netw      Network
	identity  HandshakeIdentity
	processor *MessageProcessor
	connMgr   *ConnectionManager
	peerBook  *PeerBook
	chain     BlockChain
	hashSetPipe *TxHashSetPipe

	localAddr net.TCPAddr
}

// DialAndRun connects to addr, performs the outbound handshake, registers
// the connection, and runs its loop until it terminates. Blocks until exit.
func DialAndRun(ctx context.Context, addr net.TCPAddr, deps ConnDeps) error {
	sock, err := Dial("tcp", addr, handshakeTimeout)
	if err != nil {
		return err
	}
	localTD := deps.Chain.TotalDifficulty(ctx)
	shake, err := DoOutbound(sock, deps.Network, deps.Identity, deps.LocalAddr, addr, localTD)
	if err != nil {
		sock.Close()
		return err
	}

	peer, _ := deps.PeerBook.Get(addr)
	if peer == nil {
		peer = NewPeer(addr)
	}
	peer.SetHandshakeInfo(shake.Version, shake.Capabilities, shake.UserAgent)

	id := deps.ConnMgr.NextID()
	cp := NewConnectedPeer(id, peer, Outbound, connAdapter{sock})
	cp.UpdateTip(shake.TotalDifficulty, 0)

	conn := newConnection(sock, cp, deps)
	deps.ConnMgr.AddConnection(cp)
	return conn.run(ctx)
}

// AcceptAndRun wraps an already-accepted socket, performs the inbound
// handshake, registers the connection, and runs its loop.
func AcceptAndRun(ctx context.Context, raw net.Conn, deps ConnDeps) error {
	sock := Accept(raw)
	localTD := deps.Chain.TotalDifficulty(ctx)
	remoteAddr := raw.RemoteAddr().(*net.TCPAddr)
	hand, err := DoInbound(sock, deps.Network, deps.Identity, deps.LocalAddr, *remoteAddr, localTD)
	if err != nil {
		sock.Close()
		return err
	}

	peer, _ := deps.PeerBook.Get(*remoteAddr)
	if peer == nil {
		peer = NewPeer(*remoteAddr)
	}
	peer.SetHandshakeInfo(hand.Version, hand.Capabilities, hand.UserAgent)

	id := deps.ConnMgr.NextID()
	cp := NewConnectedPeer(id, peer, Inbound, raw)
	cp.UpdateTip(hand.TotalDifficulty, 0)

	conn := newConnection(sock, cp, deps)
	deps.ConnMgr.AddConnection(cp)
	return conn.run(ctx)
}

// ConnDeps bundles the shared dependencies every Connection needs, avoiding
// a long positional constructor.
type ConnDeps struct {
	Network   Network
	Identity  HandshakeIdentity
	LocalAddr net.TCPAddr
	Chain     BlockChain
	PeerBook  *PeerBook
	ConnMgr   *ConnectionManager
	Processor *MessageProcessor
	HashSetPipe *TxHashSetPipe
}

func newConnection(sock *Socket, cp *ConnectedPeer, deps ConnDeps) *Connection {
	return &Connection{
		sock: sock, cp: cp, netw: deps.Network, identity: deps.Identity,
		processor: deps.Processor, connMgr: deps.ConnMgr, peerBook: deps.PeerBook,
		chain: deps.Chain, hashSetPipe: deps.HashSetPipe, localAddr: deps.LocalAddr,
	}
}

// run is the pseudocode loop from spec §4.4, translated directly: ping on a
// 10s tick, a non-blocking receive, a drain of one queued send per
// iteration, and a 30s idle exit, all checked against a 5ms sleep so the
// termination flag is observed promptly.
func (c *Connection) run(ctx context.Context) error {
	defer c.sock.Close()

	lastPing := time.Time{}
	lastRecv := time.Now()

	if c.cp.Direction == Outbound {
		c.requestPeersIfNeeded()
	}

	for {
		select {
		case <-c.cp.Terminated():
			return nil
		case <-ctx.Done():
			c.cp.Terminate()
			return ctx.Err()
		default:
		}

		didWork := false

		if time.Since(lastPing) >= pingInterval {
			td, h := c.chain.TotalDifficulty(ctx), c.chain.Height(ctx)
			frame := Encode(c.netw, MsgPing, encodePingPong(PingPongPayload{TotalDifficulty: td, Height: h}))
			_ = c.cp.Send(frame)
			lastPing = time.Now()
		}

		payload, typ, err := c.sock.Receive(c.netw, NonBlocking)
		if err != nil {
			c.handleFatal(err)
			return err
		}
		if payload != nil || typ != 0 {
			didWork = true
			lastRecv = time.Now()
			if typ == MsgTxHashSetArchive {
				c.receiveTxHashSet(ctx, payload)
			} else {
				result := c.processor.Process(ctx, c.cp, typ, payload)
				c.handleResult(result)
			}
		}

		select {
		case frame := <-c.sendQueue():
			didWork = true
			if err := c.sock.Send(frame, false); err != nil {
				c.handleFatal(err)
				return err
			}
		default:
		}

		if !didWork && time.Since(lastRecv) >= idleTimeout {
			c.cp.Terminate()
			return nil
		}

		select {
		case <-c.cp.Terminated():
			return nil
		case <-time.After(connectionLoopSleep):
		}
	}
}

func (c *Connection) sendQueue() chan []byte { return c.cp.sendQueue }

// receiveTxHashSet handles the one message type whose body isn't fully
// framed: the announcement gives a size, and the raw ZIP bytes immediately
// follow on the same socket (spec §4.7 TxHashSetPipe, §9 "stream to disk").
// This blocks the connection loop for the duration of the transfer, which
// is acceptable since TxHashSetPipe itself allows only one import at a time
// across the whole node.
func (c *Connection) receiveTxHashSet(ctx context.Context, payload []byte) {
	archive, err := decodeTxHashSetArchive(payload)
	if err != nil {
		c.connMgr.Ban(c.cp.ID, BanReasonBadTxHashSet)
		c.cp.Terminate()
		return
	}
	c.sock.SetRecvTimeout(txHashSetRecvTimeout)
	c.hashSetPipe.Receive(ctx, c.sock.Conn(), archive.Hash, archive.Height, int64(archive.ZippedSize), c.cp.ID)
	c.sock.SetRecvTimeout(5 * time.Second)
}

func (c *Connection) requestPeersIfNeeded() {
	frame := Encode(c.netw, MsgGetPeerAddrs, encodeGetPeerAddrs(GetPeerAddrsPayload{Capabilities: CapFullNode}))
	_ = c.cp.Send(frame)
}

func (c *Connection) handleResult(r ProcessResult) {
	switch r {
	case ResBanPeer:
		c.connMgr.Ban(c.cp.ID, BanReasonBadHandshake)
		c.cp.Terminate()
	case ResSocketErr:
		c.cp.Terminate()
	}
}

func (c *Connection) handleFatal(err error) {
	switch ErrKind(err) {
	case KindDeserialization, KindProtocol:
		c.connMgr.Ban(c.cp.ID, BanReasonBadHandshake)
	case KindRateLimit:
		c.connMgr.Ban(c.cp.ID, BanReasonAbusive)
	}
	c.cp.Terminate()
}

// connAdapter lets a freshly-dialed *Socket also satisfy net.Conn for
// ConnectedPeer's Conn field (used only for Close()); the Socket itself
// owns all reads/writes.
type connAdapter struct{ *Socket }

func (a connAdapter) Read(b []byte) (int, error)         { return 0, ErrSocketClosed }
func (a connAdapter) Write(b []byte) (int, error)         { return 0, ErrSocketClosed }
func (a connAdapter) LocalAddr() net.Addr                 { return nil }
func (a connAdapter) RemoteAddr() net.Addr                { return a.Socket.RemoteAddr() }
func (a connAdapter) SetDeadline(t time.Time) error       { return nil }
func (a connAdapter) SetReadDeadline(t time.Time) error   { return nil }
func (a connAdapter) SetWriteDeadline(t time.Time) error  { return nil }
