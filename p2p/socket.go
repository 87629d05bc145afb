package p2p

import (
	"net"
	"time"
)

// RecvMode selects whether Socket.Receive waits for data or returns
// immediately (spec §4.2).
type RecvMode int

const (
	Blocking RecvMode = iota
	NonBlocking
)

// Socket wraps a TCP connection with the blocking/non-blocking receive
// modes and rate counters the Connection loop needs. It owns no goroutines
// of its own; all scheduling happens in the Connection loop that holds it.
type Socket struct {
	conn net.Conn

	recvTimeout time.Duration
	sendTimeout time.Duration

	inbound  *RateCounter
	outbound *RateCounter
}

// Dial connects to addr, the outbound half of spec §4.2's connect operation.
func Dial(network string, addr net.TCPAddr, timeout time.Duration) (*Socket, error) {
	conn, err := net.DialTimeout(network, addr.String(), timeout)
	if err != nil {
		return nil, WrapErr(KindSocket, err)
	}
	return newSocket(conn), nil
}

// Accept wraps an already-accepted net.Conn from a Listener (spec §4.2
// accept).
func Accept(conn net.Conn) *Socket { return newSocket(conn) }

func newSocket(conn net.Conn) *Socket {
	return &Socket{
		conn:        conn,
		recvTimeout: 5 * time.Second,
		sendTimeout: 5 * time.Second,
		inbound:     NewRateCounter(socketRateLimitPerMin),
		outbound:    NewRateCounter(socketRateLimitPerMin),
	}
}

func (s *Socket) SetRecvTimeout(d time.Duration) { s.recvTimeout = d }
func (s *Socket) SetSendTimeout(d time.Duration) { s.sendTimeout = d }

func (s *Socket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Conn exposes the raw connection for the one case that falls outside the
// framed message protocol: streaming the TxHashSetArchive's raw ZIP bytes
// that follow the announcement frame (spec §4.7 TxHashSetPipe).
func (s *Socket) Conn() net.Conn { return s.conn }

// Send writes a fully-framed message. In non-blocking mode the send
// deadline is effectively zero; callers are expected to retry later via the
// Connection's send queue rather than block the loop.
func (s *Socket) Send(frame []byte, nonblocking bool) error {
	if !s.outbound.Allow() {
		return WrapErr(KindRateLimit, Errf(KindRateLimit, "outbound rate exceeded"))
	}
	deadline := time.Now().Add(s.sendTimeout)
	if nonblocking {
		deadline = time.Now()
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return WrapErr(KindSocket, err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		return WrapErr(KindSocket, err)
	}
	return nil
}

// Receive reads one complete framed message. In NonBlocking mode it returns
// (nil, nil) immediately if no header byte is available yet, rather than
// blocking the Connection loop (spec §4.4's receive_nonblocking).
func (s *Socket) Receive(net Network, mode RecvMode) ([]byte, MsgType, error) {
	deadline := time.Now().Add(s.recvTimeout)
	if mode == NonBlocking {
		deadline = time.Now().Add(time.Millisecond)
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, 0, WrapErr(KindSocket, err)
	}

	hdr, err := ReadHeader(s.conn, net)
	if err != nil {
		if isTimeout(err) && mode == NonBlocking {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	if !s.inbound.Allow() {
		return nil, 0, WrapErr(KindRateLimit, Errf(KindRateLimit, "inbound rate exceeded"))
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.recvTimeout)); err != nil {
		return nil, 0, WrapErr(KindSocket, err)
	}
	payload := make([]byte, hdr.Length)
	if hdr.Length > 0 {
		if _, err := readFull(s.conn, payload); err != nil {
			return nil, 0, WrapErr(KindSocket, err)
		}
	}
	return payload, hdr.Type, nil
}

func (s *Socket) Close() error { return s.conn.Close() }

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeouter); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return false
}
