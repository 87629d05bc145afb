package p2p

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopConn satisfies net.Conn for tests that never perform real I/O.
type nopConn struct{ net.Conn }

func (nopConn) Close() error                    { return nil }
func (nopConn) RemoteAddr() net.Addr            { return &net.TCPAddr{} }
func (nopConn) LocalAddr() net.Addr             { return &net.TCPAddr{} }
func (nopConn) SetDeadline(time.Time) error      { return nil }
func (nopConn) SetReadDeadline(time.Time) error  { return nil }
func (nopConn) SetWriteDeadline(time.Time) error { return nil }
func (nopConn) Read(b []byte) (int, error)       { return 0, io.EOF }
func (nopConn) Write(b []byte) (int, error)      { return len(b), nil }

func newTestPeer(id uint64, addr net.TCPAddr, td, height uint64) *ConnectedPeer {
	cp := NewConnectedPeer(id, NewPeer(addr), Outbound, nopConn{})
	cp.UpdateTip(td, height)
	return cp
}

func TestMostWorkPeersPicksLexicographicMax(t *testing.T) {
	cm := NewConnectionManager()
	defer cm.Close()

	a := newTestPeer(1, net.TCPAddr{Port: 1}, 10, 100)
	b := newTestPeer(2, net.TCPAddr{Port: 2}, 20, 50)
	c := newTestPeer(3, net.TCPAddr{Port: 3}, 20, 60)
	cm.AddConnection(a)
	cm.AddConnection(b)
	cm.AddConnection(c)

	best := cm.MostWorkPeers()
	require.Len(t, best, 1)
	assert.Equal(t, uint64(3), best[0].ID)
}

func TestBroadcastExcludesSource(t *testing.T) {
	cm := NewConnectionManager()
	defer cm.Close()

	a := newTestPeer(1, net.TCPAddr{Port: 1}, 1, 1)
	b := newTestPeer(2, net.TCPAddr{Port: 2}, 1, 1)
	cm.AddConnection(a)
	cm.AddConnection(b)

	cm.Broadcast([]byte("frame"), a.ID)

	select {
	case frame := <-b.sendQueue:
		assert.Equal(t, []byte("frame"), frame)
	case <-time.After(time.Second):
		t.Fatal("expected peer b to receive the broadcast")
	}

	select {
	case <-a.sendQueue:
		t.Fatal("source peer should not receive its own broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBanIsIdempotentUntilPrune(t *testing.T) {
	cm := NewConnectionManager()
	defer cm.Close()

	a := newTestPeer(1, net.TCPAddr{Port: 1}, 1, 1)
	cm.AddConnection(a)

	cm.Ban(a.ID, BanReasonBadBlock)
	cm.Ban(a.ID, BanReasonAbusive)

	cm.Prune(false)
	assert.Equal(t, BanReasonBadBlock, a.BanReason())
	assert.False(t, cm.IsConnectedID(a.ID))
}
