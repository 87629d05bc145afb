package p2p

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeerBanIsIdempotentWithinWindow(t *testing.T) {
	p := NewPeer(net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1})
	p.Ban(BanReasonBadHandshake)
	assert.True(t, p.IsBanned())
	assert.Equal(t, BanReasonBadHandshake, p.BanReason())

	p.Ban(BanReasonAbusive)
	assert.Equal(t, BanReasonBadHandshake, p.BanReason(), "first ban reason should stick until the window expires")
}

func TestPeerUnbanClearsState(t *testing.T) {
	p := NewPeer(net.TCPAddr{IP: net.ParseIP("10.0.0.2"), Port: 1})
	p.Ban(BanReasonManual)
	p.Unban()
	assert.False(t, p.IsBanned())
	assert.Equal(t, BanReasonNone, p.BanReason())
}

func TestPeerTryTxHashSetRequestRateLimit(t *testing.T) {
	p := NewPeer(net.TCPAddr{IP: net.ParseIP("10.0.0.3"), Port: 1})
	assert.True(t, p.TryTxHashSetRequest())
	assert.False(t, p.TryTxHashSetRequest(), "a second request inside the rate window must be refused")
}

func TestPeerTakeDirtyClearsFlag(t *testing.T) {
	p := NewPeer(net.TCPAddr{IP: net.ParseIP("10.0.0.4"), Port: 1})
	p.Touch()
	assert.True(t, p.TakeDirty())
	assert.False(t, p.TakeDirty())
}

func TestConnectedPeerKnownSetsDedup(t *testing.T) {
	cp := NewConnectedPeer(1, NewPeer(net.TCPAddr{}), Outbound, nil)
	var h Hash
	h[0] = 7
	assert.False(t, cp.KnowsBlock(h))
	cp.MarkKnownBlock(h)
	assert.True(t, cp.KnowsBlock(h))
}

func TestConnectedPeerSendDropsWhenFull(t *testing.T) {
	cp := NewConnectedPeer(1, NewPeer(net.TCPAddr{}), Outbound, nil)
	var err error
	for i := 0; i < sendQueueCapacity; i++ {
		err = cp.Send([]byte{byte(i)})
	}
	assert.NoError(t, err)
	err = cp.Send([]byte{0xff})
	assert.Error(t, err, "send queue is full, Send should report would-block rather than stall the caller")
}

func TestConnectedPeerTerminateIdempotent(t *testing.T) {
	cp := NewConnectedPeer(1, NewPeer(net.TCPAddr{}), Outbound, nil)
	cp.Terminate()
	cp.Terminate()
	select {
	case <-cp.Terminated():
	default:
		t.Fatal("expected terminate channel to be closed")
	}
}
