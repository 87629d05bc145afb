package p2p

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxPipeDedupsByHash(t *testing.T) {
	chain := &recordingChain{addTransactionResult: ResultSuccess}
	broadcasts := make(chan uint64, 8)
	tp := NewTxPipe(chain, Mainnet, func(frame []byte, sourceID uint64) { broadcasts <- sourceID })
	defer tp.Close()

	var hash Hash
	hash[0] = 9
	tx := []byte("tx-bytes")

	tp.Submit(tx, hash, 3)
	tp.Submit(tx, hash, 3)
	tp.Submit(tx, hash, 3)

	select {
	case id := <-broadcasts:
		assert.Equal(t, uint64(3), id)
	case <-time.After(time.Second):
		t.Fatal("expected the accepted transaction to be broadcast")
	}

	time.Sleep(20 * time.Millisecond)
	_, addTx := chain.calls()
	require.Equal(t, 1, addTx, "duplicate submissions of the same tx hash must be coalesced")
	assert.Len(t, broadcasts, 0, "only one broadcast should have been emitted")
}

func TestTxPipeDoesNotBroadcastOnRejection(t *testing.T) {
	chain := &recordingChain{addTransactionResult: ResultInvalid}
	broadcasts := make(chan uint64, 1)
	tp := NewTxPipe(chain, Mainnet, func(frame []byte, sourceID uint64) { broadcasts <- sourceID })
	defer tp.Close()

	var hash Hash
	hash[0] = 11
	tp.Submit([]byte("bad-tx"), hash, 4)

	select {
	case <-broadcasts:
		t.Fatal("a rejected transaction must not be broadcast")
	case <-time.After(100 * time.Millisecond):
	}
}
