package p2p

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlockPipeDedupsByHash(t *testing.T) {
	chain := &recordingChain{addBlockResult: ResultSuccess}
	var banned []uint64
	var mu sync.Mutex
	bp := NewBlockPipe(chain, func(id uint64, r BanReason) {
		mu.Lock()
		banned = append(banned, id)
		mu.Unlock()
	})
	defer bp.Close()

	var hash Hash
	hash[0] = 1
	block := Block{Header: BlockHeader{Hash: hash}}

	bp.Submit(block, 1)
	bp.Submit(block, 1)
	bp.Submit(block, 1)

	deadline := time.After(time.Second)
	for {
		if n, _ := chain.calls(); n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for block to be processed")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)

	n, _ := chain.calls()
	assert.Equal(t, 1, n, "duplicate submissions of the same block hash must be coalesced")
}

func TestBlockPipeBansOnInvalid(t *testing.T) {
	chain := &recordingChain{addBlockResult: ResultInvalid}
	banned := make(chan uint64, 1)
	bp := NewBlockPipe(chain, func(id uint64, r BanReason) { banned <- id })
	defer bp.Close()

	var hash Hash
	hash[0] = 2
	bp.Submit(Block{Header: BlockHeader{Hash: hash}}, 7)

	select {
	case id := <-banned:
		assert.Equal(t, uint64(7), id)
	case <-time.After(time.Second):
		t.Fatal("expected a ban for an invalid block")
	}
}
