package p2p

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// blockingReader yields data slowly so a second concurrent Receive call can
// observe the pipe as still active.
type blockingReader struct {
	data []byte
	gate chan struct{}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.gate
	n := copy(p, r.data)
	if n == 0 {
		return 0, io.EOF
	}
	r.data = r.data[n:]
	return n, nil
}

func TestTxHashSetPipeRefusesConcurrentImport(t *testing.T) {
	chain := &recordingChain{}
	status := &SyncStatus{}
	tp := NewTxHashSetPipe(chain, status, func(uint64, BanReason) {})

	payload := bytes.Repeat([]byte{0xAB}, txHashSetChunkSize*2)
	reader := &blockingReader{data: payload, gate: make(chan struct{})}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tp.Receive(context.Background(), reader, Hash{}, 0, int64(len(payload)), 1)
	}()

	// give the first Receive a chance to CAS active before the second starts
	time.Sleep(20 * time.Millisecond)
	assert.True(t, tp.Active())

	secondDone := make(chan struct{})
	go func() {
		tp.Receive(context.Background(), bytes.NewReader(nil), Hash{}, 0, 0, 2)
		close(secondDone)
	}()
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("second concurrent Receive should return immediately while the first is active")
	}

	close(reader.gate) // closed channel reads return immediately, unblocking every remaining Read
	wg.Wait()
	assert.False(t, tp.Active())
}

func TestTxHashSetPipeBansOnEarlyEOF(t *testing.T) {
	chain := &recordingChain{}
	status := &SyncStatus{}
	banned := make(chan BanReason, 1)
	tp := NewTxHashSetPipe(chain, status, func(id uint64, r BanReason) { banned <- r })

	short := bytes.NewReader([]byte{1, 2, 3})
	tp.Receive(context.Background(), short, Hash{}, 0, 1000, 5)

	select {
	case r := <-banned:
		assert.Equal(t, BanReasonBadTxHashSet, r)
	default:
		t.Fatal("expected a ban for an abruptly-ended transfer")
	}
}

func TestTxHashSetPipeBansOnInvalidSnapshot(t *testing.T) {
	chain := &recordingChain{processTxHashSetErr: errors.New("bad snapshot")}
	status := &SyncStatus{}
	banned := make(chan BanReason, 1)
	tp := NewTxHashSetPipe(chain, status, func(id uint64, r BanReason) { banned <- r })

	payload := []byte("complete-payload")
	tp.Receive(context.Background(), bytes.NewReader(payload), Hash{}, 0, int64(len(payload)), 6)

	select {
	case r := <-banned:
		assert.Equal(t, BanReasonBadTxHashSet, r)
	default:
		t.Fatal("expected a ban for a snapshot the chain rejects")
	}
}
