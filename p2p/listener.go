package p2p

import (
	"context"
	"net"
	"sync"
)

// Listener accepts inbound connections up to PeerMaxCount total; beyond the
// cap it closes new sockets immediately rather than queueing them (spec
// §4.11 Listener).
type Listener struct {
	deps ConnDeps
	ln   net.Listener

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewListener(deps ConnDeps) (*Listener, error) {
	ln, err := net.Listen("tcp", deps.LocalAddr.String())
	if err != nil {
		return nil, WrapErr(KindSocket, err)
	}
	return &Listener{deps: deps, ln: ln, stop: make(chan struct{})}, nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.acceptLoop(ctx)
}

func (l *Listener) Close() error {
	close(l.stop)
	err := l.ln.Close()
	l.wg.Wait()
	return err
}

func (l *Listener) acceptLoop(ctx context.Context) {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.stop:
				return
			default:
				log.Warn("accept failed", "err", err)
				continue
			}
		}

		if l.deps.ConnMgr.Count() >= PeerMaxCount {
			conn.Close()
			continue
		}

		go func() {
			if err := AcceptAndRun(ctx, conn, l.deps); err != nil {
				log.Debug("inbound connection ended", "remote", conn.RemoteAddr(), "err", err)
			}
		}()
	}
}
