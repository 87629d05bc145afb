// Package peerstats renders a local terminal dashboard of sync status and
// connected peers: a reporting daemon's view, but rendered locally instead
// of phoned to a remote collector.
package peerstats

import (
	"fmt"
	"net"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	ui "github.com/gizak/termui"

	"github.com/grinpp/grin-go/p2p"
)

// PeerSnapshot is the per-connection row the dashboard renders. Callers
// build this from *p2p.ConnectedPeer since peerstats never imports p2p's
// unexported connection internals.
type PeerSnapshot struct {
	Addr      net.TCPAddr
	Direction string
	Height    uint64
	TD        uint64
	UserAgent string
}

// Source supplies the data the dashboard polls each tick.
type Source interface {
	Status() *p2p.SyncStatus
	ConnectedPeers() []PeerSnapshot
}

// Dashboard renders Source's state to the terminal until Close or the user
// presses q. It is a no-op on non-terminal stdout (e.g. piped logs), the
// same guard go-isatty is used for in the donor's console formatting.
type Dashboard struct {
	src      Source
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func New(src Source) *Dashboard {
	return &Dashboard{src: src, interval: time.Second, stop: make(chan struct{}), done: make(chan struct{})}
}

// Run starts the dashboard; it blocks until Close is called or the user
// quits. Returns immediately (without blocking) if stdout isn't a terminal.
func (d *Dashboard) Run() error {
	defer close(d.done)
	if !isatty.IsTerminal(colorable.NewColorableStdout().Fd()) {
		return nil
	}
	if err := ui.Init(); err != nil {
		return err
	}
	defer ui.Close()

	status := ui.NewPar("")
	status.Height = 6
	status.BorderLabel = "sync status"

	peerList := ui.NewList()
	peerList.BorderLabel = "peers"
	peerList.Height = 20

	ui.Body.AddRows(
		ui.NewRow(ui.NewCol(12, 0, status)),
		ui.NewRow(ui.NewCol(12, 0, peerList)),
	)
	ui.Body.Align()

	render := func() {
		status.Text = statusText(d.src.Status())
		peerList.Items = peerRows(d.src.ConnectedPeers())
		ui.Body.Align()
		ui.Render(ui.Body)
	}

	ui.Handle("/sys/kbd/q", func(ui.Event) { ui.StopLoop() })
	ui.Handle("/timer/1s", func(ui.Event) { render() })
	ui.Handle("/sys/wnd/resize", func(ui.Event) { ui.Body.Width = ui.TermWidth(); ui.Body.Align(); render() })

	render()
	go func() {
		<-d.stop
		ui.StopLoop()
	}()
	ui.Loop()
	return nil
}

func (d *Dashboard) Close() {
	close(d.stop)
	<-d.done
}

func statusText(s *p2p.SyncStatus) string {
	processed, processTotal := s.ProcessProgress()
	return fmt.Sprintf(
		"phase: %s\nconnections: %d\nheader height: %d\nhead height: %d / difficulty %d\nnetwork height: %d / difficulty %d\nprocessed: %d / %d",
		s.Phase(), s.NumConnections(),
		s.HeaderHeight(), s.HeadHeight(), s.HeadDifficulty(),
		s.NetworkHeight(), s.NetworkDifficulty(),
		processed, processTotal,
	)
}

func peerRows(peers []PeerSnapshot) []string {
	rows := make([]string, 0, len(peers))
	for _, p := range peers {
		rows = append(rows, fmt.Sprintf("%-22s %-8s height=%-10d td=%-10d %s",
			p.Addr.String(), p.Direction, p.Height, p.TD, p.UserAgent))
	}
	return rows
}
