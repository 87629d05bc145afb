package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/grinpp/grin-go/internal/peerstats"
	"github.com/grinpp/grin-go/p2p"
)

var (
	gitCommit = ""
	gitDate   = ""
	app       *cli.App
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	listenAddrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "P2P listen address",
		Value: p2p.DefaultConfig.ListenAddr,
	}
	floonetFlag = cli.BoolFlag{
		Name:  "floonet",
		Usage: "connect to the floonet test network instead of mainnet",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "log verbosity: 0=error 1=warn 2=info 3=debug 4=trace",
		Value: int(p2p.LvlInfo),
	}
	dashboardFlag = cli.BoolFlag{
		Name:  "dashboard",
		Usage: "render a terminal dashboard of sync status and connected peers",
	}
)

func init() {
	app = cli.NewApp()
	app.Name = "grin-node"
	app.Usage = "a Mimblewimble peer-to-peer node"
	app.Version = fmt.Sprintf("0.1.0-%s-%s", gitCommit, gitDate)
	app.Action = runNode
	app.Flags = []cli.Flag{configFileFlag, listenAddrFlag, floonetFlag, verbosityFlag, dashboardFlag}
	app.Commands = []cli.Command{dumpConfigCommand}
	sort.Sort(cli.CommandsByName(app.Commands))
}

var dumpConfigCommand = cli.Command{
	Action:    dumpConfig,
	Name:      "dumpconfig",
	Usage:     "show configuration values",
	ArgsUsage: "",
	Flags:     []cli.Flag{configFileFlag, listenAddrFlag, floonetFlag},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildConfig(ctx *cli.Context) (nodeConfig, error) {
	cfg := defaultNodeConfig()
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(listenAddrFlag.Name) || ctx.GlobalIsSet(listenAddrFlag.Name) {
		cfg.P2P.ListenAddr = ctx.GlobalString(listenAddrFlag.Name)
	}
	if ctx.GlobalBool(floonetFlag.Name) {
		cfg.P2P.Network = p2p.Floonet
	}
	return cfg, nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := buildConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = io.WriteString(os.Stdout, string(out))
	return err
}

func runNode(ctx *cli.Context) error {
	cfg, err := buildConfig(ctx)
	if err != nil {
		return err
	}
	p2p.SetLogLevel(p2p.Lvl(ctx.GlobalInt(verbosityFlag.Name)))

	genesis := genesisHeader(cfg.P2P.Network)
	cfg.P2P.GenesisHash = genesis.Hash

	nonce, err := processNonce()
	if err != nil {
		return fmt.Errorf("drawing handshake nonce: %w", err)
	}

	chain := newDevChain(genesis)
	server, err := p2p.NewP2PServer(cfg.P2P, chain, devPool{}, p2p.NewMemoryPeerDB(), nonce)
	if err != nil {
		return fmt.Errorf("starting p2p server: %w", err)
	}
	defer server.Close()

	if ctx.GlobalBool(dashboardFlag.Name) {
		dash := peerstats.New(serverSource{server})
		go dash.Run()
		defer dash.Close()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	return nil
}

// serverSource adapts *p2p.P2PServer to peerstats.Source.
type serverSource struct{ s *p2p.P2PServer }

func (a serverSource) Status() *p2p.SyncStatus { return a.s.Status() }

func (a serverSource) ConnectedPeers() []peerstats.PeerSnapshot {
	conns := a.s.ConnectedPeers()
	out := make([]peerstats.PeerSnapshot, 0, len(conns))
	for _, cp := range conns {
		td, height := cp.Tip()
		out = append(out, peerstats.PeerSnapshot{
			Addr:      cp.Addr,
			Direction: cp.Direction.String(),
			Height:    height,
			TD:        td,
			UserAgent: cp.UserAgent,
		})
	}
	return out
}

// genesisHeader returns the fixed genesis header this node chains from. A
// real deployment reads this from the consensus layer's embedded genesis
// block; here it is a stand-in constant per network.
func genesisHeader(n p2p.Network) p2p.BlockHeader {
	switch n {
	case p2p.Floonet:
		return p2p.BlockHeader{Hash: [32]byte{0xf1, 0x00}, Height: 0, TotalDifficulty: 1}
	default:
		return p2p.BlockHeader{Hash: [32]byte{0x01, 0x00}, Height: 0, TotalDifficulty: 1}
	}
}

// processNonce draws the random 64-bit handshake nonce of this process, once
// at startup; a Hand carrying the same nonce is our own dial coming back.
func processNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
