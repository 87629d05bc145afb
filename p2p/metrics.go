package p2p

import "github.com/rcrowley/go-metrics"

// Per-direction packet meters, plus peer and Dandelion event meters, named in the donor's
// "<component>/<group>/<kind>/<direction>/<unit>" convention
// (abey/metrics.go's "abey/prop/txns/in/packets").
var (
	propBlocksInPackets  = metrics.NewRegisteredMeter("p2p/prop/blocks/in/packets", nil)
	propBlocksOutPackets = metrics.NewRegisteredMeter("p2p/prop/blocks/out/packets", nil)
	propTxnsInPackets    = metrics.NewRegisteredMeter("p2p/prop/txns/in/packets", nil)
	propTxnsOutPackets   = metrics.NewRegisteredMeter("p2p/prop/txns/out/packets", nil)

	reqHeadersInPackets = metrics.NewRegisteredMeter("p2p/req/headers/in/packets", nil)
	reqBlocksInPackets  = metrics.NewRegisteredMeter("p2p/req/blocks/in/packets", nil)

	peerBansMeter      = metrics.NewRegisteredMeter("p2p/peer/bans", nil)
	peerConnectsMeter  = metrics.NewRegisteredMeter("p2p/peer/connects", nil)
	peerDisconnMeter   = metrics.NewRegisteredMeter("p2p/peer/disconnects", nil)

	dandelionStemMeter = metrics.NewRegisteredMeter("p2p/dandelion/stem", nil)
	dandelionFluffMeter = metrics.NewRegisteredMeter("p2p/dandelion/fluff", nil)
)
