package p2p

import (
	"context"
	"net"
	"os"
)

// ProcessResult is the outcome MessageProcessor.Process returns to the
// Connection loop, which decides how to act on it (spec §4.6).
type ProcessResult int

const (
	ResOk ProcessResult = iota
	ResSocketErr
	ResUnknown
	ResResourceMissing
	ResSyncing
	ResBanPeer
)

// MessageProcessor dispatches an incoming frame to the right boundary call,
// per the total function over MsgType described in spec §4.6.
type MessageProcessor struct {
	netw   Network
	chain  BlockChain
	peerBook *PeerBook
	connMgr  *ConnectionManager
	status   *SyncStatus

	blockPipe     *BlockPipe
	txPipe        *TxPipe
	txHashSetPipe *TxHashSetPipe
}

func NewMessageProcessor(netw Network, chain BlockChain, peerBook *PeerBook, connMgr *ConnectionManager, status *SyncStatus, blockPipe *BlockPipe, txPipe *TxPipe, txHashSetPipe *TxHashSetPipe) *MessageProcessor {
	return &MessageProcessor{
		netw: netw, chain: chain, peerBook: peerBook, connMgr: connMgr, status: status,
		blockPipe: blockPipe, txPipe: txPipe, txHashSetPipe: txHashSetPipe,
	}
}

// Process handles one decoded message from cp. The caller (Connection) is
// responsible for acting on ResBanPeer by enqueuing the ban itself (spec §9
// Open Question c: banning must be explicit and mandatory).
func (mp *MessageProcessor) Process(ctx context.Context, cp *ConnectedPeer, typ MsgType, payload []byte) ProcessResult {
	switch typ {
	case MsgError, MsgBanReason:
		reason, err := decodeBanReason(payload)
		if err != nil {
			return ResBanPeer
		}
		log.Info("peer reported ban", "peer", cp.ID, "reason", reason)
		return ResBanPeer

	case MsgPing:
		p, err := decodePingPong(payload)
		if err != nil {
			return ResBanPeer
		}
		cp.UpdateTip(p.TotalDifficulty, p.Height)
		localTD, localH := mp.localTip(ctx)
		reply := Encode(mp.netw, MsgPong, encodePingPong(PingPongPayload{TotalDifficulty: localTD, Height: localH}))
		return mp.send(cp, reply)

	case MsgPong:
		p, err := decodePingPong(payload)
		if err != nil {
			return ResBanPeer
		}
		cp.UpdateTip(p.TotalDifficulty, p.Height)
		return ResOk

	case MsgGetPeerAddrs:
		req, err := decodeGetPeerAddrs(payload)
		if err != nil {
			return ResBanPeer
		}
		peers := mp.peerBook.GetPeers(req.Capabilities, MaxPeerAddrs)
		addrs := make([]net.TCPAddr, 0, len(peers))
		for _, p := range peers {
			addrs = append(addrs, p.Addr)
		}
		reply := Encode(mp.netw, MsgPeerAddrs, encodePeerAddrs(PeerAddrsPayload{Addrs: addrs}))
		return mp.send(cp, reply)

	case MsgPeerAddrs:
		resp, err := decodePeerAddrs(payload)
		if err != nil {
			return ResBanPeer
		}
		mp.peerBook.AddFresh(resp.Addrs)
		return ResOk

	case MsgGetHeaders:
		req, err := decodeGetHeaders(payload)
		if err != nil {
			return ResBanPeer
		}
		headers, err := mp.headersFromLocator(ctx, req.Locator)
		if err != nil {
			return ResResourceMissing
		}
		reply := Encode(mp.netw, MsgHeaders, encodeHeaders(HeadersPayload{Headers: headers}))
		return mp.send(cp, reply)

	case MsgHeader:
		h, err := decodeHeader(payload)
		if err != nil {
			return ResBanPeer
		}
		cp.UpdateTip(h.TotalDifficulty, h.Height)
		switch mp.chain.AddHeader(ctx, h) {
		case ResultInvalid:
			return ResBanPeer
		case ResultSuccess, ResultOrphaned:
			if !mp.chain.HasBlock(h.Height, h.Hash) {
				req := Encode(mp.netw, MsgGetCompactBlock, encodeHashOnly(h.Hash))
				return mp.send(cp, req)
			}
		}
		return ResOk

	case MsgHeaders:
		hs, err := decodeHeaders(payload)
		if err != nil {
			return ResBanPeer
		}
		go func() {
			if mp.chain.AddHeaders(context.Background(), hs.Headers) == ResultInvalid {
				log.Warn("rejected header batch", "peer", cp.ID)
			}
		}()
		return ResOk

	case MsgGetBlock:
		h, err := decodeHashOnly(payload)
		if err != nil {
			return ResBanPeer
		}
		b, ok, err := mp.chain.BlockByHash(ctx, h)
		if err != nil || !ok {
			return ResResourceMissing
		}
		reply := Encode(mp.netw, MsgBlock, encodeBlock(b))
		return mp.send(cp, reply)

	case MsgGetCompactBlock:
		h, err := decodeHashOnly(payload)
		if err != nil {
			return ResBanPeer
		}
		cb, ok, err := mp.chain.CompactBlockByHash(ctx, h)
		if err != nil || !ok {
			return ResResourceMissing
		}
		reply := Encode(mp.netw, MsgCompactBlock, encodeCompactBlock(cb))
		return mp.send(cp, reply)

	case MsgBlock:
		b, err := decodeBlock(payload)
		if err != nil {
			return ResBanPeer
		}
		propBlocksInPackets.Mark(1)
		if mp.status.Phase() == PhaseBlockSync {
			mp.blockPipe.Submit(b, cp.ID)
			return ResOk
		}
		switch mp.chain.AddBlock(ctx, b) {
		case ResultInvalid:
			return ResBanPeer
		case ResultSuccess:
			frame := Encode(mp.netw, MsgHeader, encodeHeader(b.Header))
			mp.connMgr.Broadcast(frame, cp.ID)
		case ResultOrphaned:
			req := Encode(mp.netw, MsgGetCompactBlock, encodeHashOnly(b.Header.PrevHash))
			return mp.send(cp, req)
		}
		return ResOk

	case MsgCompactBlock:
		cb, err := decodeCompactBlock(payload)
		if err != nil {
			return ResBanPeer
		}
		switch mp.chain.AddCompactBlock(ctx, cb) {
		case ResultTransactionsMissing:
			req := Encode(mp.netw, MsgGetBlock, encodeHashOnly(cb.Header.Hash))
			return mp.send(cp, req)
		case ResultOrphaned:
			req := Encode(mp.netw, MsgGetCompactBlock, encodeHashOnly(cb.Header.PrevHash))
			return mp.send(cp, req)
		case ResultInvalid:
			return ResBanPeer
		}
		return ResOk

	case MsgStemTransaction, MsgTransaction:
		tx, err := decodeTransaction(payload)
		if err != nil {
			return ResBanPeer
		}
		if mp.status.Phase() != PhaseNoSync && mp.status.Phase() != PhaseDone {
			return ResSyncing
		}
		propTxnsInPackets.Mark(1)
		hash := txHash(tx)
		mp.txPipe.Submit(tx, hash, cp.ID)
		return ResOk

	case MsgTxHashSetRequest:
		req, err := decodeTxHashSetRequest(payload)
		if err != nil {
			return ResBanPeer
		}
		if !cp.TryTxHashSetRequest() {
			return ResBanPeer
		}
		header, ok, err := mp.chain.HeaderByHash(ctx, req.Hash)
		if err != nil || !ok {
			return ResResourceMissing
		}
		path, size, err := mp.chain.SnapshotTxHashSet(ctx, header)
		if err != nil {
			return ResResourceMissing
		}
		go mp.streamTxHashSet(cp, header, path, size)
		return ResOk

	case MsgTxHashSetArchive:
		_, err := decodeTxHashSetArchive(payload)
		if err != nil {
			return ResBanPeer
		}
		// The bulk ZIP payload follows out-of-band on the same socket;
		// Connection hands the reader to TxHashSetPipe.Receive directly
		// rather than buffering it into this message's payload.
		return ResOk

	case MsgGetTransaction:
		kernelHash, err := decodeHashOnly(payload)
		if err != nil {
			return ResBanPeer
		}
		tx, ok, err := mp.chain.TxByKernelHash(ctx, kernelHash)
		if err != nil || !ok {
			return ResResourceMissing
		}
		reply := Encode(mp.netw, MsgTransaction, encodeTransaction(tx))
		return mp.send(cp, reply)

	case MsgTransactionKernel:
		kernelHash, err := decodeHashOnly(payload)
		if err != nil {
			return ResBanPeer
		}
		if mp.status.Phase() != PhaseNoSync && mp.status.Phase() != PhaseDone {
			return ResOk
		}
		if _, ok, _ := mp.chain.TxByKernelHash(ctx, kernelHash); !ok {
			req := Encode(mp.netw, MsgGetTransaction, encodeHashOnly(kernelHash))
			return mp.send(cp, req)
		}
		return ResOk

	case MsgGetOutputBitmapSegment, MsgOutputBitmapSegment, MsgGetOutputSegment, MsgOutputSegment,
		MsgGetRangeProofSegment, MsgRangeProofSegment, MsgGetKernelSegment, MsgKernelSegment:
		return ResResourceMissing

	default:
		return ResUnknown
	}
}

func (mp *MessageProcessor) send(cp *ConnectedPeer, frame []byte) ProcessResult {
	if err := cp.Send(frame); err != nil {
		return ResSocketErr
	}
	return ResOk
}

func (mp *MessageProcessor) localTip(ctx context.Context) (td, height uint64) {
	return mp.chain.TotalDifficulty(ctx), mp.chain.Height(ctx)
}

// headersFromLocator finds the first locator hash BlockChain knows and
// returns up to MAX_BLOCK_HEADERS starting one above that ancestor (spec
// §4.6 GetHeaders).
func (mp *MessageProcessor) headersFromLocator(ctx context.Context, loc BlockLocator) ([]BlockHeader, error) {
	var ancestor BlockHeader
	found := false
	for _, h := range loc.Hashes {
		if hdr, ok, err := mp.chain.HeaderByHash(ctx, h); err == nil && ok {
			ancestor = hdr
			found = true
			break
		}
	}
	if !found {
		ancestor = BlockHeader{Height: 0}
	}

	headers := make([]BlockHeader, 0, MaxBlockHeaders)
	for height := ancestor.Height + 1; len(headers) < MaxBlockHeaders; height++ {
		hdr, ok, err := mp.chain.HeaderByHeight(ctx, height)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		headers = append(headers, hdr)
	}
	return headers, nil
}

func (mp *MessageProcessor) streamTxHashSet(cp *ConnectedPeer, header BlockHeader, path string, size int64) {
	archive := Encode(mp.netw, MsgTxHashSetArchive, encodeTxHashSetArchive(TxHashSetArchivePayload{
		Hash: header.Hash, Height: header.Height, ZippedSize: uint64(size),
	}))
	if err := cp.Send(archive); err != nil {
		log.Warn("failed to send txhashset archive header", "peer", cp.ID, "err", err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		log.Error("failed to open txhashset snapshot", "err", err)
		return
	}
	defer f.Close()

	buf := make([]byte, txHashSetChunkSize)
	var sent int64
	for sent < size {
		n, rerr := f.Read(buf)
		if n > 0 {
			if err := cp.Send(append([]byte(nil), buf[:n]...)); err != nil {
				log.Warn("txhashset stream aborted", "peer", cp.ID, "err", err)
				return
			}
			sent += int64(n)
		}
		if rerr != nil {
			return
		}
	}
}
