package p2p

import "net"

// Payload structs and their wire encode/decode, one per message type that
// carries a body (spec §3 "Message types", §6 field orderings).

type PingPongPayload struct {
	TotalDifficulty uint64
	Height          uint64
}

func encodePingPong(p PingPongPayload) []byte {
	return NewWriter().U64(p.TotalDifficulty).U64(p.Height).Bytes()
}

func decodePingPong(b []byte) (PingPongPayload, error) {
	r := NewReader(b)
	p := PingPongPayload{TotalDifficulty: r.U64(), Height: r.U64()}
	return p, r.Err()
}

type GetPeerAddrsPayload struct {
	Capabilities Capabilities
}

func encodeGetPeerAddrs(p GetPeerAddrsPayload) []byte {
	return NewWriter().U32(uint32(p.Capabilities)).Bytes()
}

func decodeGetPeerAddrs(b []byte) (GetPeerAddrsPayload, error) {
	r := NewReader(b)
	p := GetPeerAddrsPayload{Capabilities: Capabilities(r.U32())}
	return p, r.Err()
}

type PeerAddrsPayload struct {
	Addrs []net.TCPAddr
}

func encodePeerAddrs(p PeerAddrsPayload) []byte {
	w := NewWriter()
	n := len(p.Addrs)
	if n > MaxPeerAddrs {
		n = MaxPeerAddrs
	}
	w.U32(uint32(n))
	for i := 0; i < n; i++ {
		w.SocketAddr(p.Addrs[i])
	}
	return w.Bytes()
}

func decodePeerAddrs(b []byte) (PeerAddrsPayload, error) {
	r := NewReader(b)
	n := r.U32()
	if n > MaxPeerAddrs {
		n = MaxPeerAddrs
	}
	addrs := make([]net.TCPAddr, 0, n)
	for i := uint32(0); i < n; i++ {
		addrs = append(addrs, r.SocketAddr())
	}
	return PeerAddrsPayload{Addrs: addrs}, r.Err()
}

type GetHeadersPayload struct {
	Locator BlockLocator
}

func encodeGetHeaders(p GetHeadersPayload) []byte {
	w := NewWriter()
	w.U8(uint8(len(p.Locator.Hashes)))
	for _, h := range p.Locator.Hashes {
		w.Hash(h)
	}
	return w.Bytes()
}

func decodeGetHeaders(b []byte) (GetHeadersPayload, error) {
	r := NewReader(b)
	n := r.U8()
	hashes := make([]Hash, 0, n)
	for i := uint8(0); i < n; i++ {
		hashes = append(hashes, r.Hash())
	}
	return GetHeadersPayload{Locator: BlockLocator{Hashes: hashes}}, r.Err()
}

func encodeHeader(h BlockHeader) []byte {
	return NewWriter().Hash(h.Hash).Hash(h.PrevHash).U64(h.Height).U64(h.TotalDifficulty).I64(h.Timestamp).Bytes()
}

func decodeHeader(b []byte) (BlockHeader, error) {
	r := NewReader(b)
	h := BlockHeader{Hash: r.Hash(), PrevHash: r.Hash(), Height: r.U64(), TotalDifficulty: r.U64(), Timestamp: r.I64()}
	return h, r.Err()
}

type HeadersPayload struct {
	Headers []BlockHeader
}

func encodeHeaders(p HeadersPayload) []byte {
	w := NewWriter()
	n := len(p.Headers)
	if n > MaxBlockHeaders {
		n = MaxBlockHeaders
	}
	w.U16(uint16(n))
	for i := 0; i < n; i++ {
		w.Raw(encodeHeader(p.Headers[i]))
	}
	return w.Bytes()
}

func decodeHeaders(b []byte) (HeadersPayload, error) {
	r := NewReader(b)
	n := r.U16()
	if n > MaxBlockHeaders {
		n = MaxBlockHeaders
	}
	hs := make([]BlockHeader, 0, n)
	for i := uint16(0); i < n; i++ {
		h := BlockHeader{Hash: r.Hash(), PrevHash: r.Hash(), Height: r.U64(), TotalDifficulty: r.U64(), Timestamp: r.I64()}
		hs = append(hs, h)
	}
	return HeadersPayload{Headers: hs}, r.Err()
}

func encodeHashOnly(h Hash) []byte { return NewWriter().Hash(h).Bytes() }

func decodeHashOnly(b []byte) (Hash, error) {
	r := NewReader(b)
	h := r.Hash()
	return h, r.Err()
}

func encodeBlock(b Block) []byte {
	return NewWriter().Raw(encodeHeader(b.Header)).U32(uint32(len(b.Body))).Raw(b.Body).Bytes()
}

func decodeBlock(buf []byte) (Block, error) {
	r := NewReader(buf)
	h := BlockHeader{Hash: r.Hash(), PrevHash: r.Hash(), Height: r.U64(), TotalDifficulty: r.U64(), Timestamp: r.I64()}
	n := r.U32()
	body := r.Bytes(int(n))
	return Block{Header: h, Body: append([]byte(nil), body...)}, r.Err()
}

func encodeCompactBlock(cb CompactBlock) []byte {
	w := NewWriter()
	w.Raw(encodeHeader(cb.Header))
	w.U16(uint16(len(cb.KernelShortIDs)))
	for _, id := range cb.KernelShortIDs {
		w.Raw(id[:])
	}
	return w.Bytes()
}

func decodeCompactBlock(buf []byte) (CompactBlock, error) {
	r := NewReader(buf)
	h := BlockHeader{Hash: r.Hash(), PrevHash: r.Hash(), Height: r.U64(), TotalDifficulty: r.U64(), Timestamp: r.I64()}
	n := r.U16()
	ids := make([][6]byte, 0, n)
	for i := uint16(0); i < n; i++ {
		var id [6]byte
		b := r.Bytes(6)
		if b != nil {
			copy(id[:], b)
		}
		ids = append(ids, id)
	}
	return CompactBlock{Header: h, KernelShortIDs: ids}, r.Err()
}

func encodeTransaction(tx []byte) []byte { return NewWriter().U32(uint32(len(tx))).Raw(tx).Bytes() }

func decodeTransaction(b []byte) ([]byte, error) {
	r := NewReader(b)
	n := r.U32()
	tx := r.Bytes(int(n))
	return append([]byte(nil), tx...), r.Err()
}

type TxHashSetRequestPayload struct {
	Hash   Hash
	Height uint64
}

func encodeTxHashSetRequest(p TxHashSetRequestPayload) []byte {
	return NewWriter().Hash(p.Hash).U64(p.Height).Bytes()
}

func decodeTxHashSetRequest(b []byte) (TxHashSetRequestPayload, error) {
	r := NewReader(b)
	p := TxHashSetRequestPayload{Hash: r.Hash(), Height: r.U64()}
	return p, r.Err()
}

type TxHashSetArchivePayload struct {
	Hash       Hash
	Height     uint64
	ZippedSize uint64
}

func encodeTxHashSetArchive(p TxHashSetArchivePayload) []byte {
	return NewWriter().Hash(p.Hash).U64(p.Height).U64(p.ZippedSize).Bytes()
}

func decodeTxHashSetArchive(b []byte) (TxHashSetArchivePayload, error) {
	r := NewReader(b)
	p := TxHashSetArchivePayload{Hash: r.Hash(), Height: r.U64(), ZippedSize: r.U64()}
	return p, r.Err()
}

func encodeBanReason(r BanReason) []byte { return NewWriter().U32(uint32(r)).Bytes() }

func decodeBanReason(b []byte) (BanReason, error) {
	rd := NewReader(b)
	reason := BanReason(rd.U32())
	return reason, rd.Err()
}
