package p2p

import "net"

// Hand is the outbound handshake opener (spec §4.3).
type Hand struct {
	Version         uint32
	Capabilities    Capabilities
	Nonce           uint64
	TotalDifficulty uint64
	SenderAddr      net.TCPAddr
	ReceiverAddr    net.TCPAddr
	UserAgent       string
	GenesisHash     Hash
}

// Shake is the handshake reply (spec §4.3).
type Shake struct {
	Version         uint32
	Capabilities    Capabilities
	TotalDifficulty uint64
	UserAgent       string
	GenesisHash     Hash
}

func encodeHand(h Hand) []byte {
	w := NewWriter()
	w.U32(h.Version).U32(uint32(h.Capabilities)).U64(h.Nonce).U64(h.TotalDifficulty)
	w.SocketAddr(h.SenderAddr).SocketAddr(h.ReceiverAddr)
	w.VarStr(h.UserAgent)
	w.Hash(h.GenesisHash)
	return w.Bytes()
}

func decodeHand(payload []byte) (Hand, error) {
	r := NewReader(payload)
	var h Hand
	h.Version = r.U32()
	h.Capabilities = Capabilities(r.U32())
	h.Nonce = r.U64()
	h.TotalDifficulty = r.U64()
	h.SenderAddr = r.SocketAddr()
	h.ReceiverAddr = r.SocketAddr()
	h.UserAgent = r.VarStr()
	h.GenesisHash = r.Hash()
	return h, r.Err()
}

func encodeShake(s Shake) []byte {
	w := NewWriter()
	w.U32(s.Version).U32(uint32(s.Capabilities)).U64(s.TotalDifficulty)
	w.VarStr(s.UserAgent)
	w.Hash(s.GenesisHash)
	return w.Bytes()
}

func decodeShake(payload []byte) (Shake, error) {
	r := NewReader(payload)
	var s Shake
	s.Version = r.U32()
	s.Capabilities = Capabilities(r.U32())
	s.TotalDifficulty = r.U64()
	s.UserAgent = r.VarStr()
	s.GenesisHash = r.Hash()
	return s, r.Err()
}

// HandshakeIdentity is the local node's side of every handshake: its
// process nonce (self-connect detection), genesis hash (chain identity)
// and advertised capabilities. The chain tip is passed separately.
type HandshakeIdentity struct {
	Nonce       uint64
	GenesisHash Hash
	Capabilities Capabilities
}

// DoOutbound performs the dialing side of the handshake (spec §4.3): send
// Hand, then block for Shake or BanReason. Returns the peer's advertised
// Shake on success.
func DoOutbound(sock *Socket, net Network, local HandshakeIdentity, localAddr, remoteAddr net.TCPAddr, localTD uint64) (Shake, error) {
	hand := Hand{
		Version:         ProtocolVersion,
		Capabilities:    local.Capabilities,
		Nonce:           local.Nonce,
		TotalDifficulty: localTD,
		SenderAddr:      localAddr,
		ReceiverAddr:    remoteAddr,
		UserAgent:       UserAgent,
		GenesisHash:     local.GenesisHash,
	}
	frame := Encode(net, MsgHand, encodeHand(hand))
	if err := sock.Send(frame, false); err != nil {
		return Shake{}, err
	}

	sock.SetRecvTimeout(handshakeTimeout)
	payload, typ, err := sock.Receive(net, Blocking)
	if err != nil {
		return Shake{}, err
	}
	switch typ {
	case MsgShake:
		shake, err := decodeShake(payload)
		if err != nil {
			return Shake{}, err
		}
		if shake.GenesisHash != local.GenesisHash {
			return Shake{}, WrapErr(KindProtocol, ErrWrongGenesis)
		}
		return shake, nil
	case MsgBanReason:
		return Shake{}, WrapErr(KindProtocol, Errf(KindProtocol, "remote refused handshake"))
	default:
		return Shake{}, WrapErr(KindProtocol, Errf(KindProtocol, "unexpected message %s during handshake", typ))
	}
}

// DoInbound performs the accepting side: expect Hand first, reply Shake or
// close (spec §4.3).
func DoInbound(sock *Socket, net Network, local HandshakeIdentity, localAddr, remoteAddr net.TCPAddr, localTD uint64) (Hand, error) {
	sock.SetRecvTimeout(handshakeTimeout)
	payload, typ, err := sock.Receive(net, Blocking)
	if err != nil {
		return Hand{}, err
	}
	if typ != MsgHand {
		return Hand{}, WrapErr(KindProtocol, Errf(KindProtocol, "expected Hand, got %s", typ))
	}
	hand, err := decodeHand(payload)
	if err != nil {
		return Hand{}, err
	}
	if hand.Nonce == local.Nonce {
		return Hand{}, WrapErr(KindProtocol, ErrSelfConnect)
	}
	if hand.GenesisHash != local.GenesisHash {
		return Hand{}, WrapErr(KindProtocol, ErrWrongGenesis)
	}

	shake := Shake{
		Version:         ProtocolVersion,
		Capabilities:    local.Capabilities,
		TotalDifficulty: localTD,
		UserAgent:       UserAgent,
		GenesisHash:     local.GenesisHash,
	}
	frame := Encode(net, MsgShake, encodeShake(shake))
	if err := sock.Send(frame, false); err != nil {
		return Hand{}, err
	}
	return hand, nil
}
