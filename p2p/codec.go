package p2p

import (
	"encoding/binary"
	"io"
	"net"
)

// frameHeaderSize is magic(2) || type(1) || length(8).
const frameHeaderSize = 2 + 1 + 8

// Header is the fixed-size preamble that precedes every message payload on
// the wire (spec §4.1), ported byte-for-byte from original_source's
// MessageHeader so either implementation can frame the other's traffic.
type Header struct {
	Magic  [2]byte
	Type   MsgType
	Length uint64
}

// ReadHeader reads and validates a frame header against network magic and
// the per-type size table (spec testable property 2: oversized or
// wrong-magic frames are rejected before the payload is read).
func ReadHeader(r io.Reader, net Network) (Header, error) {
	var buf [frameHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, WrapErr(KindSocket, err)
	}

	want := magicBytes(net)
	var h Header
	h.Magic[0], h.Magic[1] = buf[0], buf[1]
	if h.Magic != want {
		return Header{}, WrapErr(KindProtocol, ErrBadMagic)
	}
	h.Type = MsgType(buf[2])
	h.Length = binary.BigEndian.Uint64(buf[3:11])

	if !h.Type.Valid() {
		return Header{}, WrapErr(KindDeserialization, ErrUnknownType)
	}
	if limit := MaxSize(h.Type) * 4; h.Length > limit {
		return Header{}, WrapErr(KindDeserialization, ErrMessageTooLarge)
	}
	return h, nil
}

// WriteHeader serializes h to w.
func WriteHeader(w io.Writer, h Header) error {
	var buf [frameHeaderSize]byte
	buf[0], buf[1] = h.Magic[0], h.Magic[1]
	buf[2] = byte(h.Type)
	binary.BigEndian.PutUint64(buf[3:11], h.Length)
	_, err := w.Write(buf[:])
	return WrapErr(KindSocket, err)
}

// Reader decodes the fixed-width and variable-width primitives used by
// message payloads, mirroring original_source's ByteBuffer::Read* family.
type Reader struct {
	buf []byte
	pos int
	err error
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = WrapErr(KindDeserialization, err)
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.buf) {
		r.fail(io.ErrUnexpectedEOF)
		return nil
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *Reader) I64() int64 { return int64(r.U64()) }

func (r *Reader) Bool() bool { return r.U8() != 0 }

// Hash reads a fixed 32-byte hash (spec §6 Hash type).
func (r *Reader) Hash() [32]byte {
	var out [32]byte
	b := r.take(32)
	if b != nil {
		copy(out[:], b)
	}
	return out
}

// Commitment reads a fixed 33-byte Pedersen commitment.
func (r *Reader) Commitment() [33]byte {
	var out [33]byte
	b := r.take(33)
	if b != nil {
		copy(out[:], b)
	}
	return out
}

// Signature reads a fixed 64-byte compact signature.
func (r *Reader) Signature() [64]byte {
	var out [64]byte
	b := r.take(64)
	if b != nil {
		copy(out[:], b)
	}
	return out
}

// VarStr reads a length-prefixed (u8 length) ASCII string, as used for the
// Hand/Shake user agent field.
func (r *Reader) VarStr() string {
	n := int(r.U8())
	b := r.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) []byte { return r.take(n) }

// SocketAddr decodes an address as family(1) || addr(4 or 16) || port(2),
// matching original_source's SocketAddress serialization.
func (r *Reader) SocketAddr() net.TCPAddr {
	family := r.U8()
	var ip net.IP
	switch family {
	case 0: // IPv4
		ip = net.IP(append([]byte(nil), r.take(4)...))
	case 1: // IPv6
		ip = net.IP(append([]byte(nil), r.take(16)...))
	default:
		r.fail(Errf(KindDeserialization, "unknown address family %d", family))
		return net.TCPAddr{}
	}
	port := r.U16()
	return net.TCPAddr{IP: ip, Port: int(port)}
}

// Writer encodes payload primitives, the inverse of Reader.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) U8(v uint8) *Writer { w.buf = append(w.buf, v); return w }

func (w *Writer) U16(v uint16) *Writer {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) U64(v uint64) *Writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) I64(v int64) *Writer { return w.U64(uint64(v)) }

func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.U8(1)
	}
	return w.U8(0)
}

func (w *Writer) Hash(h [32]byte) *Writer { w.buf = append(w.buf, h[:]...); return w }

func (w *Writer) Commitment(c [33]byte) *Writer { w.buf = append(w.buf, c[:]...); return w }

func (w *Writer) Signature(s [64]byte) *Writer { w.buf = append(w.buf, s[:]...); return w }

func (w *Writer) VarStr(s string) *Writer {
	if len(s) > 255 {
		s = s[:255]
	}
	w.U8(uint8(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

func (w *Writer) Raw(b []byte) *Writer { w.buf = append(w.buf, b...); return w }

func (w *Writer) SocketAddr(a net.TCPAddr) *Writer {
	if ip4 := a.IP.To4(); ip4 != nil {
		w.U8(0)
		w.Raw(ip4)
	} else {
		w.U8(1)
		ip16 := a.IP.To16()
		if ip16 == nil {
			ip16 = make([]byte, 16)
		}
		w.Raw(ip16)
	}
	w.U16(uint16(a.Port))
	return w
}

// Encode frames a fully-serialized payload with its header for net net.
func Encode(net Network, t MsgType, payload []byte) []byte {
	out := make([]byte, 0, frameHeaderSize+len(payload))
	wr := &Writer{buf: out}
	magic := magicBytes(net)
	wr.buf = append(wr.buf, magic[0], magic[1], byte(t))
	wr.U64(uint64(len(payload)))
	wr.Raw(payload)
	return wr.buf
}
