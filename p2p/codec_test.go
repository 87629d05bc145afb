package p2p

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := (&Writer{}).U64(42).VarStr("hello").Bytes()
	frame := Encode(Mainnet, MsgPing, payload)

	hdr, err := ReadHeader(bytes.NewReader(frame), Mainnet)
	require.NoError(t, err)
	assert.Equal(t, MsgPing, hdr.Type)
	assert.Equal(t, uint64(len(payload)), hdr.Length)

	body := frame[frameHeaderSize:]
	require.Equal(t, payload, body)

	r := NewReader(body)
	assert.Equal(t, uint64(42), r.U64())
	assert.Equal(t, "hello", r.VarStr())
	assert.NoError(t, r.Err())
}

func TestReadHeaderRejectsWrongMagic(t *testing.T) {
	frame := Encode(Mainnet, MsgPing, nil)
	_, err := ReadHeader(bytes.NewReader(frame), Floonet)
	require.Error(t, err)
	assert.Equal(t, KindProtocol, ErrKind(err))
}

func TestReadHeaderRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	magic := magicBytes(Mainnet)
	buf.Write(magic[:])
	buf.WriteByte(byte(MsgPing))
	over := MaxSize(MsgPing)*4 + 1
	var lenBuf [8]byte
	for i := 0; i < 8; i++ {
		lenBuf[i] = byte(over >> uint(56-8*i))
	}
	buf.Write(lenBuf[:])

	_, err := ReadHeader(&buf, Mainnet)
	require.Error(t, err)
	assert.Equal(t, KindDeserialization, ErrKind(err))
}

func TestReadHeaderRejectsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	magic := magicBytes(Mainnet)
	buf.Write(magic[:])
	buf.WriteByte(255)
	buf.Write(make([]byte, 8))

	_, err := ReadHeader(&buf, Mainnet)
	require.Error(t, err)
	assert.Equal(t, KindDeserialization, ErrKind(err))
}

func TestSocketAddrRoundTrip(t *testing.T) {
	addr := net.TCPAddr{IP: net.ParseIP("203.0.113.5").To4(), Port: 13414}
	w := NewWriter()
	w.SocketAddr(addr)
	r := NewReader(w.Bytes())
	got := r.SocketAddr()
	require.NoError(t, r.Err())
	assert.Equal(t, addr.IP.String(), got.IP.String())
	assert.Equal(t, addr.Port, got.Port)
}

func TestReaderFailsClosedOnTruncatedInput(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	r.Hash()
	assert.Error(t, r.Err())
	assert.Equal(t, KindDeserialization, ErrKind(r.Err()))
}
