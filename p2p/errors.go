package p2p

import "github.com/pkg/errors"

// Kind classifies an error for disposition purposes (spec §7): every
// fallible operation in this package returns an error built from one of
// these kinds instead of panicking, and callers switch on ErrKind(err) to
// decide whether to ban, close, or ignore.
type Kind int

const (
	// KindOther covers anything that doesn't fit a disposition below.
	KindOther Kind = iota
	// KindDeserialization: malformed wire data. Closes the connection and, once
	// the peer is past the handshake, bans it (BanReasonBadHandshake).
	KindDeserialization
	// KindProtocol: unexpected message, self-connect, wrong genesis, wrong magic.
	// Closes the connection and, once the peer is past the handshake, bans it
	// (BanReasonBadHandshake); a handshake that fails this way is only closed.
	KindProtocol
	// KindSocket: timeout, closed socket, I/O error. Closes the connection; not fatal to the node.
	KindSocket
	// KindRateLimit: sender exceeded the rolling-window budget. Bans (Abusive).
	KindRateLimit
	// KindValidation: BlockChain rejected the payload as invalid. Bans with an operation-specific reason.
	KindValidation
	// KindResourceMissing: we don't have the requested data. Not an error to surface; ignore or reply empty.
	KindResourceMissing
	// KindShutdown: cooperative shutdown in progress. No ban.
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindDeserialization:
		return "deserialization"
	case KindProtocol:
		return "protocol"
	case KindSocket:
		return "socket"
	case KindRateLimit:
		return "rate_limit"
	case KindValidation:
		return "validation"
	case KindResourceMissing:
		return "resource_missing"
	case KindShutdown:
		return "shutdown"
	default:
		return "other"
	}
}

// kindError pairs a Kind with the underlying cause so errors.Cause(err) still
// unwraps to the original error from a lower layer (socket, codec, etc.).
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.kind.String() + ": " + e.cause.Error() }
func (e *kindError) Cause() error  { return e.cause }
func (e *kindError) Unwrap() error { return e.cause }

// WrapErr tags err with a disposition Kind, preserving the original cause.
func WrapErr(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.WithStack(err)}
}

// Errf builds a new Kind-tagged error from a format string.
func Errf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, cause: errors.Errorf(format, args...)}
}

// ErrKind extracts the disposition Kind from err, or KindOther if err was
// never tagged by WrapErr/Errf.
func ErrKind(err error) Kind {
	var ke *kindError
	for err != nil {
		if k, ok := err.(*kindError); ok {
			ke = k
			break
		}
		type causer interface{ Cause() error }
		c, ok := err.(causer)
		if !ok {
			break
		}
		err = c.Cause()
	}
	if ke == nil {
		return KindOther
	}
	return ke.kind
}

// Sentinel errors returned verbatim by lower layers; wrapped with WrapErr at
// the boundary where disposition is decided.
var (
	ErrSocketClosed    = errors.New("socket closed")
	ErrTimeout         = errors.New("timed out")
	ErrWouldBlock      = errors.New("would block")
	ErrBadMagic        = errors.New("bad magic bytes")
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
	ErrUnknownType     = errors.New("unknown message type")
	ErrSelfConnect     = errors.New("connected to self")
	ErrWrongGenesis    = errors.New("genesis hash mismatch")
	ErrAlreadyBanned   = errors.New("peer is banned")
	ErrNotConnected    = errors.New("peer not connected")
)
