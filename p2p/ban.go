package p2p

// BanReason records why a peer was banned, sent in a BanReason message and
// recorded in the PeerBook so reconnection is refused until BanWindow
// elapses (spec §3, §5.4).
type BanReason int

const (
	BanReasonNone BanReason = iota
	BanReasonBadBlock
	BanReasonBadBlockHeader
	BanReasonBadCompactBlock
	BanReasonBadTransaction
	BanReasonBadTxHashSet
	BanReasonAbusive
	BanReasonFraudHeight
	BanReasonBadHandshake
	BanReasonManual
)

var banReasonNames = [...]string{
	"None", "BadBlock", "BadBlockHeader", "BadCompactBlock", "BadTransaction",
	"BadTxHashSet", "Abusive", "FraudHeight", "BadHandshake", "Manual",
}

func (r BanReason) String() string {
	if int(r) < len(banReasonNames) {
		return banReasonNames[r]
	}
	return "Unknown"
}
