package protocol

// Packet flag bits (byte 0 of every packet)
const (
	FlagFirst  = 0x08 // First packet of a message
	FlagLast   = 0x04 // Last packet of a message
	FlagAckReq = 0x02 // Acknowledgment requested (reserved, not acted on)
)

// Packet layout constants (in bytes)
const (
	HeaderSizeFirst        = 4 // flags + seq + 2 byte LE total length
	HeaderSizeContinuation = 2 // flags + seq
	LinkOverhead           = 3 // link-layer overhead subtracted from the MTU
)

// MTU constants
const (
	DefaultMTU = 23  // Minimum MTU every link must support
	TargetMTU  = 512 // MTU we try to negotiate
	MinMTU     = 23
)

// ProtocolVersion is the current message envelope version
const ProtocolVersion = 3

// Message type identifiers
const (
	TypeText      = "TEXT"
	TypeWord      = "WORD"
	TypeCommand   = "COMMAND"
	TypeHeartbeat = "HEARTBEAT"
	TypeAck       = "ACK"
	TypePairReq   = "PAIR_REQ"
	TypePairAck   = "PAIR_ACK"
)

// EffectivePayloadSize returns the usable payload bytes per packet for a
// given MTU. The first packet carries a larger header than continuations.
func EffectivePayloadSize(mtu int, isFirst bool) int {
	if isFirst {
		return mtu - LinkOverhead - HeaderSizeFirst
	}
	return mtu - LinkOverhead - HeaderSizeContinuation
}
