package protocol

import (
	"encoding/binary"

	"github.com/echotype/echotype/pkg/logger"
)

// Reassembler reconstructs length-prefixed messages from a sequence of
// small packets. A single Reassembler owns its buffer exclusively; it is
// not safe for concurrent use.
type Reassembler struct {
	buffer      []byte
	expectedLen int
	expectedSeq uint8
	inProgress  bool
	log         *logger.Logger
}

// NewReassembler creates a new reassembler
func NewReassembler(log *logger.Logger) *Reassembler {
	return &Reassembler{
		buffer: make([]byte, 0, 4096),
		log:    log,
	}
}

// Process handles one incoming packet. It returns (message, true) when a
// complete message has been reassembled, otherwise (nil, false). Framing
// violations (short packet, sequence mismatch, length mismatch, continuation
// without start) discard the in-flight message and are never fatal: the
// reassembler waits for the next FIRST packet.
func (r *Reassembler) Process(packet []byte) ([]byte, bool) {
	if len(packet) < HeaderSizeContinuation {
		r.log.Warn("Packet too short", logger.Int("bytes", len(packet)))
		return nil, false
	}

	flags := packet[0]
	seq := packet[1]
	isFirst := flags&FlagFirst != 0
	isLast := flags&FlagLast != 0

	switch {
	case isFirst:
		if len(packet) < HeaderSizeFirst {
			r.log.Warn("First packet too short", logger.Int("bytes", len(packet)))
			return nil, false
		}

		r.buffer = r.buffer[:0]
		r.expectedLen = int(binary.LittleEndian.Uint16(packet[2:4]))
		r.expectedSeq = 0
		r.inProgress = true
		r.buffer = append(r.buffer, packet[HeaderSizeFirst:]...)

		r.log.Debug("Started message reassembly", logger.Int("expected_bytes", r.expectedLen))

	case r.inProgress:
		if seq != r.expectedSeq {
			r.log.Warn("Sequence error",
				logger.Int("expected", int(r.expectedSeq)),
				logger.Int("got", int(seq)))
			r.Reset()
			return nil, false
		}
		r.buffer = append(r.buffer, packet[HeaderSizeContinuation:]...)

	default:
		r.log.Warn("Continuation packet without start")
		return nil, false
	}

	r.expectedSeq++

	if isLast {
		r.inProgress = false

		if len(r.buffer) != r.expectedLen {
			r.log.Warn("Length mismatch",
				logger.Int("expected", r.expectedLen),
				logger.Int("got", len(r.buffer)))
			r.Reset()
			return nil, false
		}

		message := make([]byte, len(r.buffer))
		copy(message, r.buffer)
		r.Reset()
		return message, true
	}

	return nil, false
}

// Reset clears all reassembly state
func (r *Reassembler) Reset() {
	r.buffer = r.buffer[:0]
	r.expectedLen = 0
	r.expectedSeq = 0
	r.inProgress = false
}

// InProgress reports whether a message is currently being reassembled
func (r *Reassembler) InProgress() bool {
	return r.inProgress
}

// BufferSize returns the number of accumulated payload bytes
func (r *Reassembler) BufferSize() int {
	return len(r.buffer)
}

// Chunk splits a message into packets that fit the given MTU. Empty input
// produces no packets. Exactly one packet carries FIRST and exactly one
// carries LAST (the same packet when the message fits in one chunk).
func Chunk(data []byte, mtu int) [][]byte {
	if len(data) == 0 {
		return nil
	}

	var packets [][]byte
	offset := 0
	seq := uint8(0)

	for offset < len(data) {
		isFirst := offset == 0
		remaining := len(data) - offset

		chunkSize := EffectivePayloadSize(mtu, isFirst)
		if remaining < chunkSize {
			chunkSize = remaining
		}
		isLast := offset+chunkSize >= len(data)

		header := HeaderSizeContinuation
		if isFirst {
			header = HeaderSizeFirst
		}

		packet := make([]byte, header, header+chunkSize)

		var flags byte
		if isFirst {
			flags |= FlagFirst
		}
		if isLast {
			flags |= FlagLast
		}
		packet[0] = flags
		packet[1] = seq
		seq++

		if isFirst {
			binary.LittleEndian.PutUint16(packet[2:4], uint16(len(data)))
		}

		packet = append(packet, data[offset:offset+chunkSize]...)
		packets = append(packets, packet)
		offset += chunkSize
	}

	return packets
}
