package network

import (
	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/metrics"
	"github.com/echotype/echotype/pkg/protocol"
)

// PacketEndpoint adapts a packet-oriented transport (what a BLE or radio
// adapter would drive) to the stream of whole envelopes the session layer
// consumes. It pairs a reassembler for inbound packets with chunking for
// outbound messages, per negotiated MTU.
type PacketEndpoint struct {
	reassembler *protocol.Reassembler
	mtu         int
	metrics     *metrics.Collector
}

// NewPacketEndpoint creates an endpoint for the given MTU. MTUs below the
// protocol minimum are clamped up to it.
func NewPacketEndpoint(mtu int, collector *metrics.Collector, log *logger.Logger) *PacketEndpoint {
	if mtu < protocol.MinMTU {
		mtu = protocol.MinMTU
	}
	return &PacketEndpoint{
		reassembler: protocol.NewReassembler(log.WithComponent("reassembler")),
		mtu:         mtu,
		metrics:     collector,
	}
}

// MTU returns the negotiated MTU
func (e *PacketEndpoint) MTU() int {
	return e.mtu
}

// SetMTU renegotiates the MTU for future outbound messages. In-flight
// reassembly is unaffected: inbound chunk sizes are whatever the peer sent.
func (e *PacketEndpoint) SetMTU(mtu int) {
	if mtu < protocol.MinMTU {
		mtu = protocol.MinMTU
	}
	e.mtu = mtu
}

// Receive feeds one inbound packet. It returns the full message bytes and
// true when the packet completed a message.
func (e *PacketEndpoint) Receive(packet []byte) ([]byte, bool) {
	message, complete := e.reassembler.Process(packet)
	if complete {
		return message, true
	}

	// A packet that neither completed a message nor left one in progress
	// was discarded by the reassembler
	if !e.reassembler.InProgress() {
		e.metrics.FramingDrop()
	}
	return nil, false
}

// Send splits one outbound message into MTU-sized packets
func (e *PacketEndpoint) Send(message []byte) [][]byte {
	return protocol.Chunk(message, e.mtu)
}

// Reset discards any partially reassembled message
func (e *PacketEndpoint) Reset() {
	e.reassembler.Reset()
}
