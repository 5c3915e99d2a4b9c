package session

import (
	"github.com/echotype/echotype/pkg/protocol"
)

// EventType identifies a connection event delivered to the dispatch layer
type EventType int

// Connection event types
const (
	EventConnected EventType = iota
	EventDisconnected
	EventTextReceived
	EventWordReceived
	EventCommandReceived
	EventPairRequested
	EventError
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventTextReceived:
		return "text_received"
	case EventWordReceived:
		return "word_received"
	case EventCommandReceived:
		return "command_received"
	case EventPairRequested:
		return "pair_requested"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one connection event. Events flow one way, from the connection
// to the dispatch actor; which fields are set depends on Type.
type Event struct {
	Type   EventType
	ConnID string

	// Peer identity, set once known
	DeviceID   string
	DeviceName string

	// Text carries the plaintext of a TEXT message
	Text string

	// Word carries the payload of a WORD message
	Word protocol.WordPayload

	// Command carries the command code string of a COMMAND message
	Command string

	// Err is set for EventError and may be set for EventDisconnected
	Err error
}
