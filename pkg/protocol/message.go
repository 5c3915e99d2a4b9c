package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/echotype/echotype/pkg/crypto"
)

// MessageType identifies the kind of message carried by an envelope
type MessageType string

// Message types supported by the protocol
const (
	MessageText      MessageType = TypeText
	MessageWord      MessageType = TypeWord
	MessageCommand   MessageType = TypeCommand
	MessageHeartbeat MessageType = TypeHeartbeat
	MessageAck       MessageType = TypeAck
	MessagePairReq   MessageType = TypePairReq
	MessagePairAck   MessageType = TypePairAck
)

// ParseMessageType validates a wire string against the closed set of types
func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(s) {
	case MessageText, MessageWord, MessageCommand, MessageHeartbeat,
		MessageAck, MessagePairReq, MessagePairAck:
		return MessageType(s), nil
	default:
		return "", fmt.Errorf("unknown message type: %q", s)
	}
}

// Sensitive reports whether this type's payload is encrypted before signing.
// HEARTBEAT and ACK carry no confidential content and stay plaintext.
func (t MessageType) Sensitive() bool {
	switch t {
	case MessageText, MessageWord, MessageCommand, MessagePairReq, MessagePairAck:
		return true
	case MessageHeartbeat, MessageAck:
		return false
	}
	return false
}

// Message is the versioned envelope exchanged with the mobile device.
// The wire form is a compact JSON record terminated by a single newline.
type Message struct {
	Version   int         `json:"v"`
	Type      MessageType `json:"t"`
	Payload   string      `json:"p"`
	Timestamp int64       `json:"ts"`
	Checksum  string      `json:"cs"`
}

// NewMessage creates a message of the given type with the current timestamp
func NewMessage(t MessageType, payload string) *Message {
	return &Message{
		Version:   ProtocolVersion,
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewAck creates an ACK echoing the timestamp of the acknowledged message
func NewAck(originalTimestamp int64) *Message {
	return NewMessage(MessageAck, fmt.Sprintf("%d", originalTimestamp))
}

// Sign computes and sets the envelope checksum
func (m *Message) Sign(ctx *crypto.Context) {
	m.Checksum = ctx.Checksum(m.Version, string(m.Type), m.Payload, m.Timestamp)
}

// SignAndEncrypt encrypts the payload in place for sensitive types, then
// signs the envelope. The checksum therefore covers the ciphertext.
func (m *Message) SignAndEncrypt(ctx *crypto.Context) error {
	if m.Type.Sensitive() {
		encrypted, err := ctx.Encrypt(m.Payload)
		if err != nil {
			return fmt.Errorf("encrypt payload: %w", err)
		}
		m.Payload = encrypted
	}

	m.Sign(ctx)
	return nil
}

// Verify recomputes the checksum over the envelope as received
func (m *Message) Verify(ctx *crypto.Context) bool {
	return ctx.VerifyChecksum(m.Version, string(m.Type), m.Payload, m.Timestamp, m.Checksum)
}

// VerifyAndDecrypt checks integrity first, then replaces the payload with
// plaintext for sensitive types
func (m *Message) VerifyAndDecrypt(ctx *crypto.Context) error {
	if !m.Verify(ctx) {
		return crypto.ErrIntegrity
	}

	if m.Type.Sensitive() {
		plaintext, err := ctx.Decrypt(m.Payload)
		if err != nil {
			return fmt.Errorf("decrypt payload: %w", err)
		}
		m.Payload = plaintext
	}

	return nil
}

// Encode serializes the message to its newline-terminated wire form
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a message from its wire form
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &m); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	if _, err := ParseMessageType(string(m.Type)); err != nil {
		return nil, err
	}

	return &m, nil
}
