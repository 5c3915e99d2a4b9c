package protocol

import (
	"encoding/json"
	"fmt"
)

// Pairing status values carried by PairAckPayload
const (
	PairStatusOK    = "ok"
	PairStatusError = "error"
)

// PairRequestPayload is the payload of a PAIR_REQ message. The public key
// is the peer's ephemeral X25519 key, base64 encoded; it must be non-empty.
type PairRequestPayload struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name,omitempty"`
	PublicKey  string `json:"public_key"`
}

// Validate checks the fields a pairing attempt requires
func (p *PairRequestPayload) Validate() error {
	if p.DeviceID == "" {
		return fmt.Errorf("pairing request missing device id")
	}
	if p.PublicKey == "" {
		return fmt.Errorf("pairing request missing public key")
	}
	return nil
}

// PairAckPayload is the payload of a PAIR_ACK message
type PairAckPayload struct {
	DeviceID        string `json:"device_id"`
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	PublicKey       string `json:"public_key,omitempty"`
	ProtocolVersion int    `json:"protocol_version,omitempty"`
}

// PairAckSuccess builds an ok acknowledgment carrying our public key
func PairAckSuccess(deviceID, publicKey string) *PairAckPayload {
	return &PairAckPayload{
		DeviceID:        deviceID,
		Status:          PairStatusOK,
		PublicKey:       publicKey,
		ProtocolVersion: ProtocolVersion,
	}
}

// PairAckError builds an error acknowledgment
func PairAckError(deviceID, errMsg string) *PairAckPayload {
	return &PairAckPayload{
		DeviceID: deviceID,
		Status:   PairStatusError,
		Error:    errMsg,
	}
}

// WordPayload is the payload of a WORD message. Seq is reserved and may be
// ignored by receivers; Session groups words of one dictation session.
type WordPayload struct {
	Word      string `json:"word"`
	Seq       int    `json:"seq,omitempty"`
	Session   string `json:"session"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// EncodePayload serializes a typed payload to its JSON form
func EncodePayload(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// DecodePayload parses a typed payload from its JSON form
func DecodePayload(payload string, v interface{}) error {
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	return nil
}
