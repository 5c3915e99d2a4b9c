package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/echotype/echotype/pkg/crypto"
	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/metrics"
	"github.com/echotype/echotype/pkg/protocol"
	"github.com/google/uuid"
)

// State represents the state of a device connection
type State int

const (
	StateAwaitingPair State = iota
	StateAuthenticated
	StateDisconnected
)

// String returns the string representation of the connection state
func (s State) String() string {
	switch s {
	case StateAwaitingPair:
		return "awaiting_pair"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ErrNoPendingPairing indicates Approve/Reject was called with nothing pending
var ErrNoPendingPairing = errors.New("no pairing request pending")

// ErrDisconnected indicates an operation on a terminated connection
var ErrDisconnected = errors.New("connection is disconnected")

// MessageWriter sends an encoded message back to the peer
type MessageWriter interface {
	WriteMessage(msg *protocol.Message) error
}

// PendingPairing holds the peer material of an unapproved pairing request
type PendingPairing struct {
	DeviceID    string
	DeviceName  string
	PublicKey   string
	RequestedAt time.Time
}

// Connection owns the session state of one physical device connection:
// its state machine, pending pairing and, once paired, the crypto context.
// Disconnected is terminal; a reconnecting device gets a fresh Connection.
//
// HandleMessage runs on the connection's read goroutine. Approve and Reject
// may be called from other goroutines (the approval surface), so state is
// guarded by a mutex. Events are emitted outside the lock.
type Connection struct {
	id      string
	localID string
	writer  MessageWriter
	events  chan<- Event
	log     *logger.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	state   State
	pending *PendingPairing
	crypto  *crypto.Context
	peerID  string
}

// NewConnection creates a connection in AwaitingPair
func NewConnection(localID string, writer MessageWriter, events chan<- Event, log *logger.Logger, collector *metrics.Collector) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:      id,
		localID: localID,
		writer:  writer,
		events:  events,
		log:     log.WithComponent("session").WithComponent(id[:8]),
		metrics: collector,
		state:   StateAwaitingPair,
	}
}

// ID returns the connection identifier
func (c *Connection) ID() string {
	return c.id
}

// State returns the current connection state
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PeerID returns the paired device id, empty before authentication
func (c *Connection) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// Pending returns a copy of the pending pairing request, if any
func (c *Connection) Pending() *PendingPairing {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

// HandleMessage processes one decoded wire frame. Malformed or unverifiable
// input drops the message, never the connection.
func (c *Connection) HandleMessage(raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		c.metrics.DecodeDrop()
		c.log.Warn("dropping malformed message", logger.Error(err))
		return
	}

	c.metrics.MessageReceived(string(msg.Type))

	switch msg.Type {
	case protocol.MessageHeartbeat:
		// Answered in any state
		c.sendAck(msg.Timestamp)
	case protocol.MessageAck:
		c.log.Debug("ack received", logger.Int("ts", int(msg.Timestamp)))
	case protocol.MessagePairReq:
		c.handlePairRequest(msg)
	case protocol.MessagePairAck:
		// Only the desktop sends PAIR_ACK; a peer copy is noise
		c.log.Debug("unexpected pair ack from peer, dropping")
	case protocol.MessageText, protocol.MessageWord, protocol.MessageCommand:
		c.handleSensitive(msg)
	}
}

// handlePairRequest stores the request as pending and acknowledges receipt
// immediately so the peer does not time out while the human decides.
func (c *Connection) handlePairRequest(msg *protocol.Message) {
	var payload protocol.PairRequestPayload
	if err := protocol.DecodePayload(msg.Payload, &payload); err != nil {
		c.metrics.DecodeDrop()
		c.log.Warn("dropping unparseable pairing request", logger.Error(err))
		return
	}

	if err := payload.Validate(); err != nil {
		c.log.Warn("rejecting invalid pairing request", logger.Error(err))
		c.sendPairError(payload.DeviceID, err.Error())
		return
	}

	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	superseded := c.pending
	c.pending = &PendingPairing{
		DeviceID:    payload.DeviceID,
		DeviceName:  payload.DeviceName,
		PublicKey:   payload.PublicKey,
		RequestedAt: time.Now(),
	}
	c.mu.Unlock()

	if superseded != nil {
		c.log.Warn("new pairing request supersedes pending one",
			logger.String("previous_device", superseded.DeviceID),
			logger.String("device", payload.DeviceID))
	}

	c.metrics.PairRequested()
	c.log.Info("pairing requested",
		logger.String("device", payload.DeviceID),
		logger.String("name", payload.DeviceName))

	c.sendAck(msg.Timestamp)

	c.emit(Event{
		Type:       EventPairRequested,
		ConnID:     c.id,
		DeviceID:   payload.DeviceID,
		DeviceName: payload.DeviceName,
	})
}

// Approve completes the pending pairing: runs the key exchange, derives the
// session context and answers with a signed PAIR_ACK carrying our public
// key. The ack is signed but not encrypted; the peer cannot decrypt before
// it has derived the same key from the returned public key.
func (c *Connection) Approve() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return ErrDisconnected
	}
	pending := c.pending
	if pending == nil {
		c.mu.Unlock()
		return ErrNoPendingPairing
	}
	c.mu.Unlock()

	keypair, err := crypto.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}

	secret, err := keypair.SharedSecretBase64(pending.PublicKey)
	if err != nil {
		c.log.Warn("pairing key exchange failed", logger.Error(err))
		c.sendPairError(pending.DeviceID, "invalid public key")
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		c.metrics.PairRejected()
		return fmt.Errorf("key exchange: %w", err)
	}

	sessionCrypto := crypto.NewContextFromSecret(secret, pending.DeviceID, c.localID)

	ackPayload, err := protocol.EncodePayload(protocol.PairAckSuccess(c.localID, keypair.PublicKeyBase64()))
	if err != nil {
		return fmt.Errorf("encode pair ack: %w", err)
	}

	ack := protocol.NewMessage(protocol.MessagePairAck, ackPayload)
	ack.Sign(sessionCrypto)
	if err := c.send(ack); err != nil {
		return fmt.Errorf("send pair ack: %w", err)
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.crypto = sessionCrypto
	c.peerID = pending.DeviceID
	c.pending = nil
	c.mu.Unlock()

	c.metrics.PairApproved()
	c.log.Info("pairing approved, session authenticated",
		logger.String("device", pending.DeviceID))

	c.emit(Event{
		Type:       EventConnected,
		ConnID:     c.id,
		DeviceID:   pending.DeviceID,
		DeviceName: pending.DeviceName,
	})
	return nil
}

// Reject denies the pending pairing with an unsigned error PAIR_ACK and
// returns the connection to plain AwaitingPair.
func (c *Connection) Reject(reason string) error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return ErrDisconnected
	}
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending == nil {
		return ErrNoPendingPairing
	}

	if reason == "" {
		reason = "pairing rejected"
	}
	c.sendPairError(pending.DeviceID, reason)

	c.metrics.PairRejected()
	c.log.Info("pairing rejected",
		logger.String("device", pending.DeviceID),
		logger.String("reason", reason))
	return nil
}

// handleSensitive verifies, decrypts and dispatches an authenticated
// payload-bearing message. Pre-auth traffic and unverifiable messages are
// dropped without a response.
func (c *Connection) handleSensitive(msg *protocol.Message) {
	c.mu.Lock()
	authenticated := c.state == StateAuthenticated
	sessionCrypto := c.crypto
	c.mu.Unlock()

	if !authenticated {
		c.metrics.PreAuthDrop()
		c.log.Debug("dropping message before authentication",
			logger.String("type", string(msg.Type)))
		return
	}

	if err := msg.VerifyAndDecrypt(sessionCrypto); err != nil {
		// Silence on purpose: a tampered or desynced peer gets no feedback
		if errors.Is(err, crypto.ErrIntegrity) {
			c.metrics.IntegrityDrop()
			c.log.Warn("dropping message with bad checksum")
		} else {
			c.metrics.DecryptDrop()
			c.log.Warn("dropping undecryptable message", logger.Error(err))
		}
		return
	}

	switch msg.Type {
	case protocol.MessageText:
		c.emit(Event{Type: EventTextReceived, ConnID: c.id, DeviceID: c.PeerID(), Text: msg.Payload})
	case protocol.MessageWord:
		var word protocol.WordPayload
		if err := protocol.DecodePayload(msg.Payload, &word); err != nil {
			c.metrics.DecodeDrop()
			c.log.Warn("dropping unparseable word payload", logger.Error(err))
			return
		}
		c.emit(Event{Type: EventWordReceived, ConnID: c.id, DeviceID: c.PeerID(), Word: word})
	case protocol.MessageCommand:
		c.emit(Event{Type: EventCommandReceived, ConnID: c.id, DeviceID: c.PeerID(), Command: msg.Payload})
	}

	c.sendSignedAck(msg.Timestamp, sessionCrypto)
}

// HandleDisconnect tears the connection down: state becomes terminal and
// the crypto context is dropped so no later connection can reach it.
func (c *Connection) HandleDisconnect(err error) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.crypto = nil
	c.pending = nil
	peerID := c.peerID
	c.mu.Unlock()

	if err != nil {
		c.log.Info("connection closed", logger.Error(err))
	} else {
		c.log.Info("connection closed")
	}

	c.emit(Event{Type: EventDisconnected, ConnID: c.id, DeviceID: peerID, Err: err})
}

func (c *Connection) sendAck(originalTimestamp int64) {
	if err := c.send(protocol.NewAck(originalTimestamp)); err != nil {
		c.log.Warn("failed to send ack", logger.Error(err))
	}
}

func (c *Connection) sendSignedAck(originalTimestamp int64, sessionCrypto *crypto.Context) {
	ack := protocol.NewAck(originalTimestamp)
	ack.Sign(sessionCrypto)
	if err := c.send(ack); err != nil {
		c.log.Warn("failed to send ack", logger.Error(err))
	}
}

func (c *Connection) sendPairError(deviceID, reason string) {
	payload, err := protocol.EncodePayload(protocol.PairAckError(deviceID, reason))
	if err != nil {
		c.log.Warn("failed to encode pair error", logger.Error(err))
		return
	}
	if err := c.send(protocol.NewMessage(protocol.MessagePairAck, payload)); err != nil {
		c.log.Warn("failed to send pair error", logger.Error(err))
	}
}

func (c *Connection) send(msg *protocol.Message) error {
	if err := c.writer.WriteMessage(msg); err != nil {
		return err
	}
	c.metrics.MessageSent(string(msg.Type))
	return nil
}

func (c *Connection) emit(event Event) {
	c.events <- event
}
