package testhelpers

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/echotype/echotype/pkg/crypto"
	"github.com/echotype/echotype/pkg/protocol"
)

// MockPhone simulates a paired mobile device over the TCP transport. It
// speaks the newline-delimited envelope protocol: plaintext until pairing
// completes, encrypted afterwards.
type MockPhone struct {
	DeviceID   string
	DeviceName string

	conn    net.Conn
	reader  *bufio.Reader
	keypair *crypto.Keypair
	crypto  *crypto.Context
}

// NewMockPhone creates a mock phone identity
func NewMockPhone(deviceID, deviceName string) *MockPhone {
	return &MockPhone{
		DeviceID:   deviceID,
		DeviceName: deviceName,
	}
}

// Connect dials the desktop transport
func (p *MockPhone) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return fmt.Errorf("dial desktop: %w", err)
	}
	p.conn = conn
	p.reader = bufio.NewReader(conn)
	return nil
}

// Close closes the connection
func (p *MockPhone) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// SendPairRequest sends a PAIR_REQ with a fresh ephemeral public key and
// consumes the immediate plaintext ACK.
func (p *MockPhone) SendPairRequest() error {
	keypair, err := crypto.GenerateKeypair()
	if err != nil {
		return err
	}
	p.keypair = keypair

	payload, err := protocol.EncodePayload(&protocol.PairRequestPayload{
		DeviceID:   p.DeviceID,
		DeviceName: p.DeviceName,
		PublicKey:  keypair.PublicKeyBase64(),
	})
	if err != nil {
		return err
	}

	if err := p.writeMessage(protocol.NewMessage(protocol.MessagePairReq, payload)); err != nil {
		return err
	}

	ack, err := p.ReadMessage(2 * time.Second)
	if err != nil {
		return fmt.Errorf("read pairing ack: %w", err)
	}
	if ack.Type != protocol.MessageAck {
		return fmt.Errorf("expected ACK after pairing request, got %s", ack.Type)
	}
	return nil
}

// CompletePairing reads the PAIR_ACK the desktop sends on approval and
// derives the session key from its public key. The envelope is signed but
// not encrypted; both sides derive the key over (phone id, desktop id).
func (p *MockPhone) CompletePairing() error {
	msg, err := p.ReadMessage(2 * time.Second)
	if err != nil {
		return fmt.Errorf("read pair ack: %w", err)
	}
	if msg.Type != protocol.MessagePairAck {
		return fmt.Errorf("expected PAIR_ACK, got %s", msg.Type)
	}

	var ack protocol.PairAckPayload
	if err := protocol.DecodePayload(msg.Payload, &ack); err != nil {
		return err
	}
	if ack.Status != protocol.PairStatusOK {
		return fmt.Errorf("pairing rejected: %s", ack.Error)
	}
	if ack.PublicKey == "" {
		return fmt.Errorf("pair ack missing desktop public key")
	}

	secret, err := p.keypair.SharedSecretBase64(ack.PublicKey)
	if err != nil {
		return err
	}

	ctx := crypto.NewContextFromSecret(secret, p.DeviceID, ack.DeviceID)
	p.crypto = ctx

	if !msg.Verify(ctx) {
		return fmt.Errorf("pair ack signature invalid")
	}
	return nil
}

// Pair runs the full pairing handshake. The approve callback is invoked
// between the request and the acknowledgment, mirroring the human approval
// step on the desktop.
func (p *MockPhone) Pair(approve func() error) error {
	if err := p.SendPairRequest(); err != nil {
		return err
	}
	if approve != nil {
		if err := approve(); err != nil {
			return err
		}
	}
	return p.CompletePairing()
}

// SendText sends an encrypted TEXT message and waits for the signed ACK
func (p *MockPhone) SendText(text string) error {
	return p.sendSensitive(protocol.MessageText, text)
}

// SendWord sends an encrypted WORD message and waits for the signed ACK
func (p *MockPhone) SendWord(word, session string) error {
	payload, err := protocol.EncodePayload(&protocol.WordPayload{
		Word:      word,
		Session:   session,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return p.sendSensitive(protocol.MessageWord, payload)
}

// SendCommand sends an encrypted COMMAND message and waits for the signed ACK
func (p *MockPhone) SendCommand(code string) error {
	return p.sendSensitive(protocol.MessageCommand, code)
}

// SendHeartbeat sends a plaintext HEARTBEAT and waits for the ACK
func (p *MockPhone) SendHeartbeat() error {
	if err := p.writeMessage(protocol.NewMessage(protocol.MessageHeartbeat, "")); err != nil {
		return err
	}
	ack, err := p.ReadMessage(2 * time.Second)
	if err != nil {
		return err
	}
	if ack.Type != protocol.MessageAck {
		return fmt.Errorf("expected ACK, got %s", ack.Type)
	}
	return nil
}

func (p *MockPhone) sendSensitive(t protocol.MessageType, payload string) error {
	if p.crypto == nil {
		return fmt.Errorf("not paired")
	}

	msg := protocol.NewMessage(t, payload)
	if err := msg.SignAndEncrypt(p.crypto); err != nil {
		return err
	}
	if err := p.writeMessage(msg); err != nil {
		return err
	}

	ack, err := p.ReadMessage(2 * time.Second)
	if err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if ack.Type != protocol.MessageAck {
		return fmt.Errorf("expected ACK, got %s", ack.Type)
	}
	if !ack.Verify(p.crypto) {
		return fmt.Errorf("ack signature invalid")
	}
	return nil
}

// ReadMessage reads one envelope off the wire
func (p *MockPhone) ReadMessage(timeout time.Duration) (*protocol.Message, error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	line, err := p.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return protocol.Decode(line)
}

func (p *MockPhone) writeMessage(msg *protocol.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	_, err = p.conn.Write(data)
	return err
}
