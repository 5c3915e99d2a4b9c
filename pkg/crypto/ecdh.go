package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// PublicKeySize is the X25519 public key size in bytes
const PublicKeySize = 32

// SharedSecretSize is the X25519 shared secret size in bytes
const SharedSecretSize = 32

// ErrKeypairUsed indicates an attempt to reuse a consumed ephemeral keypair
var ErrKeypairUsed = errors.New("ephemeral keypair already consumed")

// Keypair is an ephemeral X25519 keypair. The private scalar may be used
// at most once: SharedSecret consumes the keypair, and any further call
// fails with ErrKeypairUsed.
type Keypair struct {
	private [PublicKeySize]byte
	public  [PublicKeySize]byte
	used    bool
}

// GenerateKeypair creates a new ephemeral keypair from the system CSPRNG
func GenerateKeypair() (*Keypair, error) {
	var kp Keypair
	if _, err := rand.Read(kp.private[:]); err != nil {
		return nil, fmt.Errorf("generate private scalar: %w", err)
	}

	public, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	copy(kp.public[:], public)

	return &kp, nil
}

// PublicKey returns the public key bytes
func (k *Keypair) PublicKey() [PublicKeySize]byte {
	return k.public
}

// PublicKeyBase64 returns the public key in its wire encoding
func (k *Keypair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.public[:])
}

// SharedSecret computes the X25519 shared secret with a peer public key.
// The keypair is consumed: the private scalar is zeroized and a second call
// returns ErrKeypairUsed.
func (k *Keypair) SharedSecret(peerPublic [PublicKeySize]byte) ([]byte, error) {
	if k.used {
		return nil, ErrKeypairUsed
	}
	k.used = true

	secret, err := curve25519.X25519(k.private[:], peerPublic[:])
	for i := range k.private {
		k.private[i] = 0
	}
	if err != nil {
		return nil, fmt.Errorf("compute shared secret: %w", err)
	}

	return secret, nil
}

// SharedSecretBase64 computes the shared secret from a base64-encoded peer
// public key. Invalid encoding or length fails before any curve operation
// and does not consume the keypair.
func (k *Keypair) SharedSecretBase64(peerPublicBase64 string) ([]byte, error) {
	peerBytes, err := base64.StdEncoding.DecodeString(peerPublicBase64)
	if err != nil {
		return nil, fmt.Errorf("decode peer public key: %w", err)
	}

	if len(peerBytes) != PublicKeySize {
		return nil, fmt.Errorf("invalid peer public key size: %d (expected %d)", len(peerBytes), PublicKeySize)
	}

	var peerPublic [PublicKeySize]byte
	copy(peerPublic[:], peerBytes)

	return k.SharedSecret(peerPublic)
}
