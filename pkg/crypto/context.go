package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the symmetric key size in bytes (AES-256)
	KeySize = 32
	// NonceSize is the AES-GCM nonce size in bytes
	NonceSize = 12

	pbkdf2Iterations = 100_000
)

// keyDerivationSalt is fixed and application specific; uniqueness across
// pairings comes from binding both device ids into the derivation input.
var keyDerivationSalt = []byte("echotype_v1")

// ErrIntegrity indicates a checksum mismatch on a received message
var ErrIntegrity = errors.New("checksum verification failed")

// ErrDecrypt indicates authenticated decryption failed
var ErrDecrypt = errors.New("decryption failed")

// Context holds the symmetric key for one paired session. It is created
// once pairing completes, owned by the session, and dropped on disconnect.
type Context struct {
	key [KeySize]byte
}

// NewContext creates a context from a raw 256-bit key
func NewContext(key [KeySize]byte) *Context {
	return &Context{key: key}
}

// NewContextFromSecret derives a context from a shared secret and both
// device identifiers. Binding the ids prevents key reuse across differently
// paired links even if the raw secret collided.
func NewContextFromSecret(sharedSecret []byte, peerID, localID string) *Context {
	return &Context{key: DeriveKey(hex.EncodeToString(sharedSecret), peerID, localID)}
}

// NewContextFromPIN derives a context from a pairing PIN and device ids
func NewContextFromPIN(pin, peerID, localID string) *Context {
	return &Context{key: DeriveKey(pin, peerID, localID)}
}

// DeriveKey stretches secret material plus both device identifiers into a
// 256-bit key using PBKDF2-HMAC-SHA256 with a fixed application salt.
func DeriveKey(secret, peerID, localID string) [KeySize]byte {
	password := secret + peerID + localID

	var key [KeySize]byte
	copy(key[:], pbkdf2.Key([]byte(password), keyDerivationSalt, pbkdf2Iterations, KeySize, sha256.New))
	return key
}

// Key returns the raw key bytes
func (c *Context) Key() [KeySize]byte {
	return c.key
}

// Encrypt encrypts plaintext with AES-256-GCM under a fresh random nonce
// and returns base64(nonce || ciphertext || tag).
func (c *Context) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It returns ErrDecrypt when decoding fails or
// the authentication tag does not verify.
func (c *Context) Decrypt(token string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: bad base64", ErrDecrypt)
	}

	if len(combined) < NonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, combined[:NonceSize], combined[NonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: tag mismatch", ErrDecrypt)
	}

	return string(plaintext), nil
}

// Checksum computes the keyed envelope checksum: SHA-256 over the
// stringified fields plus the session key, truncated to 8 hex characters.
func (c *Context) Checksum(version int, msgType, payload string, timestamp int64) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(version)))
	h.Write([]byte(msgType))
	h.Write([]byte(payload))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write(c.key[:])

	return hex.EncodeToString(h.Sum(nil)[:4])
}

// VerifyChecksum recomputes and compares in constant time
func (c *Context) VerifyChecksum(version int, msgType, payload string, timestamp int64, expected string) bool {
	calculated := c.Checksum(version, msgType, payload, timestamp)
	return hmac.Equal([]byte(calculated), []byte(expected))
}

// GenerateDeviceID returns a random local device identifier
func GenerateDeviceID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	return "desktop-" + hex.EncodeToString(b[:]), nil
}
