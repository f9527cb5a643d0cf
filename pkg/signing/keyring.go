// Package signing provides the Ed25519 keyring and HMAC signing helpers
// used by the Observer log, evidence-bundle sealing, and webhook payload
// signatures. Adapted from
// the teacher's pkg/governance/keyring.go, generalized from "tenant" to
// "agent" derivation.
package signing

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyProvider abstracts the signing backend so it can be swapped for an
// HSM or cloud KMS without touching callers.
type KeyProvider interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}

// MemoryKeyProvider is an in-memory Ed25519 signer suitable for
// development and tests.
type MemoryKeyProvider struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewMemoryKeyProvider generates a fresh random Ed25519 keypair.
func NewMemoryKeyProvider() (*MemoryKeyProvider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &MemoryKeyProvider{pub: pub, priv: priv}, nil
}

// NewMemoryKeyProviderFromSeed builds a deterministic provider from a
// 32-byte seed, used by DeriveForAgent.
func NewMemoryKeyProviderFromSeed(seed []byte) *MemoryKeyProvider {
	priv := ed25519.NewKeyFromSeed(seed)
	return &MemoryKeyProvider{pub: priv.Public().(ed25519.PublicKey), priv: priv}
}

func (m *MemoryKeyProvider) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(m.priv, msg), nil
}

func (m *MemoryKeyProvider) PublicKey() ed25519.PublicKey {
	return m.pub
}

// Keyring manages signing keys via a pluggable KeyProvider and derives
// per-agent HMAC signing secrets from a single master seed.
type Keyring struct {
	provider   KeyProvider
	masterSeed []byte // only set for providers we can derive from
}

// NewKeyring wraps a provider in a Keyring. A nil provider falls back to
// an in-memory one — development convenience, never used in production
// wiring (callers must supply a KMS-backed provider there).
func NewKeyring(p KeyProvider) *Keyring {
	if p == nil {
		p, _ = NewMemoryKeyProvider()
	}
	return &Keyring{provider: p}
}

// NewKeyringFromSeed creates a Keyring whose Ed25519 key and HMAC
// derivation both trace back to the given 32-byte master seed.
func NewKeyringFromSeed(seed []byte) *Keyring {
	return &Keyring{provider: NewMemoryKeyProviderFromSeed(seed), masterSeed: seed}
}

// Sign signs arbitrary bytes with the Ed25519 key.
func (k *Keyring) Sign(msg []byte) ([]byte, error) {
	return k.provider.Sign(msg)
}

// PublicKey returns the Ed25519 public key.
func (k *Keyring) PublicKey() ed25519.PublicKey {
	return k.provider.PublicKey()
}

// DeriveForAgent derives an agent-specific HMAC signing secret using
// HKDF-SHA256 over the keyring's master seed, so every agent's observer
// events are signed with a distinct, deterministic key without needing a
// per-agent row in a key store.
func (k *Keyring) DeriveForAgent(agentID string) ([]byte, error) {
	if agentID == "" {
		return nil, fmt.Errorf("signing: agentID must not be empty")
	}
	if len(k.masterSeed) == 0 {
		return nil, fmt.Errorf("signing: keyring has no master seed to derive from")
	}
	reader := hkdf.New(sha256.New, k.masterSeed, []byte("agentgov-observer-hmac"), []byte(agentID))
	secret := make([]byte, 32)
	if _, err := io.ReadFull(reader, secret); err != nil {
		return nil, fmt.Errorf("signing: HKDF derivation failed: %w", err)
	}
	return secret, nil
}

// HMACSignHex computes HMAC-SHA256(key, data) and hex-encodes it, the
// signature format used by the Observer log (spec §4.4a / §6).
func HMACSignHex(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACVerify recomputes the signature and compares in constant time.
func HMACVerify(key, data []byte, signatureHex string) bool {
	expected, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hmac.Equal(mac.Sum(nil), expected)
}
