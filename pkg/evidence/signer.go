package evidence

import (
	"encoding/hex"

	"github.com/helmward/agentgov/pkg/signing"
)

// KeyringSigner adapts a pkg/signing.Keyring to BundleSigner, hex-encoding
// the raw Ed25519 signature and public key the way the Observer log
// already hex-encodes its HMAC signatures.
type KeyringSigner struct {
	keyring *signing.Keyring
}

func NewKeyringSigner(keyring *signing.Keyring) *KeyringSigner {
	return &KeyringSigner{keyring: keyring}
}

func (s *KeyringSigner) Sign(data []byte) (string, error) {
	sig, err := s.keyring.Sign(data)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

func (s *KeyringSigner) PublicKey() string {
	return hex.EncodeToString(s.keyring.PublicKey())
}
