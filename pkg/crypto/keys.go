// Package crypto implements the key handling primitives of the graph SDK:
// X25519 key pair generation and the pseudonymous relationship identifier
// construction used to verify private friendships.
package crypto

import (
	"bytes"
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// KeySize is the byte length of X25519 public and secret keys.
const KeySize = 32

// GraphKeyType names a supported key algorithm.
type GraphKeyType uint8

// X25519 is the only key type currently defined.
const X25519 GraphKeyType = 0

// GraphKeyPair is a user's graph encryption key pair.
type GraphKeyPair struct {
	// Type is the key algorithm.
	Type GraphKeyType
	// Public is the raw 32-byte public key.
	Public []byte
	// Secret is the raw 32-byte secret key.
	Secret []byte
}

// GenerateKeyPair creates a fresh X25519 key pair.
func GenerateKeyPair() (GraphKeyPair, error) {
	pub, sec, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return GraphKeyPair{}, errors.Wrap(errors.ErrCodeInternal, err, "generating key pair")
	}
	return GraphKeyPair{Type: X25519, Public: pub[:], Secret: sec[:]}, nil
}

// Validate checks the pair is well formed and that the public key is the
// counterpart of the secret key.
func (kp GraphKeyPair) Validate() error {
	if kp.Type != X25519 {
		return errors.New(errors.ErrCodeUnsupported, "unsupported graph key type")
	}
	if len(kp.Public) != KeySize {
		return errors.New(errors.ErrCodeInvalidPublicKey, "public key must be 32 bytes")
	}
	if len(kp.Secret) != KeySize {
		return errors.New(errors.ErrCodeInvalidSecretKey, "secret key must be 32 bytes")
	}
	derived, err := curve25519.X25519(kp.Secret, curve25519.Basepoint)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSecretKey, err, "deriving public key")
	}
	if !bytes.Equal(derived, kp.Public) {
		return errors.New(errors.ErrCodeKeyPairMismatch, "public key does not match secret key")
	}
	return nil
}

// PublicFromSecret derives the X25519 public key for a secret key.
func PublicFromSecret(secret []byte) ([]byte, error) {
	if len(secret) != KeySize {
		return nil, errors.New(errors.ErrCodeInvalidSecretKey, "secret key must be 32 bytes")
	}
	pub, err := curve25519.X25519(secret, curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSecretKey, err, "deriving public key")
	}
	return pub, nil
}
