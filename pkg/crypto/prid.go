package crypto

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"crypto/sha256"

	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// pridContext is the HKDF info string fixed by the DSNP spec.
var pridContext = []byte("PRIdCtx0")

// ComputePRID derives the pseudonymous relationship identifier for the
// relationship from a to b, using a's secret key and b's public key. The
// construction is symmetric: b computes the identical value for the same
// (a, b) pair from b's secret key and a's public key.
//
// The identifier is the detached XSalsa20-Poly1305 ciphertext of a's id,
// keyed by HKDF-SHA256 over the X25519 shared secret with b's id as salt,
// using b's id as the nonce prefix.
func ComputePRID(a, b dsnp.UserID, aSecret, bPublic []byte) (dsnp.PRID, error) {
	var prid dsnp.PRID
	if len(aSecret) != KeySize {
		return prid, errors.New(errors.ErrCodeInvalidSecretKey, "secret key must be 32 bytes")
	}
	if len(bPublic) != KeySize {
		return prid, errors.New(errors.ErrCodeInvalidPublicKey, "public key must be 32 bytes")
	}

	var idB [8]byte
	binary.LittleEndian.PutUint64(idB[:], uint64(b))

	shared, err := curve25519.X25519(aSecret, bPublic)
	if err != nil {
		return prid, errors.Wrap(errors.ErrCodeInternal, err, "computing shared secret")
	}

	var derived [32]byte
	kdf := hkdf.New(sha256.New, shared, idB[:], pridContext)
	if _, err := io.ReadFull(kdf, derived[:]); err != nil {
		return prid, errors.Wrap(errors.ErrCodeInternal, err, "deriving relationship key")
	}

	var nonce [24]byte
	copy(nonce[:8], idB[:])

	var idA [8]byte
	binary.LittleEndian.PutUint64(idA[:], uint64(a))

	// Seal output is the 16-byte tag followed by the ciphertext; the
	// identifier is the detached ciphertext alone.
	sealed := secretbox.Seal(nil, idA[:], &nonce, &derived)
	copy(prid[:], sealed[secretbox.Overhead:])
	return prid, nil
}
