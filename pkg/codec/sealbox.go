package codec

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/box"

	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// sealBox encrypts plain for the holder of the secret counterpart of
// recipientPub using an anonymous sealed box.
func sealBox(plain, recipientPub []byte) ([]byte, error) {
	if len(recipientPub) != crypto.KeySize {
		return nil, errors.New(errors.ErrCodeInvalidPublicKey, "public key must be 32 bytes")
	}
	var pub [crypto.KeySize]byte
	copy(pub[:], recipientPub)
	out, err := box.SealAnonymous(nil, plain, &pub, rand.Reader)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecEncrypt, err, "sealing private graph")
	}
	return out, nil
}

// openSealBox decrypts a sealed box with the given key pair.
func openSealBox(sealed []byte, kp crypto.GraphKeyPair) ([]byte, error) {
	if len(kp.Public) != crypto.KeySize {
		return nil, errors.New(errors.ErrCodeInvalidPublicKey, "public key must be 32 bytes")
	}
	if len(kp.Secret) != crypto.KeySize {
		return nil, errors.New(errors.ErrCodeInvalidSecretKey, "secret key must be 32 bytes")
	}
	var pub, sec [crypto.KeySize]byte
	copy(pub[:], kp.Public)
	copy(sec[:], kp.Secret)
	out, ok := box.OpenAnonymous(nil, sealed, &pub, &sec)
	if !ok {
		return nil, errors.New(errors.ErrCodeCodecDecrypt, "opening sealed private graph")
	}
	return out, nil
}
