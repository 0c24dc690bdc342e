// Package dsnp defines the wire-level types of the DSNP social graph: user
// ids, graph edges, published public keys, pseudonymous relationship
// identifiers and the chunk shapes stored on chain.
package dsnp

import (
	"encoding/hex"

	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// UserID is a DSNP user identifier.
type UserID uint64

// PRIDLen is the byte length of a pseudonymous relationship identifier.
const PRIDLen = 8

// PRID is a pseudonymous relationship identifier. It lets two private
// friends prove the relationship to each other without revealing it to
// anyone else.
type PRID [PRIDLen]byte

// NewPRID builds a PRID from raw bytes, rejecting any length other than
// PRIDLen.
func NewPRID(data []byte) (PRID, error) {
	var p PRID
	if len(data) != PRIDLen {
		return p, errors.New(errors.ErrCodeInvalidInput,
			"prid must be %d bytes, got %d", PRIDLen, len(data))
	}
	copy(p[:], data)
	return p, nil
}

// Bytes returns the identifier as a byte slice.
func (p PRID) Bytes() []byte {
	return p[:]
}

// String renders the identifier as lowercase hex.
func (p PRID) String() string {
	return hex.EncodeToString(p[:])
}

// InnerGraph is the decoded edge list of one graph page.
type InnerGraph []GraphEdge

// GraphEdge is a single connection. Edge identity is the user id alone;
// Since carries when the connection was established and does not
// participate in equality.
type GraphEdge struct {
	// UserID identifies the other side of the connection.
	UserID UserID
	// Since is the unix epoch in seconds when the connection was
	// established, rounded down to the nearest 1000.
	Since uint64
}

// PublicKey is a published X25519 public key together with its
// user-assigned identifier. The identifier is the itemized index of the key
// in on-chain storage and is not part of the serialized form.
type PublicKey struct {
	// Key is the raw public key bytes.
	Key []byte
	// KeyID is the user-assigned key identifier, when known.
	KeyID *uint64
}

// WithKeyID returns a copy of the key carrying the given identifier.
func (k PublicKey) WithKeyID(id uint64) PublicKey {
	k.KeyID = &id
	return k
}

// PublicGraphChunk is the on-chain shape of a public graph page: the
// compressed serialized edge list.
type PublicGraphChunk struct {
	CompressedPublicGraph []byte
}

// PrivateGraphChunk is the on-chain shape of a private graph page.
type PrivateGraphChunk struct {
	// KeyID identifies the published key whose secret counterpart can
	// open the payload.
	KeyID uint64
	// PRIDs lists one identifier per connection in the page, in edge
	// order.
	PRIDs []PRID
	// EncryptedCompressedPrivateGraph is a sealed box over the
	// compressed serialized edge list.
	EncryptedCompressedPrivateGraph []byte
}

// DecryptedPrivateGraph is a private chunk after the payload has been
// opened and decoded.
type DecryptedPrivateGraph struct {
	KeyID      uint64
	PRIDs      []PRID
	InnerGraph InnerGraph
}
