// Package graph implements the social graph engine: page layout, update
// calculation, key management and the transactional state container that
// ties them together.
package graph

import (
	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// PageHash is the content hash of an on-chain page, used as the
// compare-and-swap token when persisting updates.
type PageHash = uint32

// PageData is a raw page of graph or key data retrieved from chain.
type PageData struct {
	// PageID is the page's position within the user's graph.
	PageID config.PageID
	// Content is the raw serialized page.
	Content []byte
	// ContentHash is the on-chain hash of Content.
	ContentHash PageHash
}

// Validate rejects pages carrying content without a content hash.
func (p *PageData) Validate() error {
	if len(p.Content) > 0 && p.ContentHash == 0 {
		return errors.New(errors.ErrCodeInvalidInput,
			"imported page %d has content but no content hash", p.PageID)
	}
	return nil
}

// KeyData is one published graph key as stored in the user's itemized key
// page.
type KeyData struct {
	// Index is the key's position in on-chain storage.
	Index uint16
	// Content is the serialized published key.
	Content []byte
}

// Validate rejects empty key content.
func (k *KeyData) Validate() error {
	if len(k.Content) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "key data content is empty")
	}
	return nil
}

// DsnpKeys carries a user's published graph keys and the hash of the page
// they were read from. It is the input to private graph verification and
// PRID calculation.
type DsnpKeys struct {
	// UserID is the owner of the keys.
	UserID dsnp.UserID
	// KeysHash is the content hash of the itemized key page.
	KeysHash PageHash
	// Keys are the published keys, ordered by on-chain index.
	Keys []KeyData
}

// Validate checks owner id, per-key content, hash presence and index
// uniqueness.
func (d *DsnpKeys) Validate() error {
	if d.UserID == 0 {
		return errors.New(errors.ErrCodeInvalidUserID, "user id must be non-zero")
	}
	if len(d.Keys) > 0 && d.KeysHash == 0 {
		return errors.New(errors.ErrCodeInvalidInput,
			"imported keys have content but no keys hash")
	}
	seen := make(map[uint16]struct{}, len(d.Keys))
	for i := range d.Keys {
		if err := d.Keys[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.Keys[i].Index]; dup {
			return errors.New(errors.ErrCodeInvalidInput,
				"duplicate key index %d", d.Keys[i].Index)
		}
		seen[d.Keys[i].Index] = struct{}{}
	}
	return nil
}

// ImportBundle is everything retrieved from chain for one user and schema:
// the graph pages, the user's published keys and, for graph owners, the
// matching secret key pairs.
type ImportBundle struct {
	// UserID is the graph owner.
	UserID dsnp.UserID
	// SchemaID identifies which graph the pages belong to.
	SchemaID config.SchemaID
	// KeyPairs are the owner's key pairs, used for decryption and PRID
	// generation. Empty for non-owner imports.
	KeyPairs []crypto.GraphKeyPair
	// DsnpKeys are the published keys for UserID, or nil when the bundle
	// carries no key page.
	DsnpKeys *DsnpKeys
	// Pages are the graph pages retrieved from chain.
	Pages []PageData
}

// Validate checks ids, keys and page id uniqueness.
func (b *ImportBundle) Validate() error {
	if b.UserID == 0 {
		return errors.New(errors.ErrCodeInvalidUserID, "user id must be non-zero")
	}
	if b.SchemaID == 0 {
		return errors.New(errors.ErrCodeInvalidSchemaID, "schema id must be non-zero")
	}
	for i := range b.KeyPairs {
		if len(b.KeyPairs[i].Public) == 0 {
			return errors.New(errors.ErrCodeInvalidPublicKey, "public key is empty")
		}
		if len(b.KeyPairs[i].Secret) == 0 {
			return errors.New(errors.ErrCodeInvalidSecretKey, "secret key is empty")
		}
	}
	if b.DsnpKeys != nil {
		if err := b.DsnpKeys.Validate(); err != nil {
			return err
		}
	}
	seen := make(map[config.PageID]struct{}, len(b.Pages))
	for i := range b.Pages {
		if err := b.Pages[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[b.Pages[i].PageID]; dup {
			return errors.New(errors.ErrCodeInvalidPageID,
				"duplicate page id %d", b.Pages[i].PageID)
		}
		seen[b.Pages[i].PageID] = struct{}{}
	}
	return nil
}

// Connection identifies one edge of a user's graph: the other user and the
// schema the edge lives in.
type Connection struct {
	// UserID is the other side of the connection.
	UserID dsnp.UserID
	// SchemaID identifies which graph holds the connection.
	SchemaID config.SchemaID
}

// Validate checks both ids are non-zero.
func (c *Connection) Validate() error {
	if c.UserID == 0 {
		return errors.New(errors.ErrCodeInvalidUserID, "user id must be non-zero")
	}
	if c.SchemaID == 0 {
		return errors.New(errors.ErrCodeInvalidSchemaID, "schema id must be non-zero")
	}
	return nil
}
