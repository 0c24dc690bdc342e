package graph

import (
	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
)

// Update is one change that must be applied to chain to persist exported
// state.
type Update interface {
	// Owner is the graph owner the update applies to.
	Owner() dsnp.UserID
}

// PersistPageUpdate upserts a graph page.
type PersistPageUpdate struct {
	// OwnerUserID is the graph owner.
	OwnerUserID dsnp.UserID
	// SchemaID identifies the graph being persisted.
	SchemaID config.SchemaID
	// PageID is the page being written.
	PageID config.PageID
	// PrevHash guards against overwriting a page that changed on chain
	// since it was imported.
	PrevHash PageHash
	// Payload is the serialized page.
	Payload []byte
}

// Owner implements Update.
func (u PersistPageUpdate) Owner() dsnp.UserID { return u.OwnerUserID }

// DeletePageUpdate removes a graph page.
type DeletePageUpdate struct {
	// OwnerUserID is the graph owner.
	OwnerUserID dsnp.UserID
	// SchemaID identifies the graph the page belongs to.
	SchemaID config.SchemaID
	// PageID is the page being removed.
	PageID config.PageID
	// PrevHash guards against deleting a page that changed on chain.
	PrevHash PageHash
}

// Owner implements Update.
func (u DeletePageUpdate) Owner() dsnp.UserID { return u.OwnerUserID }

// AddKeyUpdate appends a new published key to the owner's key page.
type AddKeyUpdate struct {
	// OwnerUserID is the graph owner.
	OwnerUserID dsnp.UserID
	// PrevHash is the hash of the key page the new key extends.
	PrevHash PageHash
	// Payload is the serialized published key.
	Payload []byte
}

// Owner implements Update.
func (u AddKeyUpdate) Owner() dsnp.UserID { return u.OwnerUserID }

// updateFromPageData converts an exported page to the matching update; an
// empty page becomes a delete.
func updateFromPageData(owner dsnp.UserID, schemaID config.SchemaID, page PageData) Update {
	if len(page.Content) == 0 {
		return DeletePageUpdate{
			OwnerUserID: owner,
			SchemaID:    schemaID,
			PageID:      page.PageID,
			PrevHash:    page.ContentHash,
		}
	}
	return PersistPageUpdate{
		OwnerUserID: owner,
		SchemaID:    schemaID,
		PageID:      page.PageID,
		PrevHash:    page.ContentHash,
		Payload:     page.Content,
	}
}
