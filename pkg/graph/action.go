package graph

import (
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// ActionOptions tune how a batch of actions is applied.
type ActionOptions struct {
	// IgnoreExistingConnections turns connect actions that duplicate an
	// existing connection into no-ops instead of errors.
	IgnoreExistingConnections bool
	// IgnoreMissingConnections turns disconnect actions for absent
	// connections into no-ops instead of errors.
	IgnoreMissingConnections bool
	// DisableAutoCommit leaves the applied batch uncommitted so the
	// caller can stack further batches before committing or rolling
	// back.
	DisableAutoCommit bool
}

// Action is a single requested change to a user's graph.
type Action interface {
	// Owner is the graph owner the action applies to.
	Owner() dsnp.UserID
	// Validate checks the action's inputs.
	Validate() error
}

// ConnectAction adds a connection to the owner's graph.
type ConnectAction struct {
	// OwnerUserID is the graph owner.
	OwnerUserID dsnp.UserID
	// Connection names the user and schema to connect.
	Connection Connection
	// DsnpKeys optionally imports the connection's published keys,
	// needed for private friendship PRID calculation.
	DsnpKeys *DsnpKeys
}

// Owner implements Action.
func (a ConnectAction) Owner() dsnp.UserID { return a.OwnerUserID }

// Validate implements Action.
func (a ConnectAction) Validate() error {
	if a.OwnerUserID == 0 {
		return errors.New(errors.ErrCodeInvalidUserID, "owner user id must be non-zero")
	}
	if err := a.Connection.Validate(); err != nil {
		return err
	}
	if a.DsnpKeys != nil {
		return a.DsnpKeys.Validate()
	}
	return nil
}

// DisconnectAction removes a connection from the owner's graph.
type DisconnectAction struct {
	// OwnerUserID is the graph owner.
	OwnerUserID dsnp.UserID
	// Connection names the user and schema to disconnect.
	Connection Connection
}

// Owner implements Action.
func (a DisconnectAction) Owner() dsnp.UserID { return a.OwnerUserID }

// Validate implements Action.
func (a DisconnectAction) Validate() error {
	if a.OwnerUserID == 0 {
		return errors.New(errors.ErrCodeInvalidUserID, "owner user id must be non-zero")
	}
	return a.Connection.Validate()
}

// AddGraphKeyAction publishes a new graph key for the owner.
type AddGraphKeyAction struct {
	// OwnerUserID is the graph owner.
	OwnerUserID dsnp.UserID
	// NewPublicKey is the raw public key to publish.
	NewPublicKey []byte
}

// Owner implements Action.
func (a AddGraphKeyAction) Owner() dsnp.UserID { return a.OwnerUserID }

// Validate implements Action.
func (a AddGraphKeyAction) Validate() error {
	if a.OwnerUserID == 0 {
		return errors.New(errors.ErrCodeInvalidUserID, "owner user id must be non-zero")
	}
	if len(a.NewPublicKey) == 0 {
		return errors.New(errors.ErrCodeInvalidPublicKey, "new public key is empty")
	}
	return nil
}
