package graph

import (
	"bytes"

	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
	"github.com/dsnplabs/graphsdk/pkg/transactional"
)

// ResolvedKeyPair is an imported key pair matched against a published key,
// carrying the published key's id.
type ResolvedKeyPair struct {
	// KeyID is the published key's user-assigned identifier.
	KeyID uint64
	// KeyPair is the matching secret key pair.
	KeyPair crypto.GraphKeyPair
}

// UserKeyManager resolves one user's imported key pairs against the shared
// published key state and verifies private friendships.
type UserKeyManager struct {
	shared *SharedStateManager
	userID dsnp.UserID
	keys   *transactional.Slice[crypto.GraphKeyPair]
}

// NewUserKeyManager creates a key manager for a user backed by the shared
// state.
func NewUserKeyManager(userID dsnp.UserID, shared *SharedStateManager) *UserKeyManager {
	return &UserKeyManager{
		shared: shared,
		userID: userID,
		keys:   transactional.NewSlice[crypto.GraphKeyPair](),
	}
}

// ImportKeyPairs replaces the user's imported key pairs.
func (m *UserKeyManager) ImportKeyPairs(pairs []crypto.GraphKeyPair) error {
	for i := range pairs {
		if err := pairs[i].Validate(); err != nil {
			return err
		}
	}
	m.keys.Clear()
	m.keys.Extend(pairs)
	return nil
}

// GetResolvedKey returns the imported key pair matching the published key
// with the given id.
func (m *UserKeyManager) GetResolvedKey(keyID uint64) (ResolvedKeyPair, bool) {
	published := m.shared.GetKeyByID(m.userID, keyID)
	if published == nil {
		return ResolvedKeyPair{}, false
	}
	for _, kp := range m.keys.Inner() {
		if bytes.Equal(kp.Public, published.Key) {
			return ResolvedKeyPair{KeyID: keyID, KeyPair: kp}, true
		}
	}
	return ResolvedKeyPair{}, false
}

// GetAllResolvedKeys returns every imported key pair that matches a
// published key, in published index order.
func (m *UserKeyManager) GetAllResolvedKeys() []ResolvedKeyPair {
	resolved := make([]ResolvedKeyPair, 0)
	for _, published := range m.shared.GetImportedKeys(m.userID) {
		if published.KeyID == nil {
			continue
		}
		if rk, ok := m.GetResolvedKey(*published.KeyID); ok {
			resolved = append(resolved, rk)
		}
	}
	return resolved
}

// GetResolvedActiveKey resolves the active published key of the given user
// against this manager's imported pairs.
func (m *UserKeyManager) GetResolvedActiveKey(userID dsnp.UserID) (ResolvedKeyPair, bool) {
	active := m.shared.GetActiveKey(userID)
	if active == nil || active.KeyID == nil {
		return ResolvedKeyPair{}, false
	}
	return m.GetResolvedKey(*active.KeyID)
}

// VerifyConnection reports whether the given user's imported PRIDs contain
// an identifier this user can reproduce, proving the friendship is mutual.
func (m *UserKeyManager) VerifyConnection(from dsnp.UserID) (bool, error) {
	fromKeys, err := m.shared.GetPRIDAssociatedPublicKeys(from)
	if err != nil {
		return false, err
	}
	resolved := m.GetAllResolvedKeys()

	for _, public := range fromKeys {
		for i := len(resolved) - 1; i >= 0; i-- {
			prid, err := crypto.ComputePRID(from, m.userID, resolved[i].KeyPair.Secret, public.Key)
			if err != nil {
				return false, errors.Wrap(errors.ErrCodeInternal, err, "computing verification prid")
			}
			if m.shared.ContainsPRID(from, prid) {
				return true, nil
			}
		}
	}
	return false, nil
}

// CalculatePRID derives the PRID from one user to another with the
// sender's secret key, via the shared published key state.
func (m *UserKeyManager) CalculatePRID(from, to dsnp.UserID, fromSecret []byte) (dsnp.PRID, error) {
	return m.shared.CalculatePRID(from, to, fromSecret)
}

// Commit makes imported key pairs permanent.
func (m *UserKeyManager) Commit() {
	m.keys.Commit()
}

// Rollback restores the key pairs at the last commit.
func (m *UserKeyManager) Rollback() {
	m.keys.Rollback()
}
