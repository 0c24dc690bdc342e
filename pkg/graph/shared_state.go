package graph

import (
	"bytes"
	"sort"

	"github.com/dsnplabs/graphsdk/pkg/codec"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
	"github.com/dsnplabs/graphsdk/pkg/transactional"
)

// keysWithHash pairs a user's imported keys with the key page hash they
// were read under.
type keysWithHash struct {
	keys []dsnp.PublicKey
	hash PageHash
}

// pridWithKeyID records one imported PRID and the key id its page named.
type pridWithKeyID struct {
	prid  dsnp.PRID
	keyID uint64
}

// SharedStateManager holds the cross-user state of a graph state: every
// user's imported published keys, pending new keys, and imported PRIDs.
// It is shared between all user graphs and is not safe for concurrent use;
// State serializes access.
type SharedStateManager struct {
	// userKeys stores imported keys sorted by on-chain index.
	userKeys *transactional.Map[dsnp.UserID, keysWithHash]
	// newKeys tracks at most one pending published key per user.
	newKeys *transactional.Map[dsnp.UserID, dsnp.PublicKey]
	// userPRIDs stores PRIDs imported from private friendship pages.
	userPRIDs *transactional.Map[dsnp.UserID, []pridWithKeyID]
}

// NewSharedStateManager creates an empty shared state.
func NewSharedStateManager() *SharedStateManager {
	return &SharedStateManager{
		userKeys:  transactional.NewMap[dsnp.UserID, keysWithHash](),
		newKeys:   transactional.NewMap[dsnp.UserID, dsnp.PublicKey](),
		userPRIDs: transactional.NewMap[dsnp.UserID, []pridWithKeyID](),
	}
}

// ImportDsnpKeys replaces a user's imported keys with freshly retrieved
// chain data, dropping any pending new key.
func (s *SharedStateManager) ImportDsnpKeys(keys *DsnpKeys) error {
	s.userKeys.Delete(keys.UserID)
	s.newKeys.Delete(keys.UserID)

	parsed, err := deserializeKeyData(keys.Keys)
	if err != nil {
		return err
	}

	s.userKeys.Set(keys.UserID, keysWithHash{keys: parsed, hash: keys.KeysHash})
	return nil
}

// deserializeKeyData parses serialized published keys in ascending index
// order, assigning each key its itemized index as key id.
func deserializeKeyData(keys []KeyData) ([]dsnp.PublicKey, error) {
	sorted := make([]KeyData, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	parsed := make([]dsnp.PublicKey, 0, len(sorted))
	for _, kd := range sorted {
		key, err := codec.ReadPublicKey(kd.Content)
		if err != nil {
			return nil, err
		}
		if len(key.Key) != crypto.KeySize {
			return nil, errors.New(errors.ErrCodeInvalidPublicKey,
				"published key at index %d is not a valid X25519 key", kd.Index)
		}
		parsed = append(parsed, key.WithKeyID(uint64(kd.Index)))
	}
	return parsed, nil
}

// AddNewKey stages a new published key for a user. Only one pending key is
// allowed at a time; staging a second replaces the first. Re-adding an
// already published key is an error.
func (s *SharedStateManager) AddNewKey(userID dsnp.UserID, publicKey []byte) error {
	if s.GetKeyByPublicKey(userID, publicKey) != nil {
		return errors.New(errors.ErrCodeKeyAlreadyExists,
			"public key already published for user %d", userID)
	}
	if len(publicKey) != crypto.KeySize {
		return errors.New(errors.ErrCodeInvalidPublicKey, "new public key is not a valid X25519 key")
	}

	newKey := dsnp.PublicKey{Key: publicKey}.WithKeyID(s.nextKeyID(userID))
	// confirm it serializes before staging
	if _, err := codec.WritePublicKey(newKey); err != nil {
		return err
	}
	s.newKeys.Set(userID, newKey)
	return nil
}

// ExportNewKeyUpdates renders every pending new key as an AddKey update,
// guarded by the hash of the key page it extends.
func (s *SharedStateManager) ExportNewKeyUpdates() ([]Update, error) {
	ids := make([]dsnp.UserID, 0, s.newKeys.Len())
	for userID := range s.newKeys.Inner() {
		ids = append(ids, userID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	updates := make([]Update, 0, len(ids))
	for _, userID := range ids {
		update, err := s.newKeyUpdate(userID)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	return updates, nil
}

// ExportNewKeyUpdatesForUser is the single-user form of ExportNewKeyUpdates.
func (s *SharedStateManager) ExportNewKeyUpdatesForUser(userID dsnp.UserID) ([]Update, error) {
	if _, ok := s.newKeys.Get(userID); !ok {
		return nil, nil
	}
	update, err := s.newKeyUpdate(userID)
	if err != nil {
		return nil, err
	}
	return []Update{update}, nil
}

func (s *SharedStateManager) newKeyUpdate(userID dsnp.UserID) (Update, error) {
	key, _ := s.newKeys.Get(userID)
	var prevHash PageHash
	if existing, ok := s.userKeys.Get(userID); ok {
		prevHash = existing.hash
	}
	payload, err := codec.WritePublicKey(key)
	if err != nil {
		return nil, err
	}
	return AddKeyUpdate{
		OwnerUserID: userID,
		PrevHash:    prevHash,
		Payload:     payload,
	}, nil
}

// GetImportedKeys returns a user's imported keys in index order.
func (s *SharedStateManager) GetImportedKeys(userID dsnp.UserID) []dsnp.PublicKey {
	if entry, ok := s.userKeys.Get(userID); ok {
		return entry.keys
	}
	return nil
}

// GetKeyByID returns the first imported key with the given id.
func (s *SharedStateManager) GetKeyByID(userID dsnp.UserID, keyID uint64) *dsnp.PublicKey {
	for _, k := range s.GetImportedKeys(userID) {
		if k.KeyID != nil && *k.KeyID == keyID {
			key := k
			return &key
		}
	}
	return nil
}

// GetKeyByPublicKey returns the first imported key with the given raw
// public key bytes.
func (s *SharedStateManager) GetKeyByPublicKey(userID dsnp.UserID, publicKey []byte) *dsnp.PublicKey {
	for _, k := range s.GetImportedKeys(userID) {
		if bytes.Equal(k.Key, publicKey) {
			key := k
			return &key
		}
	}
	return nil
}

// GetActiveKey returns the key used for new encryptions: the first key
// published under the highest imported index.
func (s *SharedStateManager) GetActiveKey(userID dsnp.UserID) *dsnp.PublicKey {
	keys := s.GetImportedKeys(userID)
	if len(keys) == 0 {
		return nil
	}
	last := keys[len(keys)-1]
	if last.KeyID != nil {
		return s.GetKeyByID(userID, *last.KeyID)
	}
	return &last
}

// FindUsersWithoutKeys filters the given ids down to those with no
// imported keys.
func (s *SharedStateManager) FindUsersWithoutKeys(userIDs []dsnp.UserID) []dsnp.UserID {
	missing := make([]dsnp.UserID, 0)
	for _, id := range userIDs {
		entry, ok := s.userKeys.Get(id)
		if !ok || len(entry.keys) == 0 {
			missing = append(missing, id)
		}
	}
	return missing
}

// GetPublicKeys returns a copy of a user's imported keys.
func (s *SharedStateManager) GetPublicKeys(userID dsnp.UserID) []dsnp.PublicKey {
	keys := s.GetImportedKeys(userID)
	out := make([]dsnp.PublicKey, len(keys))
	copy(out, keys)
	return out
}

// ImportPRIDs replaces a user's imported PRIDs with the identifiers read
// from the given private pages.
func (s *SharedStateManager) ImportPRIDs(userID dsnp.UserID, pages []PageData) error {
	prids := make([]pridWithKeyID, 0)
	for i := range pages {
		chunk, err := codec.ReadPrivateGraphChunk(pages[i].Content)
		if err != nil {
			return err
		}
		for _, p := range chunk.PRIDs {
			prids = append(prids, pridWithKeyID{prid: p, keyID: chunk.KeyID})
		}
	}
	s.userPRIDs.Set(userID, prids)
	return nil
}

// ContainsPRID reports whether the given PRID was imported for the user.
func (s *SharedStateManager) ContainsPRID(userID dsnp.UserID, prid dsnp.PRID) bool {
	prids, _ := s.userPRIDs.Get(userID)
	for _, p := range prids {
		if p.prid == prid {
			return true
		}
	}
	return false
}

// CalculatePRID derives the PRID for the relationship from one user to
// another, using the sender's secret key and the recipient's active
// published key.
func (s *SharedStateManager) CalculatePRID(from, to dsnp.UserID, fromSecret []byte) (dsnp.PRID, error) {
	toKey := s.GetActiveKey(to)
	if toKey == nil {
		return dsnp.PRID{}, errors.New(errors.ErrCodeNoPublicKey,
			"no published key found for user %d", to)
	}
	return crypto.ComputePRID(from, to, fromSecret, toKey.Key)
}

// GetPRIDAssociatedPublicKeys returns the public keys referenced by a
// user's imported PRID pages.
func (s *SharedStateManager) GetPRIDAssociatedPublicKeys(userID dsnp.UserID) ([]dsnp.PublicKey, error) {
	prids, ok := s.userPRIDs.Get(userID)
	if !ok {
		return nil, errors.New(errors.ErrCodeNoImportedPRIDs,
			"no PRIDs imported for user %d", userID)
	}

	seen := make(map[uint64]struct{})
	keys := make([]dsnp.PublicKey, 0)
	for _, p := range prids {
		if _, done := seen[p.keyID]; done {
			continue
		}
		seen[p.keyID] = struct{}{}
		key := s.GetKeyByID(userID, p.keyID)
		if key == nil {
			return nil, errors.New(errors.ErrCodeImportedKeyNotFound,
				"key %d referenced by imported PRIDs of user %d not found", p.keyID, userID)
		}
		keys = append(keys, *key)
	}
	return keys, nil
}

// nextKeyID returns one past the highest imported key id.
func (s *SharedStateManager) nextKeyID(userID dsnp.UserID) uint64 {
	var max uint64
	for _, k := range s.GetImportedKeys(userID) {
		if k.KeyID != nil && *k.KeyID > max {
			max = *k.KeyID
		}
	}
	return max + 1
}

// Commit makes all staged changes permanent.
func (s *SharedStateManager) Commit() {
	s.userKeys.Commit()
	s.newKeys.Commit()
	s.userPRIDs.Commit()
}

// Rollback restores the state at the last commit.
func (s *SharedStateManager) Rollback() {
	s.userKeys.Rollback()
	s.newKeys.Rollback()
	s.userPRIDs.Rollback()
}
