package graph

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// State is an environment-scoped container of user graphs. It owns every
// imported user graph plus the shared key and PRID state, and is the
// entry point for imports, actions, and update exports.
//
// All operations on a State are safe for concurrent use. Mutating
// operations are transactional: a failed import or action batch leaves
// the state exactly as it was before the call.
type State struct {
	mu     sync.RWMutex
	env    config.Environment
	users  map[dsnp.UserID]*UserGraph
	added  map[dsnp.UserID]struct{}
	shared *SharedStateManager
	logger *log.Logger
}

// NewState creates an empty graph state for the given environment.
func NewState(env config.Environment) *State {
	return NewStateWithLogger(env, nil)
}

// NewStateWithLogger creates an empty graph state that logs through the
// given logger. A nil logger falls back to the default logger.
func NewStateWithLogger(env config.Environment, logger *log.Logger) *State {
	if logger == nil {
		logger = log.Default()
	}
	return &State{
		env:    env,
		users:  make(map[dsnp.UserID]*UserGraph),
		shared: NewSharedStateManager(),
		logger: logger,
	}
}

// Environment returns the environment this state was created for.
func (s *State) Environment() config.Environment {
	return s.env
}

// ContainsUserGraph reports whether a graph exists for the user.
func (s *State) ContainsUserGraph(userID dsnp.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// Len returns the number of imported user graphs.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// RemoveUserGraph drops the user's graph. Removing an unknown user is a
// no-op. The removal is permanent and survives a later Rollback.
func (s *State) RemoveUserGraph(userID dsnp.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

// ImportUsersData imports raw page and key data retrieved from the chain
// into user graphs. Existing graph data for each imported user is
// overwritten, but pending updates are preserved. On any error the whole
// batch is rolled back; on success it is committed.
func (s *State) ImportUsersData(bundles []ImportBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.importUsersData(bundles); err != nil {
		s.rollback()
		return err
	}
	s.commit()
	return nil
}

// ApplyActions applies connect, disconnect, and key actions to the
// imported user graphs. Unless auto commit is disabled through options,
// a successful batch is committed and a failed one rolled back as a
// whole.
func (s *State) ApplyActions(actions []Action, options *ActionOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.applyActions(actions, options)
	if options == nil || !options.DisableAutoCommit {
		if err != nil {
			s.rollback()
		} else {
			s.commit()
		}
	}
	return err
}

// Commit makes all staged changes in every user graph and the shared
// state permanent.
func (s *State) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit()
}

// Rollback reverts all staged changes in every user graph and the
// shared state.
func (s *State) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollback()
}

// ExportUpdates calculates the page and key updates needed to persist
// every pending change across all imported users.
func (s *State) ExportUpdates() ([]Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	updates, err := s.shared.ExportNewKeyUpdates()
	if err != nil {
		return nil, err
	}
	for _, userID := range s.sortedUserIDs() {
		userUpdates, err := s.users[userID].CalculateUpdates()
		if err != nil {
			return nil, err
		}
		updates = append(updates, userUpdates...)
	}
	return updates, nil
}

// ExportUserGraphUpdates calculates the page and key updates needed to
// persist one user's pending changes.
func (s *State) ExportUserGraphUpdates(userID dsnp.UserID) ([]Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	updates, err := s.shared.ExportNewKeyUpdatesForUser(userID)
	if err != nil {
		return nil, err
	}
	ug, ok := s.users[userID]
	if !ok {
		return nil, errors.New(errors.ErrCodeUserNotImported, "user graph for %d is not imported", userID)
	}
	userUpdates, err := ug.CalculateUpdates()
	if err != nil {
		return nil, err
	}
	return append(updates, userUpdates...), nil
}

// ForceRecalculateGraphs re-exports every page of the user's graphs
// regardless of pending changes, encrypting with the active key.
func (s *State) ForceRecalculateGraphs(userID dsnp.UserID) ([]Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ug, ok := s.users[userID]
	if !ok {
		return nil, errors.New(errors.ErrCodeUserNotImported, "user graph for %d is not imported", userID)
	}
	return ug.ForceCalculateGraphs()
}

// GetConnectionsForUserGraph lists the user's connections for a schema,
// optionally overlaying pending additions and removals.
func (s *State) GetConnectionsForUserGraph(userID dsnp.UserID, schemaID config.SchemaID, includePending bool) ([]dsnp.GraphEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ug, ok := s.users[userID]
	if !ok {
		return nil, errors.New(errors.ErrCodeUserNotImported, "user graph for %d is not imported", userID)
	}
	return ug.ConnectionsOf(schemaID, includePending), nil
}

// GetConnectionsWithoutKeys returns the ids of all private friendship
// connections, across every imported user, that have no imported
// published keys. Their keys must be imported before private friendship
// graphs can be exported.
func (s *State) GetConnectionsWithoutKeys() ([]dsnp.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schemaID, ok := s.env.Config().SchemaForConnectionType(config.FriendshipPrivate)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidSchemaID, "no private friendship schema configured")
	}
	seen := make(map[dsnp.UserID]struct{})
	for _, ug := range s.users {
		for _, edge := range ug.ConnectionsOf(schemaID, true) {
			seen[edge.UserID] = struct{}{}
		}
	}
	ids := make([]dsnp.UserID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return s.shared.FindUsersWithoutKeys(ids), nil
}

// GetOneSidedPrivateFriendshipConnections lists the user's private
// friendships that the other side has not reciprocated.
func (s *State) GetOneSidedPrivateFriendshipConnections(userID dsnp.UserID) ([]dsnp.GraphEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ug, ok := s.users[userID]
	if !ok {
		return nil, errors.New(errors.ErrCodeUserNotImported, "user graph for %d is not imported", userID)
	}
	return ug.OneSidedPrivateFriendships()
}

// GetPublicKeys returns the published keys imported for a user, staged
// new key included.
func (s *State) GetPublicKeys(userID dsnp.UserID) []dsnp.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shared.GetPublicKeys(userID)
}

// DeserializeDsnpKeys decodes a serialized key page into public keys,
// in ascending index order, with each key id set to its index. A nil
// input yields no keys.
func DeserializeDsnpKeys(keys *DsnpKeys) ([]dsnp.PublicKey, error) {
	if keys == nil {
		return nil, nil
	}
	return deserializeKeyData(keys.Keys)
}

// GenerateKeyPair generates a new graph key pair of the given type.
func GenerateKeyPair(keyType crypto.GraphKeyType) (crypto.GraphKeyPair, error) {
	switch keyType {
	case crypto.X25519:
		return crypto.GenerateKeyPair()
	default:
		return crypto.GraphKeyPair{}, errors.New(errors.ErrCodeUnsupported, "unsupported key type %d", keyType)
	}
}

func (s *State) commit() {
	for _, ug := range s.users {
		ug.Commit()
	}
	for id := range s.added {
		delete(s.added, id)
	}
	s.shared.Commit()
}

func (s *State) rollback() {
	for id := range s.added {
		delete(s.users, id)
		delete(s.added, id)
	}
	for _, ug := range s.users {
		ug.Rollback()
	}
	s.shared.Rollback()
}

// getOrCreateUserGraph returns the user's graph, creating an empty one
// if none exists yet. Graphs created inside a failed batch are removed
// again on rollback.
func (s *State) getOrCreateUserGraph(userID dsnp.UserID) (*UserGraph, error) {
	if ug, ok := s.users[userID]; ok {
		return ug, nil
	}
	ug, err := NewUserGraph(userID, s.env.Config(), s.shared)
	if err != nil {
		return nil, err
	}
	s.users[userID] = ug
	if s.added == nil {
		s.added = make(map[dsnp.UserID]struct{})
	}
	s.added[userID] = struct{}{}
	return ug, nil
}

func (s *State) importUsersData(bundles []ImportBundle) error {
	for _, bundle := range bundles {
		if err := bundle.Validate(); err != nil {
			return err
		}
	}
	for _, bundle := range bundles {
		if bundle.DsnpKeys != nil {
			if err := s.shared.ImportDsnpKeys(bundle.DsnpKeys); err != nil {
				return err
			}
		}
		ug, err := s.getOrCreateUserGraph(bundle.UserID)
		if err != nil {
			return err
		}
		if err := ug.KeyManager().ImportKeyPairs(bundle.KeyPairs); err != nil {
			return err
		}
		if len(bundle.Pages) == 0 {
			// keys-only bundle
			continue
		}

		connectionType, ok := s.env.Config().ConnectionTypeForSchema(bundle.SchemaID)
		if !ok {
			return errors.New(errors.ErrCodeInvalidSchemaID, "schema id %d is not configured", bundle.SchemaID)
		}
		g, ok := ug.Graph(bundle.SchemaID)
		if !ok {
			return errors.New(errors.ErrCodeInvalidSchemaID, "schema id %d is not configured", bundle.SchemaID)
		}
		g.Clear()

		switch connectionType.Privacy {
		case config.PrivacyPublic:
			if err := g.ImportPublic(bundle.Pages); err != nil {
				return err
			}
			ug.SyncUpdates(bundle.SchemaID)
		case config.PrivacyPrivate:
			// a graph can only be decrypted when secret keys came along
			if len(bundle.KeyPairs) > 0 {
				if err := g.ImportPrivate(bundle.Pages); err != nil {
					return err
				}
				ug.SyncUpdates(bundle.SchemaID)
			}
			if connectionType == config.FriendshipPrivate {
				if err := s.shared.ImportPRIDs(bundle.UserID, bundle.Pages); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *State) applyActions(actions []Action, options *ActionOptions) error {
	for _, action := range actions {
		if err := action.Validate(); err != nil {
			return err
		}
	}
	var ignoreExisting, ignoreMissing bool
	if options != nil {
		ignoreExisting = options.IgnoreExistingConnections
		ignoreMissing = options.IgnoreMissingConnections
	}
	for _, action := range actions {
		ug, err := s.getOrCreateUserGraph(action.Owner())
		if err != nil {
			return err
		}
		switch a := action.(type) {
		case ConnectAction:
			if ug.HasConnection(a.Connection.SchemaID, a.Connection.UserID, true) {
				if ignoreExisting {
					s.logger.Warn("ignoring redundant connect",
						"owner", a.OwnerUserID,
						"connection", a.Connection.UserID,
					)
					continue
				}
				return errors.New(errors.ErrCodeConnectionExists,
					"connection from %d to %d already exists", a.OwnerUserID, a.Connection.UserID)
			}
			if err := ug.Tracker().RegisterUpdate(AddEvent(a.Connection.UserID, a.Connection.SchemaID), ignoreExisting); err != nil {
				return err
			}
			if a.DsnpKeys != nil {
				if err := s.shared.ImportDsnpKeys(a.DsnpKeys); err != nil {
					return err
				}
			}
		case DisconnectAction:
			if !ug.HasConnection(a.Connection.SchemaID, a.Connection.UserID, true) {
				if ignoreMissing {
					s.logger.Warn("ignoring disconnect of unknown connection",
						"owner", a.OwnerUserID,
						"connection", a.Connection.UserID,
					)
					continue
				}
				return errors.New(errors.ErrCodeConnectionNotFound,
					"connection from %d to %d does not exist", a.OwnerUserID, a.Connection.UserID)
			}
			if err := ug.Tracker().RegisterUpdate(RemoveEvent(a.Connection.UserID, a.Connection.SchemaID), ignoreMissing); err != nil {
				return err
			}
		case AddGraphKeyAction:
			if err := s.shared.AddNewKey(a.OwnerUserID, a.NewPublicKey); err != nil {
				return err
			}
		default:
			return errors.New(errors.ErrCodeUnsupported, "unknown action type %T", action)
		}
	}
	return nil
}

func (s *State) sortedUserIDs() []dsnp.UserID {
	ids := make([]dsnp.UserID, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
