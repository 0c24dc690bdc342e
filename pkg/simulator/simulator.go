// Package simulator exercises graph state the way a chain client would:
// it bootstraps a population of users with published keys and private
// graphs, applies random connection churn, and verifies after every round
// that re-importing the stored pages reproduces the expected social graph.
package simulator

import (
	"math/rand"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
	"github.com/dsnplabs/graphsdk/pkg/graph"
)

// Phase is one step of the chain bootstrap state machine. The phase is
// persisted with the chain so an interrupted run resumes where it left
// off.
type Phase string

const (
	// PhaseInit is the empty starting phase.
	PhaseInit Phase = "init"
	// PhaseUsersCreated means the user population has been chosen.
	PhaseUsersCreated Phase = "users-created"
	// PhaseKeysCreated means every user has one published graph key.
	PhaseKeysCreated Phase = "keys-created"
	// PhaseFollowsCreated means initial private follow graphs exist.
	PhaseFollowsCreated Phase = "follows-created"
	// PhaseFriendshipsCreated means initial private friendship graphs
	// exist.
	PhaseFriendshipsCreated Phase = "friendships-created"
	// PhaseDone means the bootstrap is complete.
	PhaseDone Phase = "done"
)

// Options configure a simulation run.
type Options struct {
	// Users is the population size.
	Users int `json:"users"`
	// Connections caps how many connections a bootstrapped graph gets.
	Connections int `json:"connections"`
	// Seed makes the run reproducible.
	Seed int64 `json:"seed"`
}

// defaults fills zero fields.
func (o Options) defaults() Options {
	if o.Users <= 0 {
		o.Users = 10
	}
	if o.Connections <= 0 {
		o.Connections = 4
	}
	return o
}

// Simulator drives a chain through bootstrap, churn and verification.
type Simulator struct {
	env    config.Environment
	chain  *Chain
	opts   Options
	rng    *rand.Rand
	logger *log.Logger
}

// New creates a simulator over the given chain. A nil logger falls back
// to the default logger.
func New(env config.Environment, chain *Chain, opts Options, logger *log.Logger) *Simulator {
	if logger == nil {
		logger = log.Default()
	}
	opts = opts.defaults()
	return &Simulator{
		env:    env,
		chain:  chain,
		opts:   opts,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		logger: logger,
	}
}

// Chain returns the chain the simulator drives.
func (s *Simulator) Chain() *Chain { return s.chain }

// Bootstrap advances the chain's phase machine to completion: choose
// users, publish an initial key for each, then build initial private
// follow and private friendship graphs.
func (s *Simulator) Bootstrap() error {
	for s.chain.Phase() != PhaseDone {
		s.logger.Info("bootstrap step", "phase", s.chain.Phase())
		var err error
		switch s.chain.Phase() {
		case PhaseInit:
			s.chooseUsers()
			s.chain.phase = PhaseUsersCreated
		case PhaseUsersCreated:
			err = s.publishInitialKeys()
			s.chain.phase = PhaseKeysCreated
		case PhaseKeysCreated:
			err = s.buildInitialGraphs(config.FollowPrivate)
			s.chain.phase = PhaseFollowsCreated
		case PhaseFollowsCreated:
			err = s.buildInitialGraphs(config.FriendshipPrivate)
			s.chain.phase = PhaseFriendshipsCreated
		case PhaseFriendshipsCreated:
			s.chain.phase = PhaseDone
		default:
			return errors.New(errors.ErrCodeInternal, "unknown phase %q", s.chain.Phase())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// chooseUsers fills the population with distinct random user ids.
func (s *Simulator) chooseUsers() {
	seen := make(map[dsnp.UserID]struct{}, s.opts.Users)
	for len(seen) < s.opts.Users {
		id := dsnp.UserID(s.rng.Int63n(1_000_000_000) + 1)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.chain.AddUser(id)
	}
}

// publishInitialKeys gives every user one published graph key, exported
// through the regular key update path.
func (s *Simulator) publishInitialKeys() error {
	schemaID, err := s.schemaID(config.FollowPrivate)
	if err != nil {
		return err
	}
	for _, userID := range s.chain.Users() {
		pair, err := crypto.GenerateKeyPair()
		if err != nil {
			return err
		}

		state := graph.NewStateWithLogger(s.env, s.logger)
		bundle, err := s.chain.Bundle(userID, schemaID)
		if err != nil {
			return err
		}
		if err := state.ImportUsersData([]graph.ImportBundle{bundle}); err != nil {
			return err
		}
		if err := state.ApplyActions([]graph.Action{graph.AddGraphKeyAction{
			OwnerUserID:  userID,
			NewPublicKey: pair.Public,
		}}, nil); err != nil {
			return err
		}
		updates, err := state.ExportUpdates()
		if err != nil {
			return err
		}
		if err := s.chain.ApplyUpdates(userID, schemaID, updates, nil, nil, &pair); err != nil {
			return err
		}
	}
	return nil
}

// buildInitialGraphs connects every user to a random set of peers under
// the given graph.
func (s *Simulator) buildInitialGraphs(ct config.ConnectionType) error {
	schemaID, err := s.schemaID(ct)
	if err != nil {
		return err
	}
	friendship := ct.Graph == config.GraphFriendship

	for _, userID := range s.chain.Users() {
		peers := s.pickPeers(userID, nil, s.rng.Intn(s.opts.Connections)+1)
		if err := s.applyChanges(userID, schemaID, peers, nil, nil, friendship); err != nil {
			return err
		}
	}
	return nil
}

// Churn applies one round of random connection changes to every user's
// graph under the given connection type: up to half the existing
// connections are removed and up to half the remaining capacity is
// filled with new ones.
func (s *Simulator) Churn(ct config.ConnectionType) error {
	schemaID, err := s.schemaID(ct)
	if err != nil {
		return err
	}
	friendship := ct.Graph == config.GraphFriendship

	for _, userID := range s.chain.Users() {
		current, err := s.currentConnections(userID, schemaID)
		if err != nil {
			return err
		}

		removes := choose(s.rng, current, s.rng.Intn(len(current)/2+1))
		headroom := s.opts.Connections - len(current)
		if headroom < 0 {
			headroom = 0
		}
		adds := s.pickPeers(userID, current, s.rng.Intn(headroom/2+1))

		if err := s.applyChanges(userID, schemaID, adds, removes, current, friendship); err != nil {
			return err
		}
	}
	return nil
}

// RotateKeys publishes a fresh graph key for every user. Existing pages
// stay sealed to the old keys; the next page write re-encrypts with the
// new active key while old wallet pairs keep historical pages readable.
func (s *Simulator) RotateKeys() error {
	schemaID, err := s.schemaID(config.FollowPrivate)
	if err != nil {
		return err
	}
	for _, userID := range s.chain.Users() {
		pair, err := crypto.GenerateKeyPair()
		if err != nil {
			return err
		}

		state := graph.NewStateWithLogger(s.env, s.logger)
		if err := state.ImportUsersData([]graph.ImportBundle{{
			UserID:   userID,
			SchemaID: schemaID,
			DsnpKeys: s.chain.Keys(userID),
		}}); err != nil {
			return err
		}
		if err := state.ApplyActions([]graph.Action{graph.AddGraphKeyAction{
			OwnerUserID:  userID,
			NewPublicKey: pair.Public,
		}}, nil); err != nil {
			return err
		}
		updates, err := state.ExportUpdates()
		if err != nil {
			return err
		}
		if err := s.chain.ApplyUpdates(userID, schemaID, updates, nil, nil, &pair); err != nil {
			return err
		}
		s.logger.Debug("rotated key", "user", userID)
	}
	return nil
}

// Verify re-imports every user's stored pages and checks the resulting
// graph matches the chain's expected connection set.
func (s *Simulator) Verify(ct config.ConnectionType) error {
	schemaID, err := s.schemaID(ct)
	if err != nil {
		return err
	}
	for _, userID := range s.chain.Users() {
		current, err := s.currentConnections(userID, schemaID)
		if err != nil {
			return err
		}
		expected := s.chain.Expected(userID, schemaID)
		if !sameSet(current, expected) {
			return errors.New(errors.ErrCodeInternal,
				"graph of user %d diverged: have %d connections, expected %d",
				userID, len(current), len(expected))
		}
	}
	return nil
}

// applyChanges imports a user's chain state, applies the connect and
// disconnect actions, and writes the exported updates back to the chain.
// For friendship graphs a keys-only bundle is imported for every current
// connection, since re-rendering a page needs each connection's published
// key for its relationship identifier.
func (s *Simulator) applyChanges(userID dsnp.UserID, schemaID config.SchemaID, adds, removes, current []dsnp.UserID, friendship bool) error {
	state := graph.NewStateWithLogger(s.env, s.logger)
	bundle, err := s.chain.Bundle(userID, schemaID)
	if err != nil {
		return err
	}
	bundles := []graph.ImportBundle{bundle}
	if friendship {
		for _, id := range current {
			bundles = append(bundles, graph.ImportBundle{
				UserID:   id,
				SchemaID: schemaID,
				DsnpKeys: s.chain.Keys(id),
			})
		}
	}
	if err := state.ImportUsersData(bundles); err != nil {
		return err
	}

	actions := make([]graph.Action, 0, len(adds)+len(removes))
	for _, id := range removes {
		actions = append(actions, graph.DisconnectAction{
			OwnerUserID: userID,
			Connection:  graph.Connection{UserID: id, SchemaID: schemaID},
		})
	}
	for _, id := range adds {
		connect := graph.ConnectAction{
			OwnerUserID: userID,
			Connection:  graph.Connection{UserID: id, SchemaID: schemaID},
		}
		if friendship {
			// friendship PRIDs need the peer's published key
			connect.DsnpKeys = s.chain.Keys(id)
		}
		actions = append(actions, connect)
	}
	if len(actions) == 0 {
		return nil
	}
	if err := state.ApplyActions(actions, nil); err != nil {
		return err
	}

	updates, err := state.ExportUpdates()
	if err != nil {
		return err
	}
	s.logger.Debug("applying changes", "user", userID, "adds", len(adds), "removes", len(removes), "updates", len(updates))
	return s.chain.ApplyUpdates(userID, schemaID, updates, adds, removes, nil)
}

// currentConnections imports a user's stored pages and returns the
// connection ids the graph holds.
func (s *Simulator) currentConnections(userID dsnp.UserID, schemaID config.SchemaID) ([]dsnp.UserID, error) {
	state := graph.NewStateWithLogger(s.env, s.logger)
	bundle, err := s.chain.Bundle(userID, schemaID)
	if err != nil {
		return nil, err
	}
	if err := state.ImportUsersData([]graph.ImportBundle{bundle}); err != nil {
		return nil, err
	}
	edges, err := state.GetConnectionsForUserGraph(userID, schemaID, false)
	if err != nil {
		return nil, err
	}
	ids := make([]dsnp.UserID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.UserID)
	}
	return ids, nil
}

// pickPeers chooses up to n random users distinct from userID and from
// the exclude list.
func (s *Simulator) pickPeers(userID dsnp.UserID, exclude []dsnp.UserID, n int) []dsnp.UserID {
	taken := make(map[dsnp.UserID]struct{}, len(exclude)+1)
	taken[userID] = struct{}{}
	for _, id := range exclude {
		taken[id] = struct{}{}
	}

	candidates := make([]dsnp.UserID, 0, len(s.chain.Users()))
	for _, id := range s.chain.Users() {
		if _, skip := taken[id]; !skip {
			candidates = append(candidates, id)
		}
	}
	return choose(s.rng, candidates, n)
}

// schemaID resolves the schema storing the given graph.
func (s *Simulator) schemaID(ct config.ConnectionType) (config.SchemaID, error) {
	id, ok := s.env.Config().SchemaForConnectionType(ct)
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidSchemaID, "no schema for %s", ct)
	}
	return id, nil
}

// choose picks n random elements without replacement.
func choose(rng *rand.Rand, from []dsnp.UserID, n int) []dsnp.UserID {
	if n > len(from) {
		n = len(from)
	}
	shuffled := append([]dsnp.UserID(nil), from...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// sameSet reports whether two id lists hold the same set of ids.
func sameSet(a, b []dsnp.UserID) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]dsnp.UserID(nil), a...)
	bs := append([]dsnp.UserID(nil), b...)
	sort.Slice(as, func(i, j int) bool { return as[i] < as[j] })
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
