package graph

import (
	"sort"

	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// UserGraph holds all of one user's graphs, one per configured schema,
// together with the user's pending updates and key manager.
type UserGraph struct {
	cfg        *config.Config
	userID     dsnp.UserID
	graphs     map[config.SchemaID]*Graph
	tracker    *UpdateTracker
	keyManager *UserKeyManager
}

// NewUserGraph creates an empty user graph with one graph per schema in
// the environment's schema map.
func NewUserGraph(userID dsnp.UserID, cfg *config.Config, shared *SharedStateManager) (*UserGraph, error) {
	km := NewUserKeyManager(userID, shared)
	graphs := make(map[config.SchemaID]*Graph, len(cfg.SchemaMap))
	for schemaID := range cfg.SchemaMap {
		g, err := NewGraph(cfg, userID, schemaID, km)
		if err != nil {
			return nil, err
		}
		graphs[schemaID] = g
	}
	return &UserGraph{
		cfg:        cfg,
		userID:     userID,
		graphs:     graphs,
		tracker:    NewUpdateTracker(),
		keyManager: km,
	}, nil
}

// UserID returns the graph owner.
func (u *UserGraph) UserID() dsnp.UserID { return u.userID }

// Graph returns the user's graph for a schema.
func (u *UserGraph) Graph(schemaID config.SchemaID) (*Graph, bool) {
	g, ok := u.graphs[schemaID]
	return g, ok
}

// Tracker returns the user's pending update tracker.
func (u *UserGraph) Tracker() *UpdateTracker { return u.tracker }

// KeyManager returns the user's key manager.
func (u *UserGraph) KeyManager() *UserKeyManager { return u.keyManager }

// ClearGraph drops all pages of the user's graph for a schema.
func (u *UserGraph) ClearGraph(schemaID config.SchemaID) {
	if g, ok := u.graphs[schemaID]; ok {
		g.Clear()
	}
}

// SyncUpdates drops pending events already satisfied by imported state for
// the schema.
func (u *UserGraph) SyncUpdates(schemaID config.SchemaID) {
	existing := make(map[dsnp.UserID]struct{})
	for _, edge := range u.ConnectionsOf(schemaID, false) {
		existing[edge.UserID] = struct{}{}
	}
	u.tracker.SyncUpdates(schemaID, existing)
}

// CalculateUpdates renders every graph's pending events as chain updates.
func (u *UserGraph) CalculateUpdates() ([]Update, error) {
	result := make([]Update, 0)
	for _, schemaID := range u.sortedSchemaIDs() {
		events := u.tracker.UpdatesForSchema(schemaID)
		if len(events) == 0 {
			continue
		}
		updates, err := u.graphs[schemaID].CalculateUpdates(events)
		if err != nil {
			return nil, err
		}
		result = append(result, updates...)
	}
	return result, nil
}

// ForceCalculateGraphs re-exports every imported page under the current
// active key.
func (u *UserGraph) ForceCalculateGraphs() ([]Update, error) {
	result := make([]Update, 0)
	for _, schemaID := range u.sortedSchemaIDs() {
		updates, err := u.graphs[schemaID].ForceRecalculate()
		if err != nil {
			return nil, err
		}
		result = append(result, updates...)
	}
	return result, nil
}

// sortedSchemaIDs returns the user's graph schema ids in ascending order
// so exported updates are deterministic.
func (u *UserGraph) sortedSchemaIDs() []config.SchemaID {
	ids := make([]config.SchemaID, 0, len(u.graphs))
	for id := range u.graphs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasConnection reports whether the schema's graph holds the connection,
// optionally reflecting pending adds and removes.
func (u *UserGraph) HasConnection(schemaID config.SchemaID, id dsnp.UserID, includePending bool) bool {
	g, ok := u.graphs[schemaID]
	if !ok {
		return false
	}
	exists := g.HasConnection(id)
	if !includePending {
		return exists
	}
	addPending := u.tracker.Contains(AddEvent(id, schemaID))
	removePending := u.tracker.Contains(RemoveEvent(id, schemaID))
	return (exists && !removePending) || (!exists && addPending)
}

// ConnectionsOf returns the schema's connections, optionally overlaid with
// pending adds and removes.
func (u *UserGraph) ConnectionsOf(schemaID config.SchemaID, applyPending bool) []dsnp.GraphEdge {
	byID := make(map[dsnp.UserID]dsnp.GraphEdge)
	order := make([]dsnp.UserID, 0)
	if g, ok := u.graphs[schemaID]; ok {
		for _, edge := range g.Connections() {
			if _, seen := byID[edge.UserID]; !seen {
				order = append(order, edge.UserID)
			}
			byID[edge.UserID] = edge
		}
	}

	if applyPending {
		for _, event := range u.tracker.UpdatesForSchema(schemaID) {
			switch event.Kind {
			case EventAdd:
				if _, seen := byID[event.UserID]; !seen {
					order = append(order, event.UserID)
				}
				byID[event.UserID] = dsnp.GraphEdge{UserID: event.UserID, Since: timeInKsecs()}
			case EventRemove:
				delete(byID, event.UserID)
			}
		}
	}

	edges := make([]dsnp.GraphEdge, 0, len(byID))
	for _, id := range order {
		if edge, ok := byID[id]; ok {
			edges = append(edges, edge)
		}
	}
	return edges
}

// OneSidedPrivateFriendships returns private friendship connections the
// other side no longer verifies.
func (u *UserGraph) OneSidedPrivateFriendships() ([]dsnp.GraphEdge, error) {
	schemaID, ok := u.cfg.SchemaForConnectionType(config.FriendshipPrivate)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported,
			"environment has no private friendship schema")
	}
	g, ok := u.graphs[schemaID]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidSchemaID,
			"no graph for schema %d", schemaID)
	}
	return g.GetOneSidedFriendships()
}

// Commit makes all of the user's staged state permanent.
func (u *UserGraph) Commit() {
	for _, g := range u.graphs {
		g.Commit()
	}
	u.tracker.Commit()
	u.keyManager.Commit()
}

// Rollback restores all of the user's state at the last commit.
func (u *UserGraph) Rollback() {
	for _, g := range u.graphs {
		g.Rollback()
	}
	u.tracker.Rollback()
	u.keyManager.Rollback()
}
