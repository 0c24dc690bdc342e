package simulator

import (
	"encoding/json"
	"sort"

	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
	"github.com/dsnplabs/graphsdk/pkg/graph"
)

// graphRef identifies one user's graph under one schema.
type graphRef struct {
	UserID   dsnp.UserID
	SchemaID config.SchemaID
}

// Chain models the on-chain side of a simulation: every user's published
// key page, their stored graph pages, their wallet key pairs, and the
// connection set each graph is expected to contain. Exported updates are
// applied to it the way a chain client would apply them.
type Chain struct {
	phase    Phase
	users    []dsnp.UserID
	keys     map[dsnp.UserID]*graph.DsnpKeys
	pages    map[graphRef][]graph.PageData
	expected map[graphRef][]dsnp.UserID
	wallets  map[dsnp.UserID][]crypto.GraphKeyPair
}

// NewChain creates an empty chain in the initial phase.
func NewChain() *Chain {
	return &Chain{
		phase:    PhaseInit,
		keys:     make(map[dsnp.UserID]*graph.DsnpKeys),
		pages:    make(map[graphRef][]graph.PageData),
		expected: make(map[graphRef][]dsnp.UserID),
		wallets:  make(map[dsnp.UserID][]crypto.GraphKeyPair),
	}
}

// Phase returns the chain's bootstrap phase.
func (c *Chain) Phase() Phase { return c.phase }

// AddUser registers a user with an empty published key page.
func (c *Chain) AddUser(userID dsnp.UserID) {
	if _, ok := c.keys[userID]; ok {
		return
	}
	c.users = append(c.users, userID)
	c.keys[userID] = &graph.DsnpKeys{UserID: userID}
}

// Users returns the registered users in ascending id order.
func (c *Chain) Users() []dsnp.UserID {
	out := append([]dsnp.UserID(nil), c.users...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Keys returns a copy of a user's published key page, or nil for an
// unknown user.
func (c *Chain) Keys(userID dsnp.UserID) *graph.DsnpKeys {
	keys, ok := c.keys[userID]
	if !ok {
		return nil
	}
	out := *keys
	out.Keys = append([]graph.KeyData(nil), keys.Keys...)
	return &out
}

// Wallet returns a user's key pairs.
func (c *Chain) Wallet(userID dsnp.UserID) []crypto.GraphKeyPair {
	return append([]crypto.GraphKeyPair(nil), c.wallets[userID]...)
}

// Pages returns a user's stored pages for one schema.
func (c *Chain) Pages(userID dsnp.UserID, schemaID config.SchemaID) []graph.PageData {
	return append([]graph.PageData(nil), c.pages[graphRef{userID, schemaID}]...)
}

// Expected returns the connection set a user's graph should contain.
func (c *Chain) Expected(userID dsnp.UserID, schemaID config.SchemaID) []dsnp.UserID {
	return append([]dsnp.UserID(nil), c.expected[graphRef{userID, schemaID}]...)
}

// Bundle assembles the import bundle for one user's graph from chain
// state: published keys, wallet key pairs, and stored pages.
func (c *Chain) Bundle(userID dsnp.UserID, schemaID config.SchemaID) (graph.ImportBundle, error) {
	keys := c.Keys(userID)
	if keys == nil {
		return graph.ImportBundle{}, errors.New(errors.ErrCodeInvalidUserID,
			"user %d is not registered on the chain", userID)
	}
	return graph.ImportBundle{
		UserID:   userID,
		SchemaID: schemaID,
		KeyPairs: c.Wallet(userID),
		DsnpKeys: keys,
		Pages:    c.Pages(userID, schemaID),
	}, nil
}

// ApplyUpdates applies exported updates the way a chain client would:
// persisted pages replace the page with the guarded hash and get a bumped
// content hash, deletes drop it, and key additions extend the key page.
// adds and removes record the matching change to the expected connection
// set; newPair is stored in the wallet when the updates publish a key.
func (c *Chain) ApplyUpdates(userID dsnp.UserID, schemaID config.SchemaID, updates []graph.Update, adds, removes []dsnp.UserID, newPair *crypto.GraphKeyPair) error {
	ref := graphRef{userID, schemaID}

	drop := make(map[dsnp.UserID]struct{}, len(removes))
	for _, id := range removes {
		drop[id] = struct{}{}
	}
	kept := make([]dsnp.UserID, 0, len(c.expected[ref])+len(adds))
	for _, id := range c.expected[ref] {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	c.expected[ref] = append(kept, adds...)

	for _, u := range updates {
		if u.Owner() != userID {
			return errors.New(errors.ErrCodeInvalidInput,
				"update for user %d applied to user %d", u.Owner(), userID)
		}
		switch u := u.(type) {
		case graph.PersistPageUpdate:
			if u.SchemaID != schemaID {
				return errors.New(errors.ErrCodeInvalidSchemaID,
					"update for schema %d applied to schema %d", u.SchemaID, schemaID)
			}
			c.pages[ref] = append(dropPage(c.pages[ref], u.PageID, u.PrevHash), graph.PageData{
				PageID:      u.PageID,
				Content:     u.Payload,
				ContentHash: u.PrevHash + 1,
			})
		case graph.DeletePageUpdate:
			if u.SchemaID != schemaID {
				return errors.New(errors.ErrCodeInvalidSchemaID,
					"update for schema %d applied to schema %d", u.SchemaID, schemaID)
			}
			c.pages[ref] = dropPage(c.pages[ref], u.PageID, u.PrevHash)
		case graph.AddKeyUpdate:
			keys, ok := c.keys[userID]
			if !ok {
				return errors.New(errors.ErrCodeInvalidUserID,
					"user %d is not registered on the chain", userID)
			}
			if keys.KeysHash != u.PrevHash {
				return errors.New(errors.ErrCodeInvalidInput,
					"key page of user %d moved from hash %d", userID, u.PrevHash)
			}
			if newPair == nil {
				return errors.New(errors.ErrCodeInvalidInput,
					"key update for user %d has no wallet pair", userID)
			}
			keys.KeysHash++
			keys.Keys = append(keys.Keys, graph.KeyData{
				Index:   uint16(len(keys.Keys)),
				Content: u.Payload,
			})
			c.wallets[userID] = append(c.wallets[userID], *newPair)
		default:
			return errors.New(errors.ErrCodeUnsupported, "unknown update type %T", u)
		}
	}
	return nil
}

// dropPage removes the page with the given id and hash, matching the
// optimistic-concurrency guard exported updates carry.
func dropPage(pages []graph.PageData, pageID config.PageID, hash graph.PageHash) []graph.PageData {
	kept := pages[:0]
	for _, p := range pages {
		if p.PageID != pageID || p.ContentHash != hash {
			kept = append(kept, p)
		}
	}
	return kept
}

// chainJSON is the serialized form of a chain; the struct-keyed maps are
// flattened to per-graph records.
type chainJSON struct {
	Phase  Phase             `json:"phase"`
	Users  []dsnp.UserID     `json:"users"`
	Keys   []graph.DsnpKeys  `json:"keys"`
	Graphs []chainGraphJSON  `json:"graphs"`
	Wallet []chainWalletJSON `json:"wallets"`
}

type chainGraphJSON struct {
	UserID   dsnp.UserID      `json:"userId"`
	SchemaID config.SchemaID  `json:"schemaId"`
	Expected []dsnp.UserID    `json:"expected,omitempty"`
	Pages    []graph.PageData `json:"pages,omitempty"`
}

type chainWalletJSON struct {
	UserID dsnp.UserID           `json:"userId"`
	Pairs  []crypto.GraphKeyPair `json:"pairs"`
}

// MarshalJSON implements json.Marshaler with deterministic record order.
func (c *Chain) MarshalJSON() ([]byte, error) {
	out := chainJSON{Phase: c.phase, Users: c.Users()}

	for _, id := range out.Users {
		out.Keys = append(out.Keys, *c.Keys(id))
		if pairs := c.wallets[id]; len(pairs) > 0 {
			out.Wallet = append(out.Wallet, chainWalletJSON{UserID: id, Pairs: pairs})
		}
	}

	refs := make(map[graphRef]struct{}, len(c.pages)+len(c.expected))
	for ref := range c.pages {
		refs[ref] = struct{}{}
	}
	for ref := range c.expected {
		refs[ref] = struct{}{}
	}
	sorted := make([]graphRef, 0, len(refs))
	for ref := range refs {
		sorted = append(sorted, ref)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].UserID != sorted[j].UserID {
			return sorted[i].UserID < sorted[j].UserID
		}
		return sorted[i].SchemaID < sorted[j].SchemaID
	})
	for _, ref := range sorted {
		out.Graphs = append(out.Graphs, chainGraphJSON{
			UserID:   ref.UserID,
			SchemaID: ref.SchemaID,
			Expected: c.expected[ref],
			Pages:    c.pages[ref],
		})
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Chain) UnmarshalJSON(data []byte) error {
	var raw chainJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	restored := NewChain()
	restored.phase = raw.Phase
	restored.users = raw.Users
	for i := range raw.Keys {
		keys := raw.Keys[i]
		restored.keys[keys.UserID] = &keys
	}
	for _, g := range raw.Graphs {
		ref := graphRef{g.UserID, g.SchemaID}
		restored.expected[ref] = g.Expected
		restored.pages[ref] = g.Pages
	}
	for _, w := range raw.Wallet {
		restored.wallets[w.UserID] = w.Pairs
	}

	*c = *restored
	return nil
}
