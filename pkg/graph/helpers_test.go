package graph

import (
	"testing"

	"github.com/dsnplabs/graphsdk/pkg/codec"
	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
)

// testKeysHash is an arbitrary non-zero key page hash for import bundles.
const testKeysHash PageHash = 232

func mustKeyPair(t *testing.T) crypto.GraphKeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	return kp
}

func mustWriteKeyData(t *testing.T, pairs []crypto.GraphKeyPair) []KeyData {
	t.Helper()
	keys := make([]KeyData, 0, len(pairs))
	for i, pair := range pairs {
		content, err := codec.WritePublicKey(dsnp.PublicKey{Key: pair.Public})
		if err != nil {
			t.Fatalf("WritePublicKey() error = %v", err)
		}
		keys = append(keys, KeyData{Index: uint16(i), Content: content})
	}
	return keys
}

func edges(ids ...dsnp.UserID) []dsnp.GraphEdge {
	out := make([]dsnp.GraphEdge, 0, len(ids))
	for _, id := range ids {
		out = append(out, dsnp.GraphEdge{UserID: id})
	}
	return out
}

func edgeIDs(edges []dsnp.GraphEdge) map[dsnp.UserID]struct{} {
	ids := make(map[dsnp.UserID]struct{}, len(edges))
	for _, e := range edges {
		ids[e.UserID] = struct{}{}
	}
	return ids
}

type testPage struct {
	id    config.PageID
	edges []dsnp.GraphEdge
	prids []dsnp.PRID
	hash  PageHash
}

// bundleBuilder assembles import bundles the way a chain indexer would
// hand them to the SDK.
type bundleBuilder struct {
	t        *testing.T
	env      config.Environment
	userID   dsnp.UserID
	schemaID config.SchemaID
	pairs    []crypto.GraphKeyPair
	encKey   *ResolvedKeyPair
	pages    []testPage
}

func newBundleBuilder(t *testing.T, env config.Environment, userID dsnp.UserID, schemaID config.SchemaID) *bundleBuilder {
	t.Helper()
	return &bundleBuilder{t: t, env: env, userID: userID, schemaID: schemaID}
}

func (b *bundleBuilder) withKeyPairs(pairs ...crypto.GraphKeyPair) *bundleBuilder {
	b.pairs = append(b.pairs, pairs...)
	return b
}

func (b *bundleBuilder) withEncryptionKey(key ResolvedKeyPair) *bundleBuilder {
	b.encKey = &key
	return b
}

func (b *bundleBuilder) withPage(id config.PageID, edges []dsnp.GraphEdge, prids []dsnp.PRID, hash PageHash) *bundleBuilder {
	b.pages = append(b.pages, testPage{id: id, edges: edges, prids: prids, hash: hash})
	return b
}

func (b *bundleBuilder) build() ImportBundle {
	b.t.Helper()
	ct, ok := b.env.Config().ConnectionTypeForSchema(b.schemaID)
	if !ok {
		b.t.Fatalf("schema id %d not configured", b.schemaID)
	}

	encKey := b.encKey
	if encKey == nil {
		encKey = &ResolvedKeyPair{KeyID: 0, KeyPair: mustKeyPair(b.t)}
	}

	pages := make([]PageData, 0, len(b.pages))
	for _, p := range b.pages {
		var content []byte
		var err error
		switch ct.Privacy {
		case config.PrivacyPublic:
			content, err = codec.WritePublicGraph(p.edges)
		case config.PrivacyPrivate:
			content, err = codec.WritePrivateGraph(dsnp.DecryptedPrivateGraph{
				KeyID:      encKey.KeyID,
				PRIDs:      p.prids,
				InnerGraph: p.edges,
			}, encKey.KeyPair.Public)
		}
		if err != nil {
			b.t.Fatalf("serializing page %d: %v", p.id, err)
		}
		pages = append(pages, PageData{PageID: p.id, Content: content, ContentHash: p.hash})
	}

	bundle := ImportBundle{
		UserID:   b.userID,
		SchemaID: b.schemaID,
		KeyPairs: b.pairs,
		Pages:    pages,
	}
	if len(b.pairs) > 0 {
		bundle.DsnpKeys = &DsnpKeys{
			UserID:   b.userID,
			KeysHash: testKeysHash,
			Keys:     mustWriteKeyData(b.t, b.pairs),
		}
	}
	return bundle
}

// applyUpdatesToBundle replays exported updates onto an import bundle,
// producing the bundle a fresh state would read back from chain.
func applyUpdatesToBundle(t *testing.T, original ImportBundle, updates []Update) ImportBundle {
	t.Helper()
	next := original
	next.Pages = append([]PageData(nil), original.Pages...)

	for _, u := range updates {
		switch u := u.(type) {
		case PersistPageUpdate:
			if u.OwnerUserID != next.UserID || u.SchemaID != next.SchemaID {
				continue
			}
			page := PageData{PageID: u.PageID, Content: u.Payload, ContentHash: 1}
			replaced := false
			for i := range next.Pages {
				if next.Pages[i].PageID == u.PageID {
					if next.Pages[i].ContentHash != u.PrevHash {
						t.Fatalf("page %d: prev hash %d does not match imported hash %d",
							u.PageID, u.PrevHash, next.Pages[i].ContentHash)
					}
					next.Pages[i] = page
					replaced = true
					break
				}
			}
			if !replaced {
				next.Pages = append(next.Pages, page)
			}
		case DeletePageUpdate:
			if u.OwnerUserID != next.UserID || u.SchemaID != next.SchemaID {
				continue
			}
			kept := next.Pages[:0]
			for _, p := range next.Pages {
				if p.PageID != u.PageID {
					kept = append(kept, p)
				}
			}
			next.Pages = kept
		}
	}
	return next
}
