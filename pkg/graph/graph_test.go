package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dsnplabs/graphsdk/pkg/codec"
	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

const testOwner dsnp.UserID = 1000

// newTestGraph builds a graph of the given connection type, with the
// owner's key pair published and resolved for private types.
func newTestGraph(t *testing.T, cfg *config.Config, ct config.ConnectionType) (*Graph, crypto.GraphKeyPair) {
	t.Helper()
	schemaID, ok := cfg.SchemaForConnectionType(ct)
	if !ok {
		t.Fatalf("no schema configured for %s", ct)
	}

	shared := NewSharedStateManager()
	km := NewUserKeyManager(testOwner, shared)
	pair := mustKeyPair(t)
	if err := shared.ImportDsnpKeys(&DsnpKeys{
		UserID:   testOwner,
		KeysHash: testKeysHash,
		Keys:     mustWriteKeyData(t, []crypto.GraphKeyPair{pair}),
	}); err != nil {
		t.Fatalf("ImportDsnpKeys() error = %v", err)
	}
	if err := km.ImportKeyPairs([]crypto.GraphKeyPair{pair}); err != nil {
		t.Fatalf("ImportKeyPairs() error = %v", err)
	}

	g, err := NewGraph(cfg, testOwner, schemaID, km)
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	return g, pair
}

func mustImportPublicPage(t *testing.T, g *Graph, pageID config.PageID, conns []dsnp.GraphEdge, hash PageHash) {
	t.Helper()
	content, err := codec.WritePublicGraph(conns)
	if err != nil {
		t.Fatalf("WritePublicGraph() error = %v", err)
	}
	if err := g.ImportPublic([]PageData{{PageID: pageID, Content: content, ContentHash: hash}}); err != nil {
		t.Fatalf("ImportPublic() error = %v", err)
	}
}

func TestGraphAddRemoveConnections(t *testing.T) {
	cfg := config.Mainnet().Config()
	g, _ := newTestGraph(t, cfg, config.FollowPublic)

	if err := g.AddConnectionToPage(0, 7); err != nil {
		t.Fatalf("AddConnectionToPage() error = %v", err)
	}
	if !g.HasConnection(7) || g.Len() != 1 {
		t.Fatal("connection not recorded")
	}

	err := g.AddConnectionToPage(1, 7)
	if !errors.Is(err, errors.ErrCodeConnectionExists) {
		t.Fatalf("duplicate add error = %v, want %s", err, errors.ErrCodeConnectionExists)
	}

	pageID, removed, err := g.RemoveConnection(7)
	if err != nil || !removed || pageID != 0 {
		t.Fatalf("RemoveConnection() = %d, %t, %v", pageID, removed, err)
	}
	if _, removed, _ := g.RemoveConnection(7); removed {
		t.Fatal("removing an absent connection should be a no-op")
	}
}

func TestGraphRollback(t *testing.T) {
	cfg := config.Mainnet().Config()
	g, _ := newTestGraph(t, cfg, config.FollowPublic)

	if err := g.AddConnectionToPage(0, 7); err != nil {
		t.Fatalf("AddConnectionToPage() error = %v", err)
	}
	g.Commit()
	if err := g.AddConnectionToPage(0, 8); err != nil {
		t.Fatalf("AddConnectionToPage() error = %v", err)
	}

	g.Rollback()
	if !g.HasConnection(7) || g.HasConnection(8) {
		t.Fatal("rollback should keep committed connections and drop staged ones")
	}
}

func TestCalculateUpdatesAddAndRemove(t *testing.T) {
	cfg := config.Mainnet().Config()
	g, _ := newTestGraph(t, cfg, config.FollowPublic)
	mustImportPublicPage(t, g, 0, edges(1, 2, 3), 9)

	events := []UpdateEvent{
		RemoveEvent(1, g.SchemaID()),
		AddEvent(50, g.SchemaID()),
	}
	updates, err := g.CalculateUpdates(events)
	if err != nil {
		t.Fatalf("CalculateUpdates() error = %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}

	persist, ok := updates[0].(PersistPageUpdate)
	if !ok {
		t.Fatalf("update type = %T, want PersistPageUpdate", updates[0])
	}
	if persist.PageID != 0 || persist.PrevHash != 9 {
		t.Errorf("persist = %+v, want page 0 with prev hash 9", persist)
	}
	decoded, err := codec.ReadPublicGraph(persist.Payload)
	if err != nil {
		t.Fatalf("ReadPublicGraph() error = %v", err)
	}
	want := map[dsnp.UserID]struct{}{2: {}, 3: {}, 50: {}}
	if diff := cmp.Diff(want, edgeIDs(decoded)); diff != "" {
		t.Errorf("exported page mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculateUpdatesDeletesEmptiedPage(t *testing.T) {
	cfg := config.Mainnet().Config()
	g, _ := newTestGraph(t, cfg, config.FollowPublic)
	mustImportPublicPage(t, g, 2, edges(42), 17)

	updates, err := g.CalculateUpdates([]UpdateEvent{RemoveEvent(42, g.SchemaID())})
	if err != nil {
		t.Fatalf("CalculateUpdates() error = %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	del, ok := updates[0].(DeletePageUpdate)
	if !ok {
		t.Fatalf("update type = %T, want DeletePageUpdate", updates[0])
	}
	if del.PageID != 2 || del.PrevHash != 17 {
		t.Errorf("delete = %+v, want page 2 with prev hash 17", del)
	}
}

func TestCalculateUpdatesSpillsAcrossPages(t *testing.T) {
	cfg := config.Mainnet().Config()
	g, _ := newTestGraph(t, cfg, config.FollowPublic)

	events := make([]UpdateEvent, 0, 200)
	for id := dsnp.UserID(1); id <= 200; id++ {
		events = append(events, AddEvent(id, g.SchemaID()))
	}
	updates, err := g.CalculateUpdates(events)
	if err != nil {
		t.Fatalf("CalculateUpdates() error = %v", err)
	}
	if len(updates) < 2 {
		t.Fatalf("200 adds produced %d pages, want at least 2", len(updates))
	}

	total := 0
	for _, u := range updates {
		persist, ok := u.(PersistPageUpdate)
		if !ok {
			t.Fatalf("update type = %T, want PersistPageUpdate", u)
		}
		decoded, err := codec.ReadPublicGraph(persist.Payload)
		if err != nil {
			t.Fatalf("ReadPublicGraph() error = %v", err)
		}
		total += len(decoded)
	}
	if total != 200 {
		t.Fatalf("exported %d connections across pages, want 200", total)
	}
}

func TestCalculateUpdatesGraphFull(t *testing.T) {
	cfg := config.NewBuilder().
		WithMaxPageID(0).
		WithMaxGraphPageSizeBytes(1).
		WithSchema(1, config.SchemaConfig{
			DsnpVersion:    config.DsnpVersion1_0,
			ConnectionType: config.FollowPublic,
		}).
		Build()
	g, _ := newTestGraph(t, &cfg, config.FollowPublic)

	capacity := pageCapacities[config.FollowPublic]
	events := make([]UpdateEvent, 0, capacity+1)
	for id := dsnp.UserID(1); id <= dsnp.UserID(capacity+1); id++ {
		events = append(events, AddEvent(id, g.SchemaID()))
	}
	_, err := g.CalculateUpdates(events)
	if !errors.Is(err, errors.ErrCodeGraphFull) {
		t.Fatalf("CalculateUpdates() error = %v, want %s", err, errors.ErrCodeGraphFull)
	}
}

func TestFollowPrivateExportClearsPRIDs(t *testing.T) {
	cfg := config.Mainnet().Config()
	g, pair := newTestGraph(t, cfg, config.FollowPrivate)

	// imported page carries stale prids that must not survive an export
	content, err := codec.WritePrivateGraph(dsnp.DecryptedPrivateGraph{
		KeyID:      0,
		PRIDs:      []dsnp.PRID{{1, 2, 3, 4, 5, 6, 7, 8}},
		InnerGraph: edges(5),
	}, pair.Public)
	if err != nil {
		t.Fatalf("WritePrivateGraph() error = %v", err)
	}
	if err := g.ImportPrivate([]PageData{{PageID: 0, Content: content, ContentHash: 3}}); err != nil {
		t.Fatalf("ImportPrivate() error = %v", err)
	}

	updates, err := g.CalculateUpdates([]UpdateEvent{AddEvent(6, g.SchemaID())})
	if err != nil {
		t.Fatalf("CalculateUpdates() error = %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	persist := updates[0].(PersistPageUpdate)
	decrypted, err := codec.ReadPrivateGraph(persist.Payload, pair)
	if err != nil {
		t.Fatalf("ReadPrivateGraph() error = %v", err)
	}
	if len(decrypted.PRIDs) != 0 {
		t.Errorf("exported follow page still carries %d prids", len(decrypted.PRIDs))
	}
	want := map[dsnp.UserID]struct{}{5: {}, 6: {}}
	if diff := cmp.Diff(want, edgeIDs(decrypted.InnerGraph)); diff != "" {
		t.Errorf("exported connections mismatch (-want +got):\n%s", diff)
	}
}

func TestImportPrivateRejectsPRIDCountMismatch(t *testing.T) {
	cfg := config.Mainnet().Config()
	g, pair := newTestGraph(t, cfg, config.FriendshipPrivate)

	content, err := codec.WritePrivateGraph(dsnp.DecryptedPrivateGraph{
		KeyID:      0,
		PRIDs:      []dsnp.PRID{{1, 1, 1, 1, 1, 1, 1, 1}},
		InnerGraph: edges(5, 6),
	}, pair.Public)
	if err != nil {
		t.Fatalf("WritePrivateGraph() error = %v", err)
	}
	err = g.ImportPrivate([]PageData{{PageID: 0, Content: content, ContentHash: 3}})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("ImportPrivate() error = %v, want %s", err, errors.ErrCodeInvalidInput)
	}
}

func TestImportRejectsPageIDAboveMax(t *testing.T) {
	cfg := config.Mainnet().Config()
	g, _ := newTestGraph(t, cfg, config.FollowPublic)

	content, err := codec.WritePublicGraph(edges(1))
	if err != nil {
		t.Fatalf("WritePublicGraph() error = %v", err)
	}
	pageID := config.PageID(cfg.MaxPageID + 1)
	err = g.ImportPublic([]PageData{{PageID: pageID, Content: content, ContentHash: 1}})
	if !errors.Is(err, errors.ErrCodeInvalidPageID) {
		t.Fatalf("ImportPublic() error = %v, want %s", err, errors.ErrCodeInvalidPageID)
	}
}

func TestImportPublicRejectsPrivateGraph(t *testing.T) {
	cfg := config.Mainnet().Config()
	g, _ := newTestGraph(t, cfg, config.FollowPrivate)

	err := g.ImportPublic([]PageData{})
	if !errors.Is(err, errors.ErrCodeWrongPrivacyType) {
		t.Fatalf("ImportPublic() on private graph error = %v, want %s", err, errors.ErrCodeWrongPrivacyType)
	}
}
