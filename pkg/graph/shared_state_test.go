package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dsnplabs/graphsdk/pkg/codec"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

func TestSharedStateImportDsnpKeysSortsByIndex(t *testing.T) {
	shared := NewSharedStateManager()
	first := mustKeyPair(t)
	second := mustKeyPair(t)

	firstContent, err := codec.WritePublicKey(dsnp.PublicKey{Key: first.Public})
	if err != nil {
		t.Fatalf("WritePublicKey() error = %v", err)
	}
	secondContent, err := codec.WritePublicKey(dsnp.PublicKey{Key: second.Public})
	if err != nil {
		t.Fatalf("WritePublicKey() error = %v", err)
	}

	err = shared.ImportDsnpKeys(&DsnpKeys{
		UserID:   1,
		KeysHash: testKeysHash,
		Keys: []KeyData{
			{Index: 5, Content: secondContent},
			{Index: 2, Content: firstContent},
		},
	})
	if err != nil {
		t.Fatalf("ImportDsnpKeys() error = %v", err)
	}

	keys := shared.GetImportedKeys(1)
	if len(keys) != 2 {
		t.Fatalf("GetImportedKeys() returned %d keys, want 2", len(keys))
	}
	if diff := cmp.Diff(first.Public, keys[0].Key); diff != "" {
		t.Errorf("first key mismatch (-want +got):\n%s", diff)
	}
	if *keys[0].KeyID != 2 || *keys[1].KeyID != 5 {
		t.Errorf("key ids = %d, %d, want 2, 5", *keys[0].KeyID, *keys[1].KeyID)
	}

	active := shared.GetActiveKey(1)
	if active == nil || *active.KeyID != 5 {
		t.Errorf("GetActiveKey() = %v, want key id 5", active)
	}
	if got := shared.GetKeyByID(1, 2); got == nil {
		t.Error("GetKeyByID(1, 2) = nil, want imported key")
	}
	if got := shared.GetKeyByID(1, 9); got != nil {
		t.Errorf("GetKeyByID(1, 9) = %v, want nil", got)
	}
}

func TestSharedStateImportDsnpKeysRejectsGarbage(t *testing.T) {
	shared := NewSharedStateManager()
	err := shared.ImportDsnpKeys(&DsnpKeys{
		UserID:   1,
		KeysHash: testKeysHash,
		Keys:     []KeyData{{Index: 0, Content: []byte{0xff, 0x00, 0x01}}},
	})
	if err == nil {
		t.Fatal("ImportDsnpKeys() accepted a malformed key blob")
	}
}

func TestSharedStateAddNewKey(t *testing.T) {
	shared := NewSharedStateManager()
	published := mustKeyPair(t)
	if err := shared.ImportDsnpKeys(&DsnpKeys{
		UserID:   1,
		KeysHash: testKeysHash,
		Keys:     mustWriteKeyData(t, []crypto.GraphKeyPair{published}),
	}); err != nil {
		t.Fatalf("ImportDsnpKeys() error = %v", err)
	}

	err := shared.AddNewKey(1, published.Public)
	if !errors.Is(err, errors.ErrCodeKeyAlreadyExists) {
		t.Fatalf("re-adding published key: error = %v, want %s", err, errors.ErrCodeKeyAlreadyExists)
	}
	err = shared.AddNewKey(1, []byte{1, 2, 3})
	if !errors.Is(err, errors.ErrCodeInvalidPublicKey) {
		t.Fatalf("short key: error = %v, want %s", err, errors.ErrCodeInvalidPublicKey)
	}

	fresh := mustKeyPair(t)
	if err := shared.AddNewKey(1, fresh.Public); err != nil {
		t.Fatalf("AddNewKey() error = %v", err)
	}

	updates, err := shared.ExportNewKeyUpdates()
	if err != nil {
		t.Fatalf("ExportNewKeyUpdates() error = %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("ExportNewKeyUpdates() returned %d updates, want 1", len(updates))
	}
	add, ok := updates[0].(AddKeyUpdate)
	if !ok {
		t.Fatalf("update type = %T, want AddKeyUpdate", updates[0])
	}
	if add.OwnerUserID != 1 || add.PrevHash != testKeysHash {
		t.Errorf("update = %+v, want owner 1 with prev hash %d", add, testKeysHash)
	}
	exported, err := codec.ReadPublicKey(add.Payload)
	if err != nil {
		t.Fatalf("ReadPublicKey() on payload error = %v", err)
	}
	if diff := cmp.Diff(fresh.Public, exported.Key); diff != "" {
		t.Errorf("exported key mismatch (-want +got):\n%s", diff)
	}
}

func TestSharedStateExportNewKeyUpdatesForUser(t *testing.T) {
	shared := NewSharedStateManager()
	for _, userID := range []dsnp.UserID{1, 2} {
		pair := mustKeyPair(t)
		if err := shared.AddNewKey(userID, pair.Public); err != nil {
			t.Fatalf("AddNewKey(%d) error = %v", userID, err)
		}
	}

	updates, err := shared.ExportNewKeyUpdatesForUser(2)
	if err != nil {
		t.Fatalf("ExportNewKeyUpdatesForUser() error = %v", err)
	}
	if len(updates) != 1 || updates[0].(AddKeyUpdate).OwnerUserID != 2 {
		t.Fatalf("updates = %v, want one update for user 2", updates)
	}

	updates, err = shared.ExportNewKeyUpdatesForUser(99)
	if err != nil || len(updates) != 0 {
		t.Fatalf("ExportNewKeyUpdatesForUser(99) = %v, %v, want no updates", updates, err)
	}
}

func TestSharedStateFindUsersWithoutKeys(t *testing.T) {
	shared := NewSharedStateManager()
	if err := shared.ImportDsnpKeys(&DsnpKeys{
		UserID:   2,
		KeysHash: testKeysHash,
		Keys:     mustWriteKeyData(t, []crypto.GraphKeyPair{mustKeyPair(t)}),
	}); err != nil {
		t.Fatalf("ImportDsnpKeys() error = %v", err)
	}
	// imported keys record exists but holds no keys
	if err := shared.ImportDsnpKeys(&DsnpKeys{UserID: 3, KeysHash: testKeysHash}); err != nil {
		t.Fatalf("ImportDsnpKeys() error = %v", err)
	}

	got := shared.FindUsersWithoutKeys([]dsnp.UserID{1, 2, 3})
	if diff := cmp.Diff([]dsnp.UserID{1, 3}, got); diff != "" {
		t.Errorf("FindUsersWithoutKeys() mismatch (-want +got):\n%s", diff)
	}
}

func TestSharedStatePRIDs(t *testing.T) {
	shared := NewSharedStateManager()
	pair := mustKeyPair(t)
	prid := dsnp.PRID{9, 9, 9, 9, 9, 9, 9, 9}

	content, err := codec.WritePrivateGraph(dsnp.DecryptedPrivateGraph{
		KeyID:      0,
		PRIDs:      []dsnp.PRID{prid},
		InnerGraph: edges(5),
	}, pair.Public)
	if err != nil {
		t.Fatalf("WritePrivateGraph() error = %v", err)
	}

	if err := shared.ImportPRIDs(1, []PageData{{PageID: 0, ContentHash: 17, Content: content}}); err != nil {
		t.Fatalf("ImportPRIDs() error = %v", err)
	}
	if !shared.ContainsPRID(1, prid) {
		t.Error("ContainsPRID() = false for imported prid")
	}
	if shared.ContainsPRID(1, dsnp.PRID{1}) {
		t.Error("ContainsPRID() = true for unknown prid")
	}

	if err := shared.ImportDsnpKeys(&DsnpKeys{
		UserID:   1,
		KeysHash: testKeysHash,
		Keys:     mustWriteKeyData(t, []crypto.GraphKeyPair{pair}),
	}); err != nil {
		t.Fatalf("ImportDsnpKeys() error = %v", err)
	}
	keys, err := shared.GetPRIDAssociatedPublicKeys(1)
	if err != nil {
		t.Fatalf("GetPRIDAssociatedPublicKeys() error = %v", err)
	}
	if len(keys) != 1 || *keys[0].KeyID != 0 {
		t.Errorf("associated keys = %v, want one key with id 0", keys)
	}

	if _, err := shared.GetPRIDAssociatedPublicKeys(99); !errors.Is(err, errors.ErrCodeNoImportedPRIDs) {
		t.Errorf("GetPRIDAssociatedPublicKeys(99) error = %v, want %s", err, errors.ErrCodeNoImportedPRIDs)
	}
}

func TestSharedStateCommitAndRollback(t *testing.T) {
	shared := NewSharedStateManager()
	pair := mustKeyPair(t)

	if err := shared.ImportDsnpKeys(&DsnpKeys{
		UserID:   1,
		KeysHash: testKeysHash,
		Keys:     mustWriteKeyData(t, []crypto.GraphKeyPair{pair}),
	}); err != nil {
		t.Fatalf("ImportDsnpKeys() error = %v", err)
	}
	shared.Rollback()
	if keys := shared.GetImportedKeys(1); len(keys) != 0 {
		t.Fatalf("keys survived rollback: %v", keys)
	}

	if err := shared.ImportDsnpKeys(&DsnpKeys{
		UserID:   1,
		KeysHash: testKeysHash,
		Keys:     mustWriteKeyData(t, []crypto.GraphKeyPair{pair}),
	}); err != nil {
		t.Fatalf("ImportDsnpKeys() error = %v", err)
	}
	shared.Commit()
	shared.Rollback()
	if keys := shared.GetImportedKeys(1); len(keys) != 1 {
		t.Fatalf("committed keys lost on rollback: %v", keys)
	}
}
