package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

func TestTrackerRegisterUpdate(t *testing.T) {
	tracker := NewUpdateTracker()
	add := AddEvent(1, 4)

	if err := tracker.RegisterUpdate(add, false); err != nil {
		t.Fatalf("RegisterUpdate() error = %v", err)
	}
	if !tracker.Contains(add) {
		t.Fatal("registered event not tracked")
	}

	err := tracker.RegisterUpdate(add, false)
	if !errors.Is(err, errors.ErrCodeDuplicateUpdate) {
		t.Fatalf("duplicate RegisterUpdate() error = %v, want %s", err, errors.ErrCodeDuplicateUpdate)
	}
	if err := tracker.RegisterUpdate(add, true); err != nil {
		t.Fatalf("ignored duplicate error = %v", err)
	}
}

func TestTrackerComplementCancels(t *testing.T) {
	tracker := NewUpdateTracker()
	add := AddEvent(1, 4)

	if err := tracker.RegisterUpdate(add, false); err != nil {
		t.Fatalf("RegisterUpdate() error = %v", err)
	}
	// the matching remove cancels the pending add instead of stacking
	if err := tracker.RegisterUpdate(RemoveEvent(1, 4), false); err != nil {
		t.Fatalf("RegisterUpdate() error = %v", err)
	}
	if tracker.HasUpdates() {
		t.Fatalf("pending events = %v, want none", tracker.UpdatesForSchema(4))
	}
}

func TestTrackerSchemasAreIndependent(t *testing.T) {
	tracker := NewUpdateTracker()
	if err := tracker.RegisterUpdate(AddEvent(1, 4), false); err != nil {
		t.Fatalf("RegisterUpdate() error = %v", err)
	}
	if err := tracker.RegisterUpdate(AddEvent(1, 2), false); err != nil {
		t.Fatalf("same connection in another schema error = %v", err)
	}
	if len(tracker.UpdatesForSchema(4)) != 1 || len(tracker.UpdatesForSchema(2)) != 1 {
		t.Fatal("events should be tracked per schema")
	}
}

func TestTrackerSyncUpdates(t *testing.T) {
	tracker := NewUpdateTracker()
	events := []UpdateEvent{
		AddEvent(1, 4),    // already connected: dropped
		AddEvent(2, 4),    // still pending
		RemoveEvent(3, 4), // still connected: stays pending
		RemoveEvent(4, 4), // already gone: dropped
	}
	if err := tracker.RegisterUpdates(events, false); err != nil {
		t.Fatalf("RegisterUpdates() error = %v", err)
	}

	existing := map[dsnp.UserID]struct{}{1: {}, 3: {}}
	tracker.SyncUpdates(4, existing)

	want := []UpdateEvent{RemoveEvent(3, 4), AddEvent(2, 4)}
	got := tracker.UpdatesForSchema(4)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("synced events mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackerRollback(t *testing.T) {
	tracker := NewUpdateTracker()
	if err := tracker.RegisterUpdate(AddEvent(1, 4), false); err != nil {
		t.Fatalf("RegisterUpdate() error = %v", err)
	}
	tracker.Commit()
	if err := tracker.RegisterUpdate(AddEvent(2, 4), false); err != nil {
		t.Fatalf("RegisterUpdate() error = %v", err)
	}

	tracker.Rollback()
	got := tracker.UpdatesForSchema(4)
	if len(got) != 1 || got[0] != AddEvent(1, 4) {
		t.Fatalf("after rollback events = %v, want only the committed add", got)
	}
}

func TestSortEventsRemovesFirst(t *testing.T) {
	events := []UpdateEvent{
		AddEvent(5, 4),
		RemoveEvent(9, 4),
		AddEvent(1, 4),
		RemoveEvent(2, 4),
	}
	sortEventsRemovesFirst(events)
	want := []UpdateEvent{
		RemoveEvent(2, 4),
		RemoveEvent(9, 4),
		AddEvent(1, 4),
		AddEvent(5, 4),
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("sorted events mismatch (-want +got):\n%s", diff)
	}
}
