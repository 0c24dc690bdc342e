package graph

import (
	"sort"

	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
	"github.com/dsnplabs/graphsdk/pkg/transactional"
)

// UpdateEventKind distinguishes pending adds from pending removes.
type UpdateEventKind uint8

const (
	// EventAdd is a pending connection addition.
	EventAdd UpdateEventKind = iota
	// EventRemove is a pending connection removal.
	EventRemove
)

// UpdateEvent is one pending uncommitted change to a user's graph.
type UpdateEvent struct {
	// Kind is add or remove.
	Kind UpdateEventKind
	// UserID is the connection the event targets.
	UserID dsnp.UserID
	// SchemaID is the graph the event applies to.
	SchemaID config.SchemaID
}

// AddEvent builds a pending addition.
func AddEvent(userID dsnp.UserID, schemaID config.SchemaID) UpdateEvent {
	return UpdateEvent{Kind: EventAdd, UserID: userID, SchemaID: schemaID}
}

// RemoveEvent builds a pending removal.
func RemoveEvent(userID dsnp.UserID, schemaID config.SchemaID) UpdateEvent {
	return UpdateEvent{Kind: EventRemove, UserID: userID, SchemaID: schemaID}
}

// complement returns the event that cancels this one.
func (e UpdateEvent) complement() UpdateEvent {
	c := e
	if e.Kind == EventAdd {
		c.Kind = EventRemove
	} else {
		c.Kind = EventAdd
	}
	return c
}

// sortEventsRemovesFirst orders events so removals precede additions.
func sortEventsRemovesFirst(events []UpdateEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Kind != events[j].Kind {
			return events[i].Kind == EventRemove
		}
		return events[i].UserID < events[j].UserID
	})
}

// UpdateTracker records the pending connection changes of one user, per
// schema.
type UpdateTracker struct {
	updates *transactional.Map[config.SchemaID, []UpdateEvent]
}

// NewUpdateTracker creates an empty tracker.
func NewUpdateTracker() *UpdateTracker {
	return &UpdateTracker{updates: transactional.NewMap[config.SchemaID, []UpdateEvent]()}
}

// RegisterUpdate records an event. A duplicate event errors unless
// ignoreExisting; an event complementing a pending one cancels it instead
// of being recorded.
func (t *UpdateTracker) RegisterUpdate(event UpdateEvent, ignoreExisting bool) error {
	if t.Contains(event) {
		if ignoreExisting {
			return nil
		}
		return errors.New(errors.ErrCodeDuplicateUpdate, "update event already exists")
	}
	if t.Contains(event.complement()) {
		t.remove(event.complement())
		return nil
	}
	t.add(event)
	return nil
}

// RegisterUpdates records a batch, rejecting it up front if any event is
// already pending and duplicates are not ignored.
func (t *UpdateTracker) RegisterUpdates(events []UpdateEvent, ignoreExisting bool) error {
	if !ignoreExisting {
		for _, e := range events {
			if t.Contains(e) {
				return errors.New(errors.ErrCodeDuplicateUpdate, "duplicate update events in batch")
			}
		}
	}
	for _, e := range events {
		if err := t.RegisterUpdate(e, ignoreExisting); err != nil {
			return err
		}
	}
	return nil
}

// HasUpdates reports whether any events are pending.
func (t *UpdateTracker) HasUpdates() bool {
	for _, events := range t.updates.Inner() {
		if len(events) > 0 {
			return true
		}
	}
	return false
}

// UpdatesForSchema returns the pending events for a schema, removals
// first.
func (t *UpdateTracker) UpdatesForSchema(schemaID config.SchemaID) []UpdateEvent {
	events, _ := t.updates.Get(schemaID)
	sorted := append([]UpdateEvent(nil), events...)
	sortEventsRemovesFirst(sorted)
	return sorted
}

// Contains reports whether the exact event is pending.
func (t *UpdateTracker) Contains(event UpdateEvent) bool {
	events, _ := t.updates.Get(event.SchemaID)
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}

// SyncUpdates drops events already satisfied by freshly imported state:
// adds whose connection now exists and removes whose connection is gone.
func (t *UpdateTracker) SyncUpdates(schemaID config.SchemaID, existing map[dsnp.UserID]struct{}) {
	events, ok := t.updates.Get(schemaID)
	if !ok {
		return
	}
	synced := make([]UpdateEvent, 0, len(events))
	for _, e := range events {
		_, connected := existing[e.UserID]
		if (e.Kind == EventAdd && connected) || (e.Kind == EventRemove && !connected) {
			continue
		}
		synced = append(synced, e)
	}
	if len(synced) != len(events) {
		t.updates.Set(schemaID, synced)
	}
}

func (t *UpdateTracker) remove(event UpdateEvent) {
	events, ok := t.updates.Get(event.SchemaID)
	if !ok {
		return
	}
	kept := make([]UpdateEvent, 0, len(events))
	for _, e := range events {
		if e != event {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		t.updates.Delete(event.SchemaID)
	} else {
		t.updates.Set(event.SchemaID, kept)
	}
}

func (t *UpdateTracker) add(event UpdateEvent) {
	events, _ := t.updates.Get(event.SchemaID)
	appended := make([]UpdateEvent, len(events), len(events)+1)
	copy(appended, events)
	appended = append(appended, event)
	t.updates.Set(event.SchemaID, appended)
}

// Commit makes pending events permanent.
func (t *UpdateTracker) Commit() {
	t.updates.Commit()
}

// Rollback restores the events at the last commit.
func (t *UpdateTracker) Rollback() {
	t.updates.Rollback()
}
