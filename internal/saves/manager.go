// Package saves persists named, timestamped snapshots of play sessions to a
// key-value store with capacity-bounded retention and bulk export/import.
package saves

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taleweave/engine/internal/events"
	"github.com/taleweave/engine/internal/session"
)

// KeyPrefix namespaces save entries in the shared store, keeping them clear
// of other subsystems (authored-project storage uses its own prefix).
const KeyPrefix = "taleweave.save."

// SessionKey is the store entry holding the auto-persisted current session.
const SessionKey = "taleweave.session.current"

// DefaultCapacity is the retention bound: oldest saves beyond this count
// are evicted after each save.
const DefaultCapacity = 10

// Record is an immutable snapshot of a session plus derived progress.
type Record struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	GameState     session.Snapshot `json:"gameState"`
	StoryProgress int              `json:"storyProgress"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Stats summarizes the save store.
type Stats struct {
	TotalSaves  int        `json:"totalSaves"`
	TotalSizeKB float64    `json:"totalSizeKB"`
	OldestSave  *time.Time `json:"oldestSave"`
	NewestSave  *time.Time `json:"newestSave"`
}

// Manager owns save persistence against a Store. A nil store means no
// persistent storage is reachable; Save fails with
// *StorageUnavailableError and all read paths degrade to empty results.
type Manager struct {
	store    Store
	capacity int

	// NowFunc supplies record timestamps; tests inject a fixed clock.
	NowFunc func() time.Time
}

// NewManager returns a manager with the default retention capacity.
func NewManager(store Store) *Manager {
	return &Manager{store: store, capacity: DefaultCapacity, NowFunc: time.Now}
}

// SetCapacity overrides the retention bound (minimum 1).
func (m *Manager) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}
	m.capacity = n
}

// Available reports whether a persistent store is reachable.
func (m *Manager) Available(ctx context.Context) bool {
	return m.store != nil && m.store.Ping(ctx) == nil
}

// newSaveID generates a time-ordered unique id: a Unix-milli prefix keeps
// ids sortable by creation time, a uuid fragment avoids collisions between
// near-simultaneous saves.
func (m *Manager) newSaveID() string {
	return fmt.Sprintf("save_%d_%s", m.NowFunc().UnixMilli(), uuid.NewString()[:8])
}

// Save snapshots the session under the given name (defaulted when blank)
// and enforces the retention bound. Returns the new save id.
func (m *Manager) Save(ctx context.Context, name string, snap session.Snapshot) (string, error) {
	if m.store == nil {
		return "", &StorageUnavailableError{}
	}

	now := m.NowFunc()
	if strings.TrimSpace(name) == "" {
		name = "Save " + now.Format("2006-01-02 15:04")
	}

	rec := Record{
		ID:            m.newSaveID(),
		Name:          name,
		GameState:     snap,
		StoryProgress: len(snap.VisitedNodes),
		Timestamp:     now,
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return "", &StorageUnavailableError{Cause: err}
	}
	if err := m.store.Put(ctx, KeyPrefix+rec.ID, raw); err != nil {
		return "", &StorageUnavailableError{Cause: err}
	}

	events.Emit("info", "save.created", "", map[string]interface{}{
		"save_id": rec.ID,
		"name":    rec.Name,
	})

	m.evict(ctx)
	return rec.ID, nil
}

// evict deletes the oldest records (by timestamp) until the store holds at
// most capacity saves. FIFO by age, not LRU.
func (m *Manager) evict(ctx context.Context) {
	records := m.List(ctx) // newest-first
	if len(records) <= m.capacity {
		return
	}
	for _, rec := range records[m.capacity:] {
		if err := m.store.Delete(ctx, KeyPrefix+rec.ID); err != nil {
			events.Emit("warn", "system.error", "save eviction failed", map[string]interface{}{
				"save_id": rec.ID,
				"error":   err.Error(),
			})
		} else {
			events.Emit("info", "save.deleted", "", map[string]interface{}{
				"save_id": rec.ID,
				"reason":  "retention",
			})
		}
	}
}

// Load returns the record with the given id, or nil for missing or
// malformed entries. Never returns an error a caller must branch on; read
// paths degrade.
func (m *Manager) Load(ctx context.Context, id string) *Record {
	if m.store == nil {
		return nil
	}
	raw, err := m.store.Get(ctx, KeyPrefix+id)
	if err != nil || raw == nil {
		return nil
	}
	rec, ok := decodeRecord(raw)
	if !ok {
		return nil
	}
	return &rec
}

// List returns all readable records newest-first, silently skipping
// corrupted entries rather than failing the listing.
func (m *Manager) List(ctx context.Context) []Record {
	if m.store == nil {
		return nil
	}
	entries, err := m.store.List(ctx, KeyPrefix)
	if err != nil {
		events.Emit("warn", "system.error", "save listing failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	records := make([]Record, 0, len(entries))
	for key, raw := range entries {
		rec, ok := decodeRecord(raw)
		if !ok {
			events.Emit("warn", "system.error", "skipping corrupted save", map[string]interface{}{
				"key": key,
			})
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].ID > records[j].ID
		}
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records
}

// Delete removes a save by id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if m.store == nil {
		return &StorageUnavailableError{}
	}
	if err := m.store.Delete(ctx, KeyPrefix+id); err != nil {
		return err
	}
	events.Emit("info", "save.deleted", "", map[string]interface{}{"save_id": id})
	return nil
}

// ExportAll serializes every readable record as a JSON array. This is the
// exact shape ImportAll accepts back, making export/import a round trip.
func (m *Manager) ExportAll(ctx context.Context) (string, error) {
	records := m.List(ctx)
	if records == nil {
		records = []Record{}
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ImportAll re-validates each record's shape and persists the valid ones
// under freshly generated ids (imported ids never collide with existing
// saves). Malformed top-level JSON is an *InvalidFormatError; per-record
// defects are skipped and simply not counted. Returns the imported count.
func (m *Manager) ImportAll(ctx context.Context, raw string) (int, error) {
	if m.store == nil {
		return 0, &StorageUnavailableError{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return 0, &InvalidFormatError{Reason: fmt.Sprintf("expected a JSON array of save records: %v", err)}
	}

	imported := 0
	for _, item := range items {
		rec, ok := decodeRecord(item)
		if !ok {
			continue
		}
		rec.ID = m.newSaveID()
		encoded, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if err := m.store.Put(ctx, KeyPrefix+rec.ID, encoded); err != nil {
			return imported, &StorageUnavailableError{Cause: err}
		}
		imported++
	}

	events.Emit("info", "save.imported", "", map[string]interface{}{"count": imported})
	return imported, nil
}

// Stats sums serialized sizes and finds the age extrema. Both extrema are
// nil when no saves exist.
func (m *Manager) Stats(ctx context.Context) Stats {
	var st Stats
	if m.store == nil {
		return st
	}
	entries, err := m.store.List(ctx, KeyPrefix)
	if err != nil {
		return st
	}

	var totalBytes int
	for _, raw := range entries {
		rec, ok := decodeRecord(raw)
		if !ok {
			continue
		}
		totalBytes += len(raw)
		st.TotalSaves++
		ts := rec.Timestamp
		if st.OldestSave == nil || ts.Before(*st.OldestSave) {
			st.OldestSave = &ts
		}
		if st.NewestSave == nil || ts.After(*st.NewestSave) {
			st.NewestSave = &ts
		}
	}
	st.TotalSizeKB = float64(totalBytes) / 1024
	return st
}

// PersistSession writes the auto-save of the current session.
func (m *Manager) PersistSession(ctx context.Context, snap session.Snapshot) error {
	if m.store == nil {
		return &StorageUnavailableError{}
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return m.store.Put(ctx, SessionKey, raw)
}

// RestoreSession reads the auto-saved session, or nil when absent or
// malformed.
func (m *Manager) RestoreSession(ctx context.Context) *session.Snapshot {
	if m.store == nil {
		return nil
	}
	raw, err := m.store.Get(ctx, SessionKey)
	if err != nil || raw == nil {
		return nil
	}
	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil
	}
	if snap.CurrentNodeID == "" {
		return nil
	}
	return &snap
}

// DropSession purges the auto-persisted session entry so a later process
// start cannot resurrect it. Storage errors are logged and swallowed.
func (m *Manager) DropSession(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.store.Delete(ctx, SessionKey); err != nil {
		events.Emit("warn", "system.error", "failed to purge persisted session", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// ClearSession resets the session to Uninitialized and purges its persisted
// entry. Guaranteed never to fail: storage errors are logged and swallowed
// so a corrupted session can always be forced back to a clean state.
func (m *Manager) ClearSession(ctx context.Context, s *session.State) {
	s.Restart()
	m.DropSession(ctx)
	events.Emit("info", "session.cleared", "", nil)
}

// decodeRecord shape-validates one serialized record: an id, a name field,
// a gameState with a string currentNodeId and an array visitedNodes, and a
// timestamp. Anything else is rejected.
func decodeRecord(raw []byte) (Record, bool) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false
	}
	if rec.ID == "" || rec.Name == "" || rec.GameState.CurrentNodeID == "" {
		return Record{}, false
	}
	if rec.Timestamp.IsZero() {
		return Record{}, false
	}
	if rec.GameState.VisitedNodes == nil {
		return Record{}, false
	}
	return rec, true
}
