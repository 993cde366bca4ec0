package models

import "time"

// EntitySyncState is the durable "last synced" state per (connector, entity)
// pair. The conflict decision depends entirely on this being race-free, so it
// is an explicit table rather than ad-hoc fields on the entity.
type EntitySyncState struct {
	ConnectorID      int64      `db:"connector_id"`
	EntityID         int64      `db:"entity_id"`
	ExternalID       string     `db:"external_id"`
	LastSyncedValue  string     `db:"last_synced_value"`
	LastSyncedAt     time.Time  `db:"last_synced_at"`
	ManuallyEditedAt *time.Time `db:"manually_edited_at"`
}

// ManuallyEditedSinceSync reports whether a human touched the entity after the
// last sync. Never-synced entities are by definition untouched.
func (s *EntitySyncState) ManuallyEditedSinceSync() bool {
	if s == nil || s.ManuallyEditedAt == nil {
		return false
	}
	return s.ManuallyEditedAt.After(s.LastSyncedAt)
}
