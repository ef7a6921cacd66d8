package models

import "encoding/json"

// History actions recorded for every mutation.
const (
	HistoryActionCreate     = "create"
	HistoryActionUpdate     = "update"
	HistoryActionDelete     = "delete"
	HistoryActionBulkImport = "bulk_import"
)

// Entity types referenced by history records.
const (
	EntityStudent    = "student"
	EntityAttendance = "attendance"
	EntitySettings   = "settings"
)

// HistoryLog is an append-only audit record of one mutation. Records are only
// removed by scheduled retention pruning, never by normal operation.
type HistoryLog struct {
	ID         string          `db:"id" json:"id"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   string          `db:"entity_id" json:"entityId"`
	Changes    json.RawMessage `db:"changes" json:"changes"`
	Timestamp  int64           `db:"timestamp" json:"timestamp"`
}

// HistoryFilter scopes history listing.
type HistoryFilter struct {
	EntityType string
	EntityID   string
	Page       int
	PageSize   int
}
