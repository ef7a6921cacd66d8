package models

// Notification severities.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// Notification is a durable user-facing message. Failed mutations are
// recorded here so they remain readable after the triggering UI is gone.
type Notification struct {
	ID        string `db:"id" json:"id"`
	Type      string `db:"type" json:"type"`
	Title     string `db:"title" json:"title"`
	Message   string `db:"message" json:"message"`
	Timestamp int64  `db:"timestamp" json:"timestamp"`
	Read      bool   `db:"read" json:"read"`
}
