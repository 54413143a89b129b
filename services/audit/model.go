package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Entry is an append-only record of a settlement state change. Rows are
// written inside the same transaction as the change they describe and are
// never updated afterwards.
type Entry struct {
	ID        string         `gorm:"column:id" json:"entry_id"`
	UserID    string         `gorm:"column:user_id" json:"user_id"`
	EventType string         `gorm:"column:event_type" json:"event_type"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (Entry) TableName() string {
	return "audit_entries"
}
