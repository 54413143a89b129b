package webhook

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Gateway event types the settlement core reacts to. Anything else is
// acknowledged and ignored.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// Envelope is the gateway's webhook body.
type Envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type intentData struct {
	IntentID string `json:"intent_id"`
	Reason   string `json:"reason,omitempty"`
}

// Event is the idempotency ledger. The unique gateway event id makes the
// insert the dedupe check: a second delivery of the same event hits the
// constraint and is acknowledged without reprocessing.
type Event struct {
	ID          string         `gorm:"column:id" json:"id"`
	EventID     string         `gorm:"column:event_id;uniqueIndex" json:"event_id"`
	EventType   string         `gorm:"column:event_type" json:"event_type"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	ProcessedAt *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (Event) TableName() string {
	return "webhook_events"
}
