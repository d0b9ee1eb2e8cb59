package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
  zoyktech_callback_events = LOG of every webhook / sweep status check
  - many rows per transaction
  - keeps raw headers + payload for debugging and replay
*/

type CallbackEvent struct {
	CallbackEventID uuid.UUID `gorm:"column:callback_event_id;type:uuid;primaryKey" json:"callback_event_id"`

	CallbackEventProviderOrderID *string             `gorm:"column:callback_event_provider_order_id;type:varchar(100);index" json:"callback_event_provider_order_id"`
	CallbackEventSource          CallbackEventSource `gorm:"column:callback_event_source;type:varchar(16);not null" json:"callback_event_source"`

	CallbackEventHeaders   datatypes.JSON `gorm:"column:callback_event_headers;type:jsonb" json:"callback_event_headers,omitempty"`
	CallbackEventPayload   datatypes.JSON `gorm:"column:callback_event_payload;type:jsonb" json:"callback_event_payload"`
	CallbackEventSignature *string        `gorm:"column:callback_event_signature" json:"callback_event_signature"`

	CallbackEventNormalizedStatus *TransactionStatus   `gorm:"column:callback_event_normalized_status;type:varchar(20)" json:"callback_event_normalized_status"`
	CallbackEventOutcome          CallbackEventOutcome `gorm:"column:callback_event_outcome;type:varchar(20);not null;index" json:"callback_event_outcome"`
	CallbackEventError            *string              `gorm:"column:callback_event_error" json:"callback_event_error"`

	CallbackEventReceivedAt  time.Time  `gorm:"column:callback_event_received_at;not null;index" json:"callback_event_received_at"`
	CallbackEventProcessedAt *time.Time `gorm:"column:callback_event_processed_at" json:"callback_event_processed_at"`
}

func (CallbackEvent) TableName() string {
	return "zoyktech_callback_events"
}

func (e *CallbackEvent) BeforeCreate(tx *gorm.DB) error {
	if e.CallbackEventID == uuid.Nil {
		e.CallbackEventID = uuid.New()
	}
	if e.CallbackEventReceivedAt.IsZero() {
		e.CallbackEventReceivedAt = time.Now()
	}
	return nil
}
