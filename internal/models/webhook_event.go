package models

import (
	"time"
)

// WebhookEvent deduplicates provider deliveries. Both Stripe and NOWPayments
// deliver at-least-once; the unique (provider, event_id) pair means a replay
// hits a duplicate-key error instead of crediting twice.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider        string     `gorm:"column:provider;size:20;not null;uniqueIndex:ux_webhook_provider_event,priority:1" json:"provider"`
	EventID         string     `gorm:"column:event_id;size:191;not null;uniqueIndex:ux_webhook_provider_event,priority:2" json:"event_id"`
	EventType       string     `gorm:"column:event_type;size:100;not null;index" json:"event_type"`
	Payload         string     `gorm:"column:payload;type:longtext;not null" json:"payload"`
	ProcessedAt     *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"column:processing_error;type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
