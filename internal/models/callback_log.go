package models

import (
	"time"
)

// CallbackLog is the audit trail for every webhook and verification callback,
// kept regardless of whether processing succeeded.
type CallbackLog struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider      string    `gorm:"column:provider;size:50;not null;index" json:"provider"`
	Request       string    `gorm:"column:request;type:longtext" json:"request"`
	Response      string    `gorm:"column:response;type:longtext" json:"response"`
	Status        int       `gorm:"column:status;default:0" json:"status"`
	TransactionID string    `gorm:"column:transaction_id;size:100;index" json:"transaction_id"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CallbackLog) TableName() string {
	return "callback_logs"
}
