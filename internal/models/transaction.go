package models

import (
	"time"
)

// Transaction statuses. A transaction makes at most one terminal move out of
// pending; settlement code enforces this with a guarded UPDATE.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
	StatusExpired   = "expired"
)

type Transaction struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID       string    `gorm:"column:transaction_id;size:64;not null;uniqueIndex" json:"transaction_id"`
	UserID              uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Amount              float64   `gorm:"column:amount;type:decimal(10,2);not null" json:"amount"`
	Credits             int       `gorm:"column:credits;not null" json:"credits"`
	PaymentMethod       string    `gorm:"column:payment_method;size:50;not null;index" json:"payment_method"`
	Chain               string    `gorm:"column:chain;size:50" json:"chain"`
	TxHash              *string   `gorm:"column:tx_hash;size:100;uniqueIndex" json:"tx_hash,omitempty"`
	StripePaymentIntent string    `gorm:"column:stripe_payment_intent;size:255" json:"stripe_payment_intent"`
	ClientSecret        string    `gorm:"column:client_secret;size:255" json:"-"`
	PayAddress          string    `gorm:"column:pay_address;size:100" json:"pay_address"`
	PayAmountWei        string    `gorm:"column:pay_amount_wei;size:80" json:"pay_amount_wei"`
	Status              string    `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	Metadata            string    `gorm:"column:metadata;type:longtext" json:"metadata"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
