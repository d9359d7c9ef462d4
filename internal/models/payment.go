package models

import (
	"time"
)

// NOWPayments payment lifecycle as reported by the IPN.
const (
	NPStatusWaiting       = "waiting"
	NPStatusConfirming    = "confirming"
	NPStatusConfirmed     = "confirmed"
	NPStatusSending       = "sending"
	NPStatusPartiallyPaid = "partially_paid"
	NPStatusFinished      = "finished"
	NPStatusFailed        = "failed"
	NPStatusRefunded      = "refunded"
	NPStatusExpired       = "expired"
)

// Payment is the NOWPayments-specific record. UserID is an explicit column;
// the order_id string is an opaque display reference, never parsed.
type Payment struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID   string    `gorm:"column:payment_id;size:64;not null;uniqueIndex" json:"payment_id"`
	OrderID     string    `gorm:"column:order_id;size:100;not null;index" json:"order_id"`
	UserID      uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Amount      float64   `gorm:"column:amount;type:decimal(10,2);not null" json:"amount"`
	Credits     int       `gorm:"column:credits;not null" json:"credits"`
	PayCurrency string    `gorm:"column:pay_currency;size:30;not null" json:"pay_currency"`
	PayAddress  string    `gorm:"column:pay_address;size:120" json:"pay_address"`
	PayAmount   float64   `gorm:"column:pay_amount;type:decimal(30,12)" json:"pay_amount"`
	Status      string    `gorm:"column:status;size:20;not null;default:waiting;index" json:"status"`
	Credited    bool      `gorm:"column:credited;not null;default:false" json:"credited"`
	PackageData string    `gorm:"column:package_data;type:longtext" json:"package_data"`
	PaymentData string    `gorm:"column:payment_data;type:longtext" json:"payment_data"`
	WebhookData string    `gorm:"column:webhook_data;type:longtext" json:"webhook_data"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsTerminal reports whether no further IPN transitions are expected.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case NPStatusFinished, NPStatusFailed, NPStatusRefunded, NPStatusExpired:
		return true
	}
	return false
}
