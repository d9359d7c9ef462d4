package models

import (
	"time"
)

// Promotion state machine: pending -> active -> expired | cancelled.
const (
	PromotionPending   = "pending"
	PromotionActive    = "active"
	PromotionExpired   = "expired"
	PromotionCancelled = "cancelled"
)

type Promotion struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	TokenName   string    `gorm:"column:token_name;size:100;not null" json:"token_name"`
	Symbol      string    `gorm:"column:symbol;size:20;not null" json:"symbol"`
	Contract    string    `gorm:"column:contract;size:100;not null" json:"contract"`
	Chain       string    `gorm:"column:chain;size:50;not null" json:"chain"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Website     string    `gorm:"column:website;size:255" json:"website"`
	Telegram    string    `gorm:"column:telegram;size:255" json:"telegram"`
	StartDate   time.Time `gorm:"column:start_date;not null" json:"start_date"`
	EndDate     time.Time `gorm:"column:end_date;not null;index" json:"end_date"`
	Status      string    `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	Clicks      int64     `gorm:"column:clicks;not null;default:0" json:"clicks"`
	Impressions int64     `gorm:"column:impressions;not null;default:0" json:"impressions"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Promotion) TableName() string {
	return "promotions"
}
