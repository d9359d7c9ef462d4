package models

import (
	"time"
)

// UserCredits holds one balance row per user. All mutations go through
// INSERT ... ON DUPLICATE KEY UPDATE so a single statement is atomic per user.
type UserCredits struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint      `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Balance        int       `gorm:"column:balance;not null;default:0" json:"balance"`
	TotalPurchased int       `gorm:"column:total_purchased;not null;default:0" json:"total_purchased"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (UserCredits) TableName() string {
	return "user_credits"
}
