package models

import (
	"time"
)

// Analysis is one completed chat analysis. ExpiresAt depends on whether the
// user has ever purchased credits (paid retention window vs free).
type Analysis struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Contract    string    `gorm:"column:contract;size:100;not null" json:"contract"`
	Chain       string    `gorm:"column:chain;size:50;not null" json:"chain"`
	Mode        string    `gorm:"column:mode;size:20;not null" json:"mode"`
	Verdict     string    `gorm:"column:verdict;size:50" json:"verdict"`
	Response    string    `gorm:"column:response;type:longtext" json:"response"`
	CreditsUsed int       `gorm:"column:credits_used;not null;default:0" json:"credits_used"`
	ExpiresAt   time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Analysis) TableName() string {
	return "analyses"
}
