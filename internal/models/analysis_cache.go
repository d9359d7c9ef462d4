package models

import (
	"time"
)

// AnalysisCache is a lookaside cache keyed by md5(contract+chain+mode).
// Entries expire lazily on read; a cron sweep deletes the leftovers.
type AnalysisCache struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CacheKey  string    `gorm:"column:cache_key;size:32;not null;uniqueIndex" json:"cache_key"`
	Payload   string    `gorm:"column:payload;type:longtext;not null" json:"payload"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AnalysisCache) TableName() string {
	return "analysis_cache"
}
