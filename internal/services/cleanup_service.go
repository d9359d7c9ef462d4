package services

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"dredd-service/internal/models"
)

// Pending transactions untouched for this long are expired by the sweep; the
// gateways will not complete them after the provider-side window anyway.
const stalePendingAge = 24 * time.Hour

// CleanupService owns the scheduled sweeps: promotion expiry, analysis cache
// purge, history retention and stale pending transactions.
type CleanupService struct {
	DB         *gorm.DB
	Promotions *PromotionService
}

func NewCleanupService(db *gorm.DB, promotions *PromotionService) *CleanupService {
	return &CleanupService{DB: db, Promotions: promotions}
}

// StartScheduler registers the sweeps and starts the cron runner. Hourly for
// things users see quickly, daily for retention.
func (s *CleanupService) StartScheduler() *cron.Cron {
	c := cron.New()

	c.AddFunc("@hourly", func() {
		if _, err := s.Promotions.ExpireOverdue(); err != nil {
			log.Printf("promotion expiry sweep failed: %v", err)
		}
		if err := s.PurgeExpiredCache(); err != nil {
			log.Printf("cache purge failed: %v", err)
		}
		if err := s.ExpireStalePending(); err != nil {
			log.Printf("stale pending sweep failed: %v", err)
		}
	})

	c.AddFunc("@daily", func() {
		if err := s.PurgeExpiredAnalyses(); err != nil {
			log.Printf("analysis retention sweep failed: %v", err)
		}
	})

	c.Start()
	log.Println("cleanup scheduler started")
	return c
}

// PurgeExpiredCache deletes lookaside entries past their TTL.
func (s *CleanupService) PurgeExpiredCache() error {
	res := s.DB.Where("expires_at <= ?", time.Now()).Delete(&models.AnalysisCache{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("purged %d expired cache entries", res.RowsAffected)
	}
	return nil
}

// PurgeExpiredAnalyses deletes history rows past their retention window.
func (s *CleanupService) PurgeExpiredAnalyses() error {
	res := s.DB.Where("expires_at <= ?", time.Now()).Delete(&models.Analysis{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("purged %d expired analyses", res.RowsAffected)
	}
	return nil
}

// ExpireStalePending marks abandoned pending transactions expired so they
// stop showing as payable in the dashboard.
func (s *CleanupService) ExpireStalePending() error {
	cutoff := time.Now().Add(-stalePendingAge)
	res := s.DB.Model(&models.Transaction{}).
		Where("status = ? AND created_at <= ?", models.StatusPending, cutoff).
		Update("status", models.StatusExpired)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("expired %d stale pending transactions", res.RowsAffected)
	}
	return nil
}
