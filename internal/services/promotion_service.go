package services

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

// PromotionService manages the promoted-token marketplace. Lifecycle is
// pending -> active -> expired | cancelled; only date-bounded active entries
// are publicly visible.
type PromotionService struct {
	DB *gorm.DB
}

func NewPromotionService(db *gorm.DB) *PromotionService {
	return &PromotionService{DB: db}
}

type PromotionRequest struct {
	TokenName   string    `json:"token_name" binding:"required"`
	Symbol      string    `json:"symbol" binding:"required"`
	Contract    string    `json:"contract" binding:"required"`
	Chain       string    `json:"chain" binding:"required"`
	Description string    `json:"description"`
	Website     string    `json:"website"`
	Telegram    string    `json:"telegram"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
}

// Create stores a new promotion in pending state, awaiting approval.
func (s *PromotionService) Create(userID uint, req PromotionRequest) (interface{}, error) {
	if !req.EndDate.After(req.StartDate) {
		return common.NewErrorResponse("End date must be after start date", nil, http.StatusBadRequest), nil
	}

	promo := models.Promotion{
		UserID:      userID,
		TokenName:   strings.TrimSpace(req.TokenName),
		Symbol:      strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Contract:    strings.TrimSpace(req.Contract),
		Chain:       strings.ToLower(strings.TrimSpace(req.Chain)),
		Description: req.Description,
		Website:     req.Website,
		Telegram:    req.Telegram,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      models.PromotionPending,
	}
	if err := s.DB.Create(&promo).Error; err != nil {
		return nil, err
	}

	return common.NewSuccessResponse(promo, "Promotion submitted for approval"), nil
}

// Approve moves pending -> active. Any other starting state is rejected.
func (s *PromotionService) Approve(promotionID uint) error {
	return s.transition(promotionID, models.PromotionPending, models.PromotionActive)
}

// Cancel works from pending or active; terminal states stay terminal.
func (s *PromotionService) Cancel(promotionID uint, userID uint) error {
	res := s.DB.Model(&models.Promotion{}).
		Where("id = ? AND user_id = ? AND status IN ?", promotionID, userID,
			[]string{models.PromotionPending, models.PromotionActive}).
		Update("status", models.PromotionCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("promotion %d is not cancellable", promotionID)
	}
	return nil
}

// Update edits an owner's promotion while it is still pending or active.
// Terminal promotions are immutable. Existence is checked with a fetch
// rather than RowsAffected: MySQL reports rows changed, not rows matched,
// so a resubmission of identical values would otherwise look like a miss.
func (s *PromotionService) Update(promotionID uint, userID uint, req PromotionRequest) (interface{}, error) {
	if !req.EndDate.After(req.StartDate) {
		return common.NewErrorResponse("End date must be after start date", nil, http.StatusBadRequest), nil
	}

	var promo models.Promotion
	err := s.DB.Where("id = ? AND user_id = ? AND status IN ?", promotionID, userID,
		[]string{models.PromotionPending, models.PromotionActive}).
		First(&promo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NewErrorResponse("Promotion not found or no longer editable", nil, http.StatusNotFound), nil
	}
	if err != nil {
		return nil, err
	}

	err = s.DB.Model(&promo).Updates(map[string]interface{}{
		"token_name":  strings.TrimSpace(req.TokenName),
		"symbol":      strings.ToUpper(strings.TrimSpace(req.Symbol)),
		"contract":    strings.TrimSpace(req.Contract),
		"chain":       strings.ToLower(strings.TrimSpace(req.Chain)),
		"description": req.Description,
		"website":     req.Website,
		"telegram":    req.Telegram,
		"start_date":  req.StartDate,
		"end_date":    req.EndDate,
	}).Error
	if err != nil {
		return nil, err
	}

	s.DB.First(&promo, promotionID)
	return common.NewSuccessResponse(promo, "Promotion updated"), nil
}

// Delete removes an owner's promotion outright. The counters go with it; a
// cancelled promotion keeps its row, a deleted one does not.
func (s *PromotionService) Delete(promotionID uint, userID uint) error {
	res := s.DB.Where("id = ? AND user_id = ?", promotionID, userID).
		Delete(&models.Promotion{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *PromotionService) transition(promotionID uint, from, to string) error {
	res := s.DB.Model(&models.Promotion{}).
		Where("id = ? AND status = ?", promotionID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("promotion %d is not %s", promotionID, from)
	}
	return nil
}

// ListActive returns the publicly visible promotions: active status and
// inside their date window.
func (s *PromotionService) ListActive() ([]models.Promotion, error) {
	now := time.Now()
	var promos []models.Promotion
	err := s.DB.Where("status = ? AND start_date <= ? AND end_date > ?",
		models.PromotionActive, now, now).
		Order("created_at DESC").
		Find(&promos).Error
	return promos, err
}

// ListByUser returns all of a user's promotions regardless of state.
func (s *PromotionService) ListByUser(userID uint) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&promos).Error
	return promos, err
}

// RecordClick bumps the public click counter. Unauthenticated and atomic.
func (s *PromotionService) RecordClick(promotionID uint) error {
	return s.bumpCounter(promotionID, "clicks")
}

// RecordImpression bumps the public impression counter.
func (s *PromotionService) RecordImpression(promotionID uint) error {
	return s.bumpCounter(promotionID, "impressions")
}

func (s *PromotionService) bumpCounter(promotionID uint, column string) error {
	res := s.DB.Model(&models.Promotion{}).
		Where("id = ? AND status = ?", promotionID, models.PromotionActive).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ExpireOverdue moves active promotions past their end date to expired.
// Called from the hourly sweep.
func (s *PromotionService) ExpireOverdue() (int64, error) {
	res := s.DB.Model(&models.Promotion{}).
		Where("status = ? AND end_date <= ?", models.PromotionActive, time.Now()).
		Update("status", models.PromotionExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("expired %d overdue promotions", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
