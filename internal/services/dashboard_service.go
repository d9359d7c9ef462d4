package services

import (
	"time"

	"gorm.io/gorm"

	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

// DashboardService aggregates the per-user dashboard and the admin summary.
type DashboardService struct {
	DB      *gorm.DB
	Credits *CreditService
}

func NewDashboardService(db *gorm.DB, credits *CreditService) *DashboardService {
	return &DashboardService{DB: db, Credits: credits}
}

// UserDashboard returns balance, lifetime purchases, recent analyses and
// recent transactions for one user.
func (s *DashboardService) UserDashboard(userID uint) (interface{}, error) {
	balance, err := s.Credits.GetBalance(userID)
	if err != nil {
		return nil, err
	}

	var ledger models.UserCredits
	s.DB.Where("user_id = ?", userID).First(&ledger)

	var analyses []models.Analysis
	if err := s.DB.Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Order("created_at DESC").
		Limit(10).
		Find(&analyses).Error; err != nil {
		return nil, err
	}

	var transactions []models.Transaction
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(10).
		Find(&transactions).Error; err != nil {
		return nil, err
	}

	var analysisCount int64
	s.DB.Model(&models.Analysis{}).Where("user_id = ?", userID).Count(&analysisCount)

	return common.NewSuccessResponse(map[string]interface{}{
		"balance":             balance,
		"total_purchased":     ledger.TotalPurchased,
		"total_analyses":      analysisCount,
		"recent_analyses":     analyses,
		"recent_transactions": transactions,
	}, "Dashboard data"), nil
}

// AdminSummary is the operator view: volumes, credit totals and gateway
// breakdown over the trailing 30 days.
func (s *DashboardService) AdminSummary() (interface{}, error) {
	since := time.Now().AddDate(0, 0, -30)

	var userCount int64
	s.DB.Model(&models.User{}).Count(&userCount)

	var completedCount int64
	s.DB.Model(&models.Transaction{}).
		Where("status = ?", models.StatusCompleted).
		Count(&completedCount)

	var revenue float64
	s.DB.Model(&models.Transaction{}).
		Where("status = ? AND created_at >= ?", models.StatusCompleted, since).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&revenue)

	var creditsIssued int64
	s.DB.Model(&models.UserCredits{}).
		Select("COALESCE(SUM(total_purchased), 0)").
		Scan(&creditsIssued)

	var analysisCount int64
	s.DB.Model(&models.Analysis{}).
		Where("created_at >= ?", since).
		Count(&analysisCount)

	type methodRow struct {
		PaymentMethod string  `json:"payment_method"`
		Count         int64   `json:"count"`
		Total         float64 `json:"total"`
	}
	var byMethod []methodRow
	s.DB.Model(&models.Transaction{}).
		Where("status = ? AND created_at >= ?", models.StatusCompleted, since).
		Select("payment_method, COUNT(*) as count, COALESCE(SUM(amount), 0) as total").
		Group("payment_method").
		Scan(&byMethod)

	var activePromos int64
	s.DB.Model(&models.Promotion{}).
		Where("status = ?", models.PromotionActive).
		Count(&activePromos)

	return common.NewSuccessResponse(map[string]interface{}{
		"users":              userCount,
		"completed_payments": completedCount,
		"revenue_30d":        revenue,
		"credits_issued":     creditsIssued,
		"analyses_30d":       analysisCount,
		"by_method_30d":      byMethod,
		"active_promotions":  activePromos,
	}, "Summary"), nil
}
