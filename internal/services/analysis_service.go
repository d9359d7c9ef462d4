package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dredd-service/internal/config"
	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

// AnalysisService runs the paid chat pipeline: deduct credits, check the
// lookaside cache, forward to the workflow, persist history. A workflow
// failure refunds the deducted credits.
type AnalysisService struct {
	DB        *gorm.DB
	Credits   *CreditService
	N8N       *N8NClient
	Pricing   config.PricingConfig
	Retention config.RetentionConfig
}

func NewAnalysisService(db *gorm.DB, credits *CreditService, n8n *N8NClient, pricing config.PricingConfig, retention config.RetentionConfig) *AnalysisService {
	return &AnalysisService{
		DB:        db,
		Credits:   credits,
		N8N:       n8n,
		Pricing:   pricing,
		Retention: retention,
	}
}

type ChatRequest struct {
	Message         string `json:"message" binding:"required"`
	ContractAddress string `json:"contract_address"`
	Chain           string `json:"chain"`
	Mode            string `json:"mode"`
}

// Analyze is the full pipeline for one chat message. Cache hits cost nothing;
// misses deduct cost_per_analysis before the workflow is called.
func (s *AnalysisService) Analyze(ctx context.Context, userID uint, req ChatRequest) (interface{}, error) {
	req.ContractAddress = strings.TrimSpace(req.ContractAddress)
	req.Chain = strings.ToLower(strings.TrimSpace(req.Chain))
	if req.Mode == "" {
		req.Mode = "standard"
	}

	var cacheKey string
	if req.ContractAddress != "" {
		cacheKey = common.AnalysisCacheKey(req.ContractAddress, req.Chain, req.Mode)
		if payload, ok := s.cacheGet(cacheKey); ok {
			return common.NewSuccessResponse(map[string]interface{}{
				"message": payload,
				"cached":  true,
			}, "Analysis complete"), nil
		}
	}

	cost := s.Pricing.CostPerAnalysis
	if err := s.Credits.DeductCredits(userID, cost); err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return common.NewErrorResponse("Insufficient credits", map[string]interface{}{
				"required": cost,
			}, http.StatusPaymentRequired), nil
		}
		return nil, err
	}

	reply, err := s.N8N.Analyze(ctx, AnalysisRequest{
		Message:         req.Message,
		ContractAddress: req.ContractAddress,
		Chain:           req.Chain,
		Mode:            req.Mode,
		UserID:          userID,
	})
	if err != nil || reply.Kind == ReplyUnrecognized {
		if refundErr := s.Credits.AddCredits(userID, cost); refundErr != nil {
			log.Printf("credit refund failed for user %d: %v", userID, refundErr)
		}
		if err != nil {
			log.Printf("analysis failed for user %d: %v", userID, err)
			return common.NewErrorResponse("Analysis service unavailable, credits refunded", nil, http.StatusBadGateway), nil
		}
		return common.NewErrorResponse("Analysis returned an unreadable response, credits refunded", nil, http.StatusBadGateway), nil
	}

	s.recordHistory(userID, req, reply.Text, cost)
	if cacheKey != "" {
		s.cachePut(cacheKey, reply.Text)
	}

	return common.NewSuccessResponse(map[string]interface{}{
		"message": reply.Text,
		"cached":  false,
		"shape":   reply.Kind.String(),
	}, "Analysis complete"), nil
}

// History pages a user's non-expired analyses, newest first.
func (s *AnalysisService) History(userID uint, page, limit int) ([]models.Analysis, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	q := s.DB.Model(&models.Analysis{}).
		Where("user_id = ? AND expires_at > ?", userID, time.Now())

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Analysis
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}

// verdictLabels in match order: the longer label first, or every guilty
// verdict would also match "GUILTY".
var verdictLabels = []string{"NOT GUILTY", "GUILTY"}

// verdictFromReply pulls the verdict keyword out of the reply text. Empty
// when the reply carries no verdict (conversational answers, errors).
func verdictFromReply(text string) string {
	upper := strings.ToUpper(text)
	for _, label := range verdictLabels {
		if strings.Contains(upper, label) {
			return label
		}
	}
	return ""
}

func (s *AnalysisService) recordHistory(userID uint, req ChatRequest, response string, cost int) {
	paid, err := s.Credits.HasPurchased(userID)
	if err != nil {
		log.Printf("retention check failed for user %d: %v", userID, err)
	}

	days := s.Retention.FreeDays
	if paid {
		days = s.Retention.PaidDays
	}

	row := models.Analysis{
		UserID:      userID,
		Contract:    req.ContractAddress,
		Chain:       req.Chain,
		Mode:        req.Mode,
		Verdict:     verdictFromReply(response),
		Response:    response,
		CreditsUsed: cost,
		ExpiresAt:   time.Now().AddDate(0, 0, days),
	}
	if err := s.DB.Create(&row).Error; err != nil {
		log.Printf("failed to store analysis history for user %d: %v", userID, err)
	}
}

func (s *AnalysisService) cacheGet(key string) (string, bool) {
	var entry models.AnalysisCache
	err := s.DB.Where("cache_key = ?", key).First(&entry).Error
	if err != nil {
		return "", false
	}
	if time.Now().After(entry.ExpiresAt) {
		s.DB.Delete(&entry)
		return "", false
	}
	return entry.Payload, true
}

func (s *AnalysisService) cachePut(key, payload string) {
	ttl := time.Duration(s.Retention.CacheTTL) * time.Minute
	entry := models.AnalysisCache{
		CacheKey:  key,
		Payload:   payload,
		ExpiresAt: time.Now().Add(ttl),
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"payload":    payload,
			"expires_at": entry.ExpiresAt,
		}),
	}).Create(&entry).Error
	if err != nil {
		log.Printf("analysis cache write failed: %v", err)
	}
}
