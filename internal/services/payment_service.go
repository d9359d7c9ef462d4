package services

import (
	"context"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"dredd-service/internal/config"
	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

// PaymentService routes a validated purchase to the gateway that can take it:
// card payments to Stripe, chains we run a wallet on to the direct-transfer
// path, everything else to NOWPayments.
type PaymentService struct {
	DB          *gorm.DB
	Validation  *ValidationService
	Stripe      *StripeService
	NOWPayments *NOWPaymentsService
	Chain       *ChainPaymentService
	Chains      map[string]config.ChainConfig
}

func NewPaymentService(db *gorm.DB, validation *ValidationService, stripe *StripeService, np *NOWPaymentsService, chain *ChainPaymentService, chains map[string]config.ChainConfig) *PaymentService {
	return &PaymentService{
		DB:          db,
		Validation:  validation,
		Stripe:      stripe,
		NOWPayments: np,
		Chain:       chain,
		Chains:      chains,
	}
}

// CreatePayment validates the raw request and dispatches it.
func (s *PaymentService) CreatePayment(ctx context.Context, userID uint, req PaymentRequest) (interface{}, error) {
	payment, errs := s.Validation.ValidatePaymentRequest(req)
	if len(errs) > 0 {
		return common.NewErrorResponse(strings.Join(errs, "; "), nil, http.StatusBadRequest), nil
	}

	if payment.Method == "stripe" {
		return s.Stripe.CreatePaymentIntent(userID, payment)
	}

	if chain, ok := s.chainForMethod(payment.Method); ok {
		return s.Chain.CreatePayment(ctx, userID, chain, payment)
	}

	return s.NOWPayments.CreatePayment(userID, payment)
}

// chainForMethod matches a gateway code against the configured direct-transfer
// chains by native symbol. A method like "pls" resolves to the pulsechain
// entry; anything without a configured chain goes through NOWPayments.
func (s *PaymentService) chainForMethod(method string) (string, bool) {
	for name, cfg := range s.Chains {
		if strings.EqualFold(cfg.Symbol, method) {
			return name, true
		}
	}
	return "", false
}

// GetTransaction returns a user's transaction by its public id.
func (s *PaymentService) GetTransaction(userID uint, transactionID string) (*models.Transaction, error) {
	var trx models.Transaction
	err := s.DB.Where("transaction_id = ? AND user_id = ?", transactionID, userID).First(&trx).Error
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

// ListTransactions pages a user's purchase history, newest first.
func (s *PaymentService) ListTransactions(userID uint, page, limit int) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := s.DB.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var trxs []models.Transaction
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&trxs).Error
	return trxs, total, err
}
