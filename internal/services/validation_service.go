package services

import (
	"fmt"
	"math"
	"strings"

	"dredd-service/internal/config"
)

// methodAliases collapses marketing-facing currency names onto canonical
// gateway codes. Unrecognized methods fall through lowercased as-is.
var methodAliases = map[string]string{
	"stripe":        "stripe",
	"card":          "stripe",
	"credit-card":   "stripe",
	"bitcoin":       "btc",
	"btc":           "btc",
	"ethereum":      "eth",
	"eth":           "eth",
	"tether":        "usdt",
	"usdt":          "usdt",
	"tether-trc20":  "usdttrc20",
	"usdt-trc20":    "usdttrc20",
	"tether-erc20":  "usdterc20",
	"usdt-erc20":    "usdterc20",
	"tether-bep20":  "usdtbsc",
	"usdt-bep20":    "usdtbsc",
	"usd-coin":      "usdc",
	"usdc":          "usdc",
	"usdc-erc20":    "usdc",
	"litecoin":      "ltc",
	"dogecoin":      "doge",
	"binancecoin":   "bnb",
	"bnb":           "bnb",
	"ripple":        "xrp",
	"cardano":       "ada",
	"solana":        "sol",
	"tron":          "trx",
	"monero":        "xmr",
	"pulsechain":    "pls",
	"pls":           "pls",
	"matic-network": "matic",
	"polygon":       "matic",
}

// NormalizePaymentMethod maps a raw method string to its gateway code.
func NormalizePaymentMethod(method string) string {
	m := strings.ToLower(strings.TrimSpace(method))
	if canonical, ok := methodAliases[m]; ok {
		return canonical
	}
	return m
}

type ValidationService struct {
	Pricing config.PricingConfig
}

func NewValidationService(pricing config.PricingConfig) *ValidationService {
	return &ValidationService{Pricing: pricing}
}

type PaymentRequest struct {
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
	WalletAddress string  `json:"wallet_address"`
}

type ValidatedPayment struct {
	Amount        float64 `json:"amount"`
	Credits       int     `json:"credits"`
	Method        string  `json:"method"`
	WalletAddress string  `json:"wallet_address"`
}

// ValidatePaymentRequest normalizes and bounds-checks a raw payment request.
// A non-empty error slice means the request is invalid. No side effects.
func (s *ValidationService) ValidatePaymentRequest(req PaymentRequest) (ValidatedPayment, []string) {
	var errs []string

	if err := s.ValidateAmount(req.Amount); err != nil {
		errs = append(errs, err.Error())
	}

	method := NormalizePaymentMethod(req.Method)
	if method == "" {
		errs = append(errs, "Payment method is required")
	}

	if len(errs) > 0 {
		return ValidatedPayment{}, errs
	}

	return ValidatedPayment{
		Amount:        req.Amount,
		Credits:       s.CalculateCredits(req.Amount),
		Method:        method,
		WalletAddress: strings.TrimSpace(req.WalletAddress),
	}, nil
}

func (s *ValidationService) ValidateAmount(amount float64) error {
	if amount < s.Pricing.MinAmount || amount > s.Pricing.MaxAmount {
		return fmt.Errorf("Amount must be between $%.2f and $%.2f", s.Pricing.MinAmount, s.Pricing.MaxAmount)
	}
	return nil
}

// CalculateCredits converts a USD amount to credits: floor(amount * rate).
func (s *ValidationService) CalculateCredits(amount float64) int {
	return int(math.Floor(amount * float64(s.Pricing.CreditsPerUSD)))
}
