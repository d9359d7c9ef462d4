package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dredd-service/internal/config"
)

func testPricing() config.PricingConfig {
	return config.PricingConfig{
		CreditsPerUSD:   10,
		MinAmount:       1.00,
		MaxAmount:       100.00,
		CostPerAnalysis: 10,
	}
}

func TestNormalizePaymentMethod(t *testing.T) {
	cases := map[string]string{
		"bitcoin":      "btc",
		"Bitcoin":      "btc",
		"  BTC  ":      "btc",
		"tether-trc20": "usdttrc20",
		"USDC":         "usdc",
		"usd-coin":     "usdc",
		"card":         "stripe",
		"credit-card":  "stripe",
		"pulsechain":   "pls",
		"polygon":      "matic",
	}
	for in, want := range cases {
		if got := NormalizePaymentMethod(in); got != want {
			t.Errorf("NormalizePaymentMethod(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizePaymentMethod_UnknownPassesThrough(t *testing.T) {
	// Unknown methods are not rejected here; they fall through lowercased
	// and the gateway decides whether it can take them.
	assert.Equal(t, "weirdcoin", NormalizePaymentMethod("WeirdCoin"))
	assert.Equal(t, "", NormalizePaymentMethod("   "))
}

func TestValidateAmount_Bounds(t *testing.T) {
	svc := NewValidationService(testPricing())

	for _, amount := range []float64{1.00, 1.01, 50, 99.99, 100.00} {
		if err := svc.ValidateAmount(amount); err != nil {
			t.Errorf("ValidateAmount(%v) unexpected error: %v", amount, err)
		}
	}
	for _, amount := range []float64{0, 0.99, -5, 100.01, 1000} {
		if err := svc.ValidateAmount(amount); err == nil {
			t.Errorf("ValidateAmount(%v) expected error, got nil", amount)
		}
	}
}

func TestValidateAmount_ErrorMessage(t *testing.T) {
	svc := NewValidationService(testPricing())
	err := svc.ValidateAmount(0.50)
	assert.EqualError(t, err, "Amount must be between $1.00 and $100.00")
}

func TestCalculateCredits_Floors(t *testing.T) {
	svc := NewValidationService(testPricing())

	assert.Equal(t, 10, svc.CalculateCredits(1.00))
	assert.Equal(t, 99, svc.CalculateCredits(9.99))
	assert.Equal(t, 250, svc.CalculateCredits(25))
	assert.Equal(t, 1000, svc.CalculateCredits(100.00))
}

func TestValidatePaymentRequest(t *testing.T) {
	svc := NewValidationService(testPricing())

	payment, errs := svc.ValidatePaymentRequest(PaymentRequest{
		Amount: 25,
		Method: "bitcoin",
	})
	assert.Empty(t, errs)
	assert.Equal(t, 25.0, payment.Amount)
	assert.Equal(t, 250, payment.Credits)
	assert.Equal(t, "btc", payment.Method)
}

func TestValidatePaymentRequest_Invalid(t *testing.T) {
	svc := NewValidationService(testPricing())

	_, errs := svc.ValidatePaymentRequest(PaymentRequest{
		Amount: 0.50,
		Method: "",
	})
	assert.Len(t, errs, 2)
}
