package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dredd-service/internal/config"
	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

func TestWalletKeyFor(t *testing.T) {
	cases := map[string]string{
		"usdttrc20": "usdt",
		"usdterc20": "usdt",
		"usdtbsc":   "usdt",
		"usdcmatic": "usdc",
		"etharb":    "eth",
		"btc":       "btc",
		"doge":      "doge",
	}
	for currency, want := range cases {
		if got := WalletKeyFor(currency); got != want {
			t.Errorf("WalletKeyFor(%q) = %q, want %q", currency, got, want)
		}
	}
}

func TestNOWPayments_IPNCreditsOnce(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	credits := NewCreditService(testDB)
	svc := NewNOWPaymentsService(testDB, credits, config.NOWPaymentsConfig{
		IPNSecret: "ipn_secret",
	}, nil)

	userID := uint(601)
	paymentID := fmt.Sprintf("%d", time.Now().UnixNano())

	testDB.Create(&models.Payment{
		PaymentID:   paymentID,
		OrderID:     common.GenerateOrderID(userID),
		UserID:      userID,
		Amount:      10,
		Credits:     100,
		PayCurrency: "usdttrc20",
		Status:      models.NPStatusWaiting,
	})

	sign := func(body []byte) string {
		mac := hmac.New(sha512.New, []byte("ipn_secret"))
		mac.Write(body)
		return hex.EncodeToString(mac.Sum(nil))
	}

	// confirmed credits.
	body := []byte(fmt.Sprintf(`{"payment_id":%s,"payment_status":"confirmed"}`, paymentID))
	assert.NoError(t, svc.HandleIPN(body, sign(body)))

	balance, _ := credits.GetBalance(userID)
	assert.Equal(t, 100, balance)

	// finished arrives later; the credited flag blocks a second credit.
	body = []byte(fmt.Sprintf(`{"payment_id":%s,"payment_status":"finished"}`, paymentID))
	assert.NoError(t, svc.HandleIPN(body, sign(body)))

	balance, _ = credits.GetBalance(userID)
	assert.Equal(t, 100, balance)

	// Redelivery of the same status is deduplicated outright.
	assert.NoError(t, svc.HandleIPN(body, sign(body)))
	balance, _ = credits.GetBalance(userID)
	assert.Equal(t, 100, balance)

	var record models.Payment
	testDB.Where("payment_id = ?", paymentID).First(&record)
	assert.True(t, record.Credited)
	assert.Equal(t, models.NPStatusFinished, record.Status)
}

func TestNOWPayments_IPNRedeliveryAfterFailure(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	credits := NewCreditService(testDB)
	svc := NewNOWPaymentsService(testDB, credits, config.NOWPaymentsConfig{
		IPNSecret: "ipn_secret",
	}, nil)

	userID := uint(603)
	paymentID := fmt.Sprintf("%d", time.Now().UnixNano())

	sign := func(body []byte) string {
		mac := hmac.New(sha512.New, []byte("ipn_secret"))
		mac.Write(body)
		return hex.EncodeToString(mac.Sum(nil))
	}

	// First delivery fails: the payment record does not exist yet.
	body := []byte(fmt.Sprintf(`{"payment_id":%s,"payment_status":"finished"}`, paymentID))
	assert.Error(t, svc.HandleIPN(body, sign(body)))

	testDB.Create(&models.Payment{
		PaymentID:   paymentID,
		OrderID:     common.GenerateOrderID(userID),
		UserID:      userID,
		Amount:      10,
		Credits:     100,
		PayCurrency: "btc",
		Status:      models.NPStatusConfirming,
	})

	// The provider redelivers the same event; a failed first attempt must
	// not be swallowed by the dedup ledger.
	assert.NoError(t, svc.HandleIPN(body, sign(body)))

	balance, _ := credits.GetBalance(userID)
	assert.Equal(t, 100, balance)

	// A third delivery after success is acknowledged without re-crediting.
	assert.NoError(t, svc.HandleIPN(body, sign(body)))
	balance, _ = credits.GetBalance(userID)
	assert.Equal(t, 100, balance)
}

func TestNOWPayments_IPNRejectsBadSignature(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}

	svc := NewNOWPaymentsService(testDB, NewCreditService(testDB), config.NOWPaymentsConfig{
		IPNSecret: "ipn_secret",
	}, nil)

	body := []byte(`{"payment_id":1,"payment_status":"finished"}`)
	assert.Error(t, svc.HandleIPN(body, "not-a-signature"))
}

func TestNOWPayments_TerminalStatusFrozen(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	credits := NewCreditService(testDB)
	svc := NewNOWPaymentsService(testDB, credits, config.NOWPaymentsConfig{
		IPNSecret: "ipn_secret",
	}, nil)

	userID := uint(602)
	paymentID := fmt.Sprintf("%d", time.Now().UnixNano())

	testDB.Create(&models.Payment{
		PaymentID:   paymentID,
		OrderID:     common.GenerateOrderID(userID),
		UserID:      userID,
		Amount:      5,
		Credits:     50,
		PayCurrency: "btc",
		Status:      models.NPStatusExpired,
	})

	sign := func(body []byte) string {
		mac := hmac.New(sha512.New, []byte("ipn_secret"))
		mac.Write(body)
		return hex.EncodeToString(mac.Sum(nil))
	}

	// A late "waiting" after expiry must not resurrect the payment.
	body := []byte(fmt.Sprintf(`{"payment_id":%s,"payment_status":"waiting"}`, paymentID))
	assert.NoError(t, svc.HandleIPN(body, sign(body)))

	var record models.Payment
	testDB.Where("payment_id = ?", paymentID).First(&record)
	assert.Equal(t, models.NPStatusExpired, record.Status)
}
