package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dredd-service/internal/config"
	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

// NOTE: These tests require a running MySQL instance via DATABASE_URL.

var testDB *gorm.DB

func setup() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Println("Skipping DB tests: DATABASE_URL not set")
		return
	}

	var err error
	testDB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return
	}

	testDB.AutoMigrate(
		&models.UserCredits{},
		&models.Transaction{},
		&models.Payment{},
		&models.WebhookEvent{},
		&models.CallbackLog{},
		&models.Promotion{},
		&models.Analysis{},
		&models.AnalysisCache{},
	)
}

func cleanup() {
	if testDB != nil {
		testDB.Exec("DELETE FROM user_credits")
		testDB.Exec("DELETE FROM transactions")
		testDB.Exec("DELETE FROM payments")
		testDB.Exec("DELETE FROM webhook_events")
		testDB.Exec("DELETE FROM callback_logs")
		testDB.Exec("DELETE FROM promotions")
		testDB.Exec("DELETE FROM analyses")
		testDB.Exec("DELETE FROM analysis_cache")
	}
}

func TestMain(m *testing.M) {
	setup()
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func TestCreditLedger_AddThenGet(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	svc := NewCreditService(testDB)
	userID := uint(501)

	before, err := svc.GetBalance(userID)
	assert.NoError(t, err)

	assert.NoError(t, svc.AddPurchasedCredits(nil, userID, 250))

	after, err := svc.GetBalance(userID)
	assert.NoError(t, err)
	assert.Equal(t, before+250, after)

	purchased, err := svc.HasPurchased(userID)
	assert.NoError(t, err)
	assert.True(t, purchased)
}

func TestCreditLedger_DeductGuard(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	svc := NewCreditService(testDB)
	userID := uint(502)

	assert.NoError(t, svc.AddCredits(userID, 30))
	assert.NoError(t, svc.DeductCredits(userID, 10))

	err := svc.DeductCredits(userID, 100)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	balance, _ := svc.GetBalance(userID)
	assert.Equal(t, 20, balance)
}

func TestCreditLedger_DeductMissingUser(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}

	svc := NewCreditService(testDB)
	err := svc.DeductCredits(999999, 10)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestSettleTransaction_ExactlyOnce(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	credits := NewCreditService(testDB)
	userID := uint(503)
	trxID := "TEST_" + common.GenerateTrxNo()

	testDB.Create(&models.Transaction{
		TransactionID: trxID,
		UserID:        userID,
		Amount:        25,
		Credits:       250,
		PaymentMethod: "stripe",
		Status:        models.StatusPending,
	})

	trx, err := SettleTransaction(testDB, credits, trxID, "")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, trx.Status)

	// Duplicate delivery: no second credit.
	_, err = SettleTransaction(testDB, credits, trxID, "")
	assert.ErrorIs(t, err, ErrAlreadySettled)

	balance, _ := credits.GetBalance(userID)
	assert.Equal(t, 250, balance)
}

func TestWebhookEvent_Dedup(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	process, err := RecordWebhookEvent(testDB, "stripe", "evt_test_1", "payment_intent.succeeded", "{}")
	assert.NoError(t, err)
	assert.True(t, process)

	// Redelivery before the first attempt finished: still processable.
	process, err = RecordWebhookEvent(testDB, "stripe", "evt_test_1", "payment_intent.succeeded", "{}")
	assert.NoError(t, err)
	assert.True(t, process)

	// After a successful outcome the event is done for good.
	MarkWebhookProcessed(testDB, "stripe", "evt_test_1", nil)
	process, err = RecordWebhookEvent(testDB, "stripe", "evt_test_1", "payment_intent.succeeded", "{}")
	assert.NoError(t, err)
	assert.False(t, process)

	// A failed outcome leaves the event open so redelivery retries it.
	process, err = RecordWebhookEvent(testDB, "stripe", "evt_test_2", "payment_intent.succeeded", "{}")
	assert.NoError(t, err)
	assert.True(t, process)
	MarkWebhookProcessed(testDB, "stripe", "evt_test_2", fmt.Errorf("transient failure"))
	process, err = RecordWebhookEvent(testDB, "stripe", "evt_test_2", "payment_intent.succeeded", "{}")
	assert.NoError(t, err)
	assert.True(t, process)

	// Same event id under a different provider is a distinct delivery.
	process, err = RecordWebhookEvent(testDB, "nowpayments", "evt_test_1", "finished", "{}")
	assert.NoError(t, err)
	assert.True(t, process)
}

func TestSettleTransaction_RejectsReusedTxHash(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	credits := NewCreditService(testDB)
	txHash := "0xreuse_" + common.GenerateTrxNo()

	firstID := "TEST_" + common.GenerateTrxNo()
	secondID := "TEST_" + common.GenerateTrxNo()
	testDB.Create(&models.Transaction{
		TransactionID: firstID,
		UserID:        507,
		Amount:        10,
		Credits:       100,
		PaymentMethod: "pls",
		Status:        models.StatusPending,
	})
	testDB.Create(&models.Transaction{
		TransactionID: secondID,
		UserID:        508,
		Amount:        10,
		Credits:       100,
		PaymentMethod: "pls",
		Status:        models.StatusPending,
	})

	_, err := SettleTransaction(testDB, credits, firstID, txHash)
	assert.NoError(t, err)

	// The same on-chain transfer cannot settle a second transaction; the
	// tx_hash unique index rejects it even when the pre-check is raced past.
	_, err = SettleTransaction(testDB, credits, secondID, txHash)
	assert.ErrorIs(t, err, ErrTxHashReused)

	balance, _ := credits.GetBalance(508)
	assert.Equal(t, 0, balance)

	var second models.Transaction
	testDB.Where("transaction_id = ?", secondID).First(&second)
	assert.Equal(t, models.StatusPending, second.Status)
}

func TestPromotion_ExpireOverdue(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	svc := NewPromotionService(testDB)

	testDB.Create(&models.Promotion{
		UserID:    504,
		TokenName: "OverdueToken",
		Symbol:    "ODT",
		Contract:  "0x1",
		Chain:     "pulsechain",
		StartDate: time.Now().Add(-48 * time.Hour),
		EndDate:   time.Now().Add(-time.Hour),
		Status:    models.PromotionActive,
	})
	testDB.Create(&models.Promotion{
		UserID:    504,
		TokenName: "LiveToken",
		Symbol:    "LIV",
		Contract:  "0x2",
		Chain:     "pulsechain",
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(24 * time.Hour),
		Status:    models.PromotionActive,
	})

	n, err := svc.ExpireOverdue()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err := svc.ListActive()
	assert.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, "LiveToken", active[0].TokenName)
}

func TestPromotion_UpdateAndDelete(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	svc := NewPromotionService(testDB)

	promo := models.Promotion{
		UserID:    505,
		TokenName: "EditMe",
		Symbol:    "EDT",
		Contract:  "0x3",
		Chain:     "pulsechain",
		StartDate: time.Now(),
		EndDate:   time.Now().Add(24 * time.Hour),
		Status:    models.PromotionPending,
	}
	testDB.Create(&promo)

	req := PromotionRequest{
		TokenName: "Edited",
		Symbol:    "edt",
		Contract:  "0x3",
		Chain:     "PulseChain",
		StartDate: time.Now(),
		EndDate:   time.Now().Add(48 * time.Hour),
	}
	_, err := svc.Update(promo.ID, 505, req)
	assert.NoError(t, err)

	var got models.Promotion
	testDB.First(&got, promo.ID)
	assert.Equal(t, "Edited", got.TokenName)
	assert.Equal(t, "EDT", got.Symbol)
	assert.Equal(t, "pulsechain", got.Chain)

	// Resubmitting identical values is a successful no-op, not a miss.
	resubmit, err := svc.Update(promo.ID, 505, req)
	assert.NoError(t, err)
	_, ok := resubmit.(common.SuccessResponse)
	assert.True(t, ok)

	// Another user cannot touch it.
	resp, err := svc.Update(promo.ID, 506, req)
	assert.NoError(t, err)
	env, ok := resp.(common.ErrorResponse)
	assert.True(t, ok)
	assert.False(t, env.Success)

	assert.Error(t, svc.Delete(promo.ID, 506))
	assert.NoError(t, svc.Delete(promo.ID, 505))

	var count int64
	testDB.Model(&models.Promotion{}).Where("id = ?", promo.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestChainPayment_VerifySettles(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	adminWallet := "0xAdminWalletAddress000000000000000000000001"
	txHash := "0xhash_" + common.GenerateTrxNo()

	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]string{
				"hash":        txHash,
				"from":        "0xsender",
				"to":          adminWallet,
				"value":       fmt.Sprintf("0x%x", uint64(5_000_000_000_000_000_000)),
				"blockNumber": "0x10",
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer rpcSrv.Close()

	chains := map[string]config.ChainConfig{
		"pulsechain": {
			RPCURL:      rpcSrv.URL,
			Symbol:      "pls",
			AdminWallet: adminWallet,
		},
	}

	credits := NewCreditService(testDB)
	svc := NewChainPaymentService(testDB, credits, nil, chains, nil, nil)

	userID := uint(505)
	trxID := "TEST_" + common.GenerateTrxNo()
	testDB.Create(&models.Transaction{
		TransactionID: trxID,
		UserID:        userID,
		Amount:        10,
		Credits:       100,
		PaymentMethod: "pls",
		Chain:         "pulsechain",
		PayAddress:    adminWallet,
		PayAmountWei:  "5000000000000000000",
		Status:        models.StatusPending,
	})

	resp, err := svc.VerifyPayment(context.Background(), userID, trxID, txHash)
	assert.NoError(t, err)
	success, ok := resp.(common.SuccessResponse)
	assert.True(t, ok, "expected success envelope, got %T", resp)
	assert.True(t, success.Success)

	balance, _ := credits.GetBalance(userID)
	assert.Equal(t, 100, balance)

	// Resubmitting the same hash is acknowledged, not re-credited.
	resp, err = svc.VerifyPayment(context.Background(), userID, trxID, txHash)
	assert.NoError(t, err)
	_, ok = resp.(common.SuccessResponse)
	assert.True(t, ok)

	balance, _ = credits.GetBalance(userID)
	assert.Equal(t, 100, balance)
}

func TestChainPayment_RecipientMismatch(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not configured")
	}
	defer cleanup()

	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]string{
				"hash":  "0xabc",
				"from":  "0xsender",
				"to":    "0xSomeOtherWallet",
				"value": "0x1",
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer rpcSrv.Close()

	chains := map[string]config.ChainConfig{
		"pulsechain": {RPCURL: rpcSrv.URL, Symbol: "pls", AdminWallet: "0xAdminOnly"},
	}

	credits := NewCreditService(testDB)
	svc := NewChainPaymentService(testDB, credits, nil, chains, nil, nil)

	userID := uint(506)
	trxID := "TEST_" + common.GenerateTrxNo()
	testDB.Create(&models.Transaction{
		TransactionID: trxID,
		UserID:        userID,
		Amount:        10,
		Credits:       100,
		PaymentMethod: "pls",
		Chain:         "pulsechain",
		PayAddress:    "0xAdminOnly",
		PayAmountWei:  "1",
		Status:        models.StatusPending,
	})

	resp, err := svc.VerifyPayment(context.Background(), userID, trxID, "0xabc")
	assert.NoError(t, err)
	errResp, ok := resp.(common.ErrorResponse)
	assert.True(t, ok, "expected error envelope, got %T", resp)
	assert.Equal(t, "Recipient address mismatch", errResp.Message)

	// Transaction stays pending so a correct hash can still be submitted.
	var trx models.Transaction
	testDB.Where("transaction_id = ?", trxID).First(&trx)
	assert.Equal(t, models.StatusPending, trx.Status)

	balance, _ := credits.GetBalance(userID)
	assert.Equal(t, 0, balance)
}
