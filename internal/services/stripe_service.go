package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"dredd-service/internal/config"
	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

// Webhook timestamps older than this are rejected as replays.
const stripeSignatureTolerance = 5 * time.Minute

type StripeService struct {
	DB      *gorm.DB
	Credits *CreditService
	Cfg     config.StripeConfig
	Tasks   *asynq.Client
}

func NewStripeService(db *gorm.DB, credits *CreditService, cfg config.StripeConfig, tasks *asynq.Client) *StripeService {
	return &StripeService{DB: db, Credits: credits, Cfg: cfg, Tasks: tasks}
}

// CreatePaymentIntent creates a Stripe PaymentIntent for the USD amount and
// stores a pending transaction carrying the client secret. Completion is
// driven exclusively by the webhook.
func (s *StripeService) CreatePaymentIntent(userID uint, payment ValidatedPayment) (interface{}, error) {
	if s.Cfg.SecretKey == "" {
		return common.NewErrorResponse("Stripe has not been configured", nil, http.StatusNotImplemented), nil
	}

	transactionID := common.GenerateTrxNo()
	cents := usdToCents(payment.Amount)

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(cents, 10))
	form.Set("currency", "usd")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("metadata[transaction_id]", transactionID)
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(userID), 10))
	form.Set("metadata[credits]", strconv.Itoa(payment.Credits))

	headers := map[string]string{
		"Authorization": "Bearer " + s.Cfg.SecretKey,
	}

	resp, err := common.PostForm(s.Cfg.BaseURL+"/v1/payment_intents", form, headers)
	if err != nil {
		log.Printf("stripe payment intent error: %v", err)
		return common.NewErrorResponse("Unable to create payment intent", nil, http.StatusBadGateway), nil
	}

	respMap, ok := resp.(map[string]interface{})
	if !ok {
		return common.NewErrorResponse("Invalid response from Stripe", nil, http.StatusBadGateway), nil
	}
	if errObj, ok := respMap["error"].(map[string]interface{}); ok {
		msg, _ := errObj["message"].(string)
		return common.NewErrorResponse("Stripe error: "+msg, nil, http.StatusBadGateway), nil
	}

	intentID, _ := respMap["id"].(string)
	clientSecret, _ := respMap["client_secret"].(string)
	if intentID == "" || clientSecret == "" {
		return common.NewErrorResponse("Stripe returned an incomplete intent", nil, http.StatusBadGateway), nil
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"method": payment.Method,
	})

	trx := models.Transaction{
		TransactionID:       transactionID,
		UserID:              userID,
		Amount:              payment.Amount,
		Credits:             payment.Credits,
		PaymentMethod:       "stripe",
		StripePaymentIntent: intentID,
		ClientSecret:        clientSecret,
		Status:              models.StatusPending,
		Metadata:            string(metadata),
	}
	if err := s.DB.Create(&trx).Error; err != nil {
		return common.NewErrorResponse("Failed to store transaction", nil, http.StatusInternalServerError), nil
	}

	return common.NewSuccessResponse(map[string]interface{}{
		"transaction_id": transactionID,
		"client_secret":  clientSecret,
		"credits":        payment.Credits,
	}, "Payment intent created"), nil
}

// usdToCents converts a dollar amount to the integer cents Stripe expects.
// Rounded, not truncated: 19.99*100 is 1998.999... in float64.
func usdToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandleWebhook verifies the Stripe-Signature header, deduplicates the event
// and applies the resulting status transition.
func (s *StripeService) HandleWebhook(body []byte, sigHeader string) error {
	if err := VerifyStripeSignature(body, sigHeader, s.Cfg.WebhookSecret, time.Now()); err != nil {
		LogCallback(s.DB, "stripe", "signature verification failed", string(body), 0, "")
		return err
	}

	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("malformed webhook payload: %w", err)
	}

	process, err := RecordWebhookEvent(s.DB, "stripe", event.ID, event.Type, string(body))
	if err != nil {
		return err
	}
	if !process {
		log.Printf("stripe webhook %s already processed, acknowledging", event.ID)
		return nil
	}

	transactionID := event.Data.Object.Metadata["transaction_id"]
	var procErr error

	switch event.Type {
	case "payment_intent.succeeded":
		procErr = s.handleSucceeded(transactionID, event)
	case "payment_intent.payment_failed":
		procErr = s.handleFailed(transactionID, event)
	default:
		log.Printf("stripe webhook: unhandled event type %s", event.Type)
	}

	MarkWebhookProcessed(s.DB, "stripe", event.ID, procErr)
	return procErr
}

func (s *StripeService) handleSucceeded(transactionID string, event stripeEvent) error {
	if transactionID == "" {
		return fmt.Errorf("payment_intent.succeeded without transaction_id metadata")
	}

	trx, err := SettleTransaction(s.DB, s.Credits, transactionID, "")
	if err == ErrAlreadySettled {
		LogCallback(s.DB, "stripe", "transaction already processed", event, 1, transactionID)
		return nil
	}
	if err != nil {
		LogCallback(s.DB, "stripe", "settlement failed", event, 0, transactionID)
		return err
	}

	enqueueConfirmationEmail(s.Tasks, trx.UserID, trx.TransactionID, trx.Amount, trx.Credits)
	LogCallback(s.DB, "stripe", "completed", event, 1, transactionID)
	return nil
}

func (s *StripeService) handleFailed(transactionID string, event stripeEvent) error {
	if transactionID == "" {
		return fmt.Errorf("payment_intent.payment_failed without transaction_id metadata")
	}

	if err := FailTransaction(s.DB, transactionID); err != nil && err != ErrAlreadySettled {
		return err
	}
	LogCallback(s.DB, "stripe", "payment failed", event, 0, transactionID)
	return nil
}

// VerifyStripeSignature checks the t=...,v1=... signature header: the signed
// payload is "<t>.<body>" under HMAC-SHA256 with the webhook secret.
func VerifyStripeSignature(body []byte, sigHeader, secret string, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("stripe webhook secret not configured")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("malformed signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed signature timestamp")
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}
