package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"dredd-service/internal/config"
	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

// walletKeyAliases maps every network variant of an asset onto the single
// payout-address key the administrator configures.
var walletKeyAliases = map[string]string{
	"usdttrc20":  "usdt",
	"usdterc20":  "usdt",
	"usdtbsc":    "usdt",
	"usdtmatic":  "usdt",
	"usdtsol":    "usdt",
	"usdcerc20":  "usdc",
	"usdcbsc":    "usdc",
	"usdcmatic":  "usdc",
	"usdcsol":    "usdc",
	"etharb":     "eth",
	"ethbase":    "eth",
	"ethop":      "eth",
	"maticmatic": "matic",
}

// WalletKeyFor resolves the payout-address key for a pay currency.
func WalletKeyFor(currency string) string {
	c := strings.ToLower(currency)
	if key, ok := walletKeyAliases[c]; ok {
		return key
	}
	return c
}

var npTerminalStatuses = []string{
	models.NPStatusFinished,
	models.NPStatusFailed,
	models.NPStatusRefunded,
	models.NPStatusExpired,
}

type NOWPaymentsService struct {
	DB      *gorm.DB
	Credits *CreditService
	Cfg     config.NOWPaymentsConfig
	Tasks   *asynq.Client
}

func NewNOWPaymentsService(db *gorm.DB, credits *CreditService, cfg config.NOWPaymentsConfig, tasks *asynq.Client) *NOWPaymentsService {
	return &NOWPaymentsService{DB: db, Credits: credits, Cfg: cfg, Tasks: tasks}
}

func (s *NOWPaymentsService) apiHeaders() map[string]string {
	return map[string]string{"x-api-key": s.Cfg.APIKey}
}

// SupportedCurrencies fetches the live list of pay currencies.
func (s *NOWPaymentsService) SupportedCurrencies() ([]string, error) {
	resp, err := common.Get(s.Cfg.BaseURL+"/v1/currencies", s.apiHeaders())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch supported currencies: %w", err)
	}

	respMap, ok := resp.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected currencies response shape")
	}
	raw, _ := respMap["currencies"].([]interface{})

	currencies := make([]string, 0, len(raw))
	for _, c := range raw {
		if str, ok := c.(string); ok {
			currencies = append(currencies, strings.ToLower(str))
		}
	}
	return currencies, nil
}

// MinAmount fetches the provider minimum for a currency, denominated in USD.
func (s *NOWPaymentsService) MinAmount(currency string) (float64, error) {
	endpoint := fmt.Sprintf("%s/v1/min-amount?currency_from=%s&currency_to=usd&fiat_equivalent=usd",
		s.Cfg.BaseURL, url.QueryEscape(currency))
	resp, err := common.Get(endpoint, s.apiHeaders())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch minimum amount: %w", err)
	}

	respMap, ok := resp.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected min-amount response shape")
	}
	if min, ok := respMap["fiat_equivalent"].(float64); ok && min > 0 {
		return min, nil
	}
	if min, ok := respMap["min_amount"].(float64); ok {
		return min, nil
	}
	return 0, fmt.Errorf("min-amount missing from response")
}

// CreatePayment validates the currency against the live provider lists,
// requires a configured payout address for the mapped wallet key (no demo or
// fallback addresses, ever), creates the remote payment and persists it.
func (s *NOWPaymentsService) CreatePayment(userID uint, payment ValidatedPayment) (interface{}, error) {
	if s.Cfg.APIKey == "" {
		return nil, fmt.Errorf("NOWPayments has not been configured")
	}

	currency := strings.ToLower(payment.Method)

	supported, err := s.SupportedCurrencies()
	if err != nil {
		return nil, err
	}
	found := false
	for _, c := range supported {
		if c == currency {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("currency %s is not supported", currency)
	}

	minUSD, err := s.MinAmount(currency)
	if err != nil {
		return nil, err
	}
	if payment.Amount < minUSD {
		return nil, fmt.Errorf("amount $%.2f is below the $%.2f minimum for %s", payment.Amount, minUSD, currency)
	}

	walletKey := WalletKeyFor(currency)
	payoutAddress, ok := s.Cfg.WalletAddresses[walletKey]
	if !ok || payoutAddress == "" {
		return nil, fmt.Errorf("No wallet address configured for %s", walletKey)
	}

	orderID := common.GenerateOrderID(userID)
	body := map[string]interface{}{
		"price_amount":   payment.Amount,
		"price_currency": "usd",
		"pay_currency":   currency,
		"order_id":       orderID,
		"payout_address": payoutAddress,
	}

	resp, err := common.Post(s.Cfg.BaseURL+"/v1/payment", body, s.apiHeaders())
	if err != nil {
		return nil, fmt.Errorf("payment creation failed: %w", err)
	}

	respMap, ok := resp.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected payment response shape")
	}
	if msg, ok := respMap["message"].(string); ok && respMap["payment_id"] == nil {
		return nil, fmt.Errorf("NOWPayments error: %s", msg)
	}

	paymentID := stringifyID(respMap["payment_id"])
	payAddress, _ := respMap["pay_address"].(string)
	payAmount, _ := respMap["pay_amount"].(float64)
	status, _ := respMap["payment_status"].(string)
	if status == "" {
		status = models.NPStatusWaiting
	}
	if paymentID == "" || payAddress == "" {
		return nil, fmt.Errorf("NOWPayments returned an incomplete payment")
	}

	packageData, _ := json.Marshal(map[string]interface{}{
		"amount":  payment.Amount,
		"credits": payment.Credits,
		"method":  payment.Method,
	})
	paymentData, _ := json.Marshal(respMap)

	record := models.Payment{
		PaymentID:   paymentID,
		OrderID:     orderID,
		UserID:      userID,
		Amount:      payment.Amount,
		Credits:     payment.Credits,
		PayCurrency: currency,
		PayAddress:  payAddress,
		PayAmount:   payAmount,
		Status:      status,
		PackageData: string(packageData),
		PaymentData: string(paymentData),
	}
	if err := s.DB.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}

	qrURL := "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data=" + url.QueryEscape(payAddress)

	return common.NewSuccessResponse(map[string]interface{}{
		"payment_id":   paymentID,
		"order_id":     orderID,
		"pay_address":  payAddress,
		"pay_amount":   payAmount,
		"pay_currency": currency,
		"qr_code_url":  qrURL,
		"credits":      payment.Credits,
	}, "Payment created"), nil
}

// CheckPaymentStatus polls the provider and applies any status change. The
// poll path and the IPN path converge on the same settle call, which is
// guarded, so racing them cannot double-credit.
func (s *NOWPaymentsService) CheckPaymentStatus(userID uint, paymentID string) (interface{}, error) {
	var record models.Payment
	if err := s.DB.Where("payment_id = ? AND user_id = ?", paymentID, userID).First(&record).Error; err != nil {
		return common.NewErrorResponse("Payment not found", nil, http.StatusNotFound), nil
	}

	if !record.IsTerminal() {
		resp, err := common.Get(s.Cfg.BaseURL+"/v1/payment/"+url.PathEscape(paymentID), s.apiHeaders())
		if err == nil {
			if respMap, ok := resp.(map[string]interface{}); ok {
				if status, ok := respMap["payment_status"].(string); ok && status != "" {
					if err := s.applyStatus(&record, status, respMap); err != nil {
						log.Printf("nowpayments status apply failed for %s: %v", paymentID, err)
					}
				}
			}
		} else {
			log.Printf("nowpayments status poll failed for %s: %v", paymentID, err)
		}
		s.DB.Where("payment_id = ?", paymentID).First(&record)
	}

	return common.NewSuccessResponse(map[string]interface{}{
		"payment_id": record.PaymentID,
		"status":     record.Status,
		"credits":    record.Credits,
		"credited":   record.Credited,
	}, "Payment status"), nil
}

type nowPaymentsIPN struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
	PayCurrency   string      `json:"pay_currency"`
	ActuallyPaid  float64     `json:"actually_paid"`
}

// HandleIPN processes a NOWPayments webhook: HMAC-SHA512 over the raw body,
// dedup on (payment_id, status), then the guarded status transition.
func (s *NOWPaymentsService) HandleIPN(body []byte, sigHeader string) error {
	if err := VerifyNOWPaymentsSignature(body, sigHeader, s.Cfg.IPNSecret); err != nil {
		LogCallback(s.DB, "nowpayments", "signature verification failed", string(body), 0, "")
		return err
	}

	var ipn nowPaymentsIPN
	if err := json.Unmarshal(body, &ipn); err != nil {
		return fmt.Errorf("malformed IPN payload: %w", err)
	}

	paymentID := ipn.PaymentID.String()
	if paymentID == "" {
		return fmt.Errorf("IPN without payment_id")
	}

	eventID := paymentID + ":" + ipn.PaymentStatus
	process, err := RecordWebhookEvent(s.DB, "nowpayments", eventID, ipn.PaymentStatus, string(body))
	if err != nil {
		return err
	}
	if !process {
		log.Printf("nowpayments IPN %s already processed, acknowledging", eventID)
		return nil
	}

	var record models.Payment
	if err := s.DB.Where("payment_id = ?", paymentID).First(&record).Error; err != nil {
		LogCallback(s.DB, "nowpayments", "payment not found", string(body), 0, paymentID)
		MarkWebhookProcessed(s.DB, "nowpayments", eventID, err)
		return fmt.Errorf("unknown payment %s", paymentID)
	}

	var payload map[string]interface{}
	json.Unmarshal(body, &payload)

	procErr := s.applyStatus(&record, ipn.PaymentStatus, payload)
	MarkWebhookProcessed(s.DB, "nowpayments", eventID, procErr)

	status := 0
	if procErr == nil {
		status = 1
	}
	LogCallback(s.DB, "nowpayments", ipn.PaymentStatus, string(body), status, paymentID)
	return procErr
}

// applyStatus moves the payment to the reported status. Terminal rows never
// move again; finished/confirmed credit the user at most once via the
// credited flag.
func (s *NOWPaymentsService) applyStatus(record *models.Payment, status string, webhookData map[string]interface{}) error {
	updates := map[string]interface{}{"status": status}
	if webhookData != nil {
		if raw, err := json.Marshal(webhookData); err == nil {
			updates["webhook_data"] = string(raw)
		}
	}

	res := s.DB.Model(&models.Payment{}).
		Where("payment_id = ? AND status NOT IN ?", record.PaymentID, npTerminalStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}

	if status != models.NPStatusFinished && status != models.NPStatusConfirmed {
		return nil
	}

	return s.creditOnce(record)
}

func (s *NOWPaymentsService) creditOnce(record *models.Payment) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("payment_id = ? AND credited = ?", record.PaymentID, false).
			Update("credited", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadySettled
		}
		return s.Credits.AddPurchasedCredits(tx, record.UserID, record.Credits)
	})
	if err == ErrAlreadySettled {
		return nil
	}
	if err != nil {
		return err
	}

	enqueueConfirmationEmail(s.Tasks, record.UserID, record.PaymentID, record.Amount, record.Credits)
	return nil
}

// VerifyNOWPaymentsSignature checks the x-nowpayments-sig header: HMAC-SHA512
// over the raw request body with the IPN secret.
func VerifyNOWPaymentsSignature(body []byte, sigHeader, secret string) error {
	if secret == "" {
		return fmt.Errorf("IPN secret not configured")
	}
	if sigHeader == "" {
		return fmt.Errorf("missing signature header")
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sigHeader))) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// stringifyID tolerates numeric and string payment ids from the API.
func stringifyID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	case json.Number:
		return id.String()
	}
	return ""
}
