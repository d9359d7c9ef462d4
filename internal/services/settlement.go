package services

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dredd-service/internal/models"
)

// ErrAlreadySettled means the transaction already left pending. Webhook
// handlers treat it as success so provider retries get a clean 200.
var ErrAlreadySettled = errors.New("transaction already settled")

// ErrTxHashReused means the on-chain hash already settled another
// transaction; the tx_hash unique index is what raises it.
var ErrTxHashReused = errors.New("transaction hash already used")

// SettleTransaction moves a transaction pending -> completed and credits the
// user, inside one DB transaction. The guarded UPDATE (status = pending) is
// what makes duplicate webhook delivery credit exactly once: the second
// delivery affects zero rows and never reaches the ledger.
func SettleTransaction(db *gorm.DB, credits *CreditService, transactionID, txHash string) (*models.Transaction, error) {
	var trx models.Transaction
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("transaction_id = ?", transactionID).First(&trx).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"status": models.StatusCompleted}
		if txHash != "" {
			updates["tx_hash"] = txHash
		}

		res := tx.Model(&models.Transaction{}).
			Where("transaction_id = ? AND status = ?", transactionID, models.StatusPending).
			Updates(updates)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrTxHashReused
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadySettled
		}

		return credits.AddPurchasedCredits(tx, trx.UserID, trx.Credits)
	})
	if err != nil {
		return nil, err
	}

	trx.Status = models.StatusCompleted
	return &trx, nil
}

// FailTransaction moves pending -> failed. Terminal states are never revisited.
func FailTransaction(db *gorm.DB, transactionID string) error {
	res := db.Model(&models.Transaction{}).
		Where("transaction_id = ? AND status = ?", transactionID, models.StatusPending).
		Update("status", models.StatusFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadySettled
	}
	return nil
}

// RecordWebhookEvent inserts the delivery into the dedup ledger. Returns
// false only when this (provider, event_id) pair already processed
// successfully: a redelivery of a delivery that failed mid-flight is handed
// back for another attempt, and the guarded settlement keeps that retry
// idempotent.
func RecordWebhookEvent(db *gorm.DB, provider, eventID, eventType, payload string) (bool, error) {
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.WebhookEvent{
		Provider:  provider,
		EventID:   eventID,
		EventType: eventType,
		Payload:   payload,
	})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var existing models.WebhookEvent
	if err := db.Where("provider = ? AND event_id = ?", provider, eventID).First(&existing).Error; err != nil {
		return false, err
	}
	return existing.ProcessedAt == nil, nil
}

// MarkWebhookProcessed stamps the dedup row with the processing outcome.
// processed_at is only set on success; a failed delivery keeps it NULL so
// the provider's redelivery is reprocessed instead of swallowed.
func MarkWebhookProcessed(db *gorm.DB, provider, eventID string, procErr error) {
	updates := map[string]interface{}{}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	} else {
		updates["processed_at"] = time.Now()
		updates["processing_error"] = ""
	}
	db.Model(&models.WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(updates)
}

// LogCallback writes the audit row for a webhook or verification callback.
func LogCallback(db *gorm.DB, provider, request string, response interface{}, status int, transactionID string) {
	respBytes, _ := json.Marshal(response)
	db.Create(&models.CallbackLog{
		Provider:      provider,
		Request:       request,
		Response:      string(respBytes),
		Status:        status,
		TransactionID: transactionID,
	})
}
