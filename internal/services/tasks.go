package services

import (
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// Task types, duplicated from internal/worker to avoid an import cycle.
const (
	TypeConfirmationEmail  = "email:payment-confirmation"
	TypePasswordResetEmail = "email:password-reset"
)

type ConfirmationEmailPayload struct {
	UserID        uint    `json:"userId"`
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Credits       int     `json:"credits"`
}

type PasswordResetEmailPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// enqueueConfirmationEmail hands the confirmation mail off to the worker.
// The TaskID makes a re-settled transaction enqueue at most one email.
func enqueueConfirmationEmail(client *asynq.Client, userID uint, transactionID string, amount float64, credits int) {
	if client == nil {
		return
	}

	payload, err := json.Marshal(ConfirmationEmailPayload{
		UserID:        userID,
		TransactionID: transactionID,
		Amount:        amount,
		Credits:       credits,
	})
	if err != nil {
		log.Printf("failed to marshal confirmation email payload: %v", err)
		return
	}

	task := asynq.NewTask(TypeConfirmationEmail, payload)
	if _, err := client.Enqueue(task, asynq.TaskID("confirm:"+transactionID)); err != nil {
		log.Printf("failed to enqueue confirmation email for %s: %v", transactionID, err)
	}
}

func enqueuePasswordResetEmail(client *asynq.Client, email, username, token string) {
	if client == nil {
		return
	}

	payload, err := json.Marshal(PasswordResetEmailPayload{
		Email:    email,
		Username: username,
		Token:    token,
	})
	if err != nil {
		log.Printf("failed to marshal password reset payload: %v", err)
		return
	}

	task := asynq.NewTask(TypePasswordResetEmail, payload)
	if _, err := client.Enqueue(task); err != nil {
		log.Printf("failed to enqueue password reset email: %v", err)
	}
}
