package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"dredd-service/internal/consumers"
)

// Task Types
const (
	TypeConfirmationEmail  = "email:payment-confirmation"
	TypePasswordResetEmail = "email:password-reset"
)

// Task Creators

func NewConfirmationEmailTask(payload consumers.ConfirmationEmailDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeConfirmationEmail, data), nil
}

func NewPasswordResetEmailTask(payload consumers.PasswordResetDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePasswordResetEmail, data), nil
}
