package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"dredd-service/internal/consumers"
)

type Worker struct {
	Processor *consumers.EmailProcessor
}

func NewWorker(processor *consumers.EmailProcessor) *Worker {
	return &Worker{
		Processor: processor,
	}
}

func (w *Worker) HandleConfirmationEmail(ctx context.Context, t *asynq.Task) error {
	var p consumers.ConfirmationEmailDTO
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	w.Processor.SendPaymentConfirmation(p)
	return nil
}

func (w *Worker) HandlePasswordResetEmail(ctx context.Context, t *asynq.Task) error {
	var p consumers.PasswordResetDTO
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	w.Processor.SendPasswordReset(p)
	return nil
}

func StartWorker(redisOpt asynq.RedisClientOpt, processor *consumers.EmailProcessor) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	worker := NewWorker(processor)
	mux := asynq.NewServeMux()

	mux.HandleFunc(TypeConfirmationEmail, worker.HandleConfirmationEmail)
	mux.HandleFunc(TypePasswordResetEmail, worker.HandlePasswordResetEmail)

	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
