package consumers

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"gorm.io/gorm"

	"dredd-service/internal/config"
	"dredd-service/internal/models"
)

// EmailProcessor delivers transactional mail from the task queue. Plain
// net/smtp; volume is a handful of mails per purchase, not a campaign.
type EmailProcessor struct {
	DB   *gorm.DB
	SMTP config.SMTPConfig
}

func NewEmailProcessor(db *gorm.DB, smtpCfg config.SMTPConfig) *EmailProcessor {
	return &EmailProcessor{DB: db, SMTP: smtpCfg}
}

// --- DTOs ---

type ConfirmationEmailDTO struct {
	UserID        uint    `json:"userId"`
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Credits       int     `json:"credits"`
}

type PasswordResetDTO struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// --- Methods ---

func (p *EmailProcessor) SendPaymentConfirmation(data ConfirmationEmailDTO) {
	log.Printf("Processing payment confirmation email: %v", data)

	var user models.User
	if err := p.DB.First(&user, data.UserID).Error; err != nil {
		log.Printf("confirmation email: user %d not found: %v", data.UserID, err)
		return
	}

	subject := "Payment confirmed"
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nYour payment of $%.2f has been confirmed and %d credits were added to your account.\r\nReference: %s\r\n",
		user.Username, data.Amount, data.Credits, data.TransactionID,
	)

	if err := p.send(user.Email, subject, body); err != nil {
		log.Printf("confirmation email to %s failed: %v", user.Email, err)
	}
}

func (p *EmailProcessor) SendPasswordReset(data PasswordResetDTO) {
	log.Printf("Processing password reset email for %s", data.Email)

	subject := "Password reset"
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nUse this token to reset your password within the next hour:\r\n\r\n%s\r\n\r\nIf you did not request this, ignore this email.\r\n",
		data.Username, data.Token,
	)

	if err := p.send(data.Email, subject, body); err != nil {
		log.Printf("password reset email to %s failed: %v", data.Email, err)
	}
}

func (p *EmailProcessor) send(to, subject, body string) error {
	if p.SMTP.Host == "" {
		return fmt.Errorf("smtp not configured")
	}

	msg := strings.Join([]string{
		"From: " + p.SMTP.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := p.SMTP.Host + ":" + p.SMTP.Port
	var auth smtp.Auth
	if p.SMTP.Username != "" {
		auth = smtp.PlainAuth("", p.SMTP.Username, p.SMTP.Password, p.SMTP.Host)
	}
	return smtp.SendMail(addr, auth, p.SMTP.From, []string{to}, []byte(msg))
}
