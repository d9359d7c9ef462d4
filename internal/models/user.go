package models

import (
	"time"
)

type User struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username       string     `gorm:"column:username;size:100;not null;uniqueIndex" json:"username"`
	Email          string     `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash   string     `gorm:"column:password_hash;size:255;not null" json:"-"`
	ResetToken     string     `gorm:"column:reset_token;size:64;index" json:"-"`
	ResetExpiresAt *time.Time `gorm:"column:reset_expires_at" json:"-"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
