package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"dredd-service/internal/cache"
	"dredd-service/internal/models"
	"dredd-service/pkg/common"
)

const (
	sessionTTL      = 24 * time.Hour
	resetTokenTTL   = time.Hour
	sessionKeyPfx   = "session:"
	minPasswordLen  = 8
	maxUsernameLen  = 100
)

var ErrInvalidSession = errors.New("invalid session")

// UserService handles registration, login and password reset. Sessions are
// opaque random tokens held in Redis with a sliding TTL.
type UserService struct {
	DB       *gorm.DB
	Sessions *cache.Transient
	Tasks    *asynq.Client
}

func NewUserService(db *gorm.DB, sessions *cache.Transient, tasks *asynq.Client) *UserService {
	return &UserService{DB: db, Sessions: sessions, Tasks: tasks}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *UserService) Register(ctx context.Context, req RegisterRequest) (interface{}, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if len(req.Username) == 0 || len(req.Username) > maxUsernameLen {
		return common.NewErrorResponse("Invalid username", nil, http.StatusBadRequest), nil
	}
	if len(req.Password) < minPasswordLen {
		return common.NewErrorResponse("Password must be at least 8 characters", nil, http.StatusBadRequest), nil
	}

	var count int64
	s.DB.Model(&models.User{}).
		Where("username = ? OR email = ?", req.Username, req.Email).
		Count(&count)
	if count > 0 {
		return common.NewErrorResponse("Username or email already taken", nil, http.StatusConflict), nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.DB.Create(&user).Error; err != nil {
		return nil, err
	}

	token, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return common.NewSuccessResponse(map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"token":    token,
	}, "Account created"), nil
}

func (s *UserService) Login(ctx context.Context, req LoginRequest) (interface{}, error) {
	var user models.User
	err := s.DB.Where("username = ? OR email = ?", req.Username, strings.ToLower(req.Username)).
		First(&user).Error
	if err != nil {
		// Burn a comparison anyway so a missing user costs the same as a
		// wrong password.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000uGyyy6Y0Elkcs0pYdFl0cw7p0zSqXGO"), []byte(req.Password))
		return common.NewErrorResponse("Invalid credentials", nil, http.StatusUnauthorized), nil
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return common.NewErrorResponse("Invalid credentials", nil, http.StatusUnauthorized), nil
	}

	token, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return common.NewSuccessResponse(map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"token":    token,
	}, "Logged in"), nil
}

// Authenticate resolves a bearer token to a user id and refreshes the TTL.
func (s *UserService) Authenticate(ctx context.Context, token string) (uint, error) {
	if token == "" || s.Sessions == nil {
		return 0, ErrInvalidSession
	}

	val, ok := s.Sessions.Get(ctx, sessionKeyPfx+token)
	if !ok {
		return 0, ErrInvalidSession
	}

	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, ErrInvalidSession
	}

	s.Sessions.Set(ctx, sessionKeyPfx+token, val, sessionTTL)
	return uint(userID), nil
}

func (s *UserService) Logout(ctx context.Context, token string) {
	if s.Sessions != nil && token != "" {
		s.Sessions.Delete(ctx, sessionKeyPfx+token)
	}
}

// ForgotPassword issues a reset token and enqueues the email. The response
// is identical whether or not the address exists.
func (s *UserService) ForgotPassword(email string) (interface{}, error) {
	neutral := common.NewSuccessResponse(nil, "If that address is registered, a reset link has been sent")

	var user models.User
	err := s.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return neutral, nil
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	expires := time.Now().Add(resetTokenTTL)
	err = s.DB.Model(&user).Updates(map[string]interface{}{
		"reset_token":      token,
		"reset_expires_at": expires,
	}).Error
	if err != nil {
		return nil, err
	}

	enqueuePasswordResetEmail(s.Tasks, user.Email, user.Username, token)
	return neutral, nil
}

// ResetPassword consumes a valid reset token and sets a new password.
func (s *UserService) ResetPassword(token, newPassword string) (interface{}, error) {
	if len(newPassword) < minPasswordLen {
		return common.NewErrorResponse("Password must be at least 8 characters", nil, http.StatusBadRequest), nil
	}

	var user models.User
	err := s.DB.Where("reset_token = ? AND reset_expires_at > ?", token, time.Now()).
		First(&user).Error
	if err != nil {
		return common.NewErrorResponse("Invalid or expired reset token", nil, http.StatusBadRequest), nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	err = s.DB.Model(&user).Updates(map[string]interface{}{
		"password_hash":    string(hash),
		"reset_token":      "",
		"reset_expires_at": nil,
	}).Error
	if err != nil {
		return nil, err
	}

	return common.NewSuccessResponse(nil, "Password updated"), nil
}

// GetUser returns a user's public profile.
func (s *UserService) GetUser(userID uint) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) createSession(ctx context.Context, userID uint) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	if s.Sessions != nil {
		if err := s.Sessions.Set(ctx, sessionKeyPfx+token, strconv.FormatUint(uint64(userID), 10), sessionTTL); err != nil {
			return "", err
		}
	}
	return token, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
