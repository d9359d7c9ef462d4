package services

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dredd-service/internal/models"
)

var ErrInsufficientCredits = errors.New("insufficient credits")

// CreditService is the ledger: one row per user, every mutation a single
// upsert or guarded UPDATE so each call is atomic at the engine level.
type CreditService struct {
	DB *gorm.DB
}

func NewCreditService(db *gorm.DB) *CreditService {
	return &CreditService{DB: db}
}

// AddPurchasedCredits adds paid-for credits and bumps the lifetime purchase
// counter. Runs on the given handle so settlement can wrap it in the same
// transaction as the status flip.
func (s *CreditService) AddPurchasedCredits(db *gorm.DB, userID uint, credits int) error {
	if db == nil {
		db = s.DB
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", credits),
			"total_purchased": gorm.Expr("total_purchased + ?", credits),
		}),
	}).Create(&models.UserCredits{
		UserID:         userID,
		Balance:        credits,
		TotalPurchased: credits,
	}).Error
}

// AddCredits adds to the balance without touching total_purchased (refunds,
// manual adjustments).
func (s *CreditService) AddCredits(userID uint, credits int) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", credits),
		}),
	}).Create(&models.UserCredits{
		UserID:  userID,
		Balance: credits,
	}).Error
}

// DeductCredits removes credits from the balance. The WHERE balance >= ?
// guard makes check-and-deduct a single statement; no read-modify-write race.
func (s *CreditService) DeductCredits(userID uint, credits int) error {
	res := s.DB.Model(&models.UserCredits{}).
		Where("user_id = ? AND balance >= ?", userID, credits).
		UpdateColumn("balance", gorm.Expr("balance - ?", credits))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

// SetCredits overwrites the balance (admin adjustments).
func (s *CreditService) SetCredits(userID uint, credits int) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance": credits,
		}),
	}).Create(&models.UserCredits{
		UserID:  userID,
		Balance: credits,
	}).Error
}

// GetBalance returns the current balance; users without a row have 0.
func (s *CreditService) GetBalance(userID uint) (int, error) {
	var row models.UserCredits
	err := s.DB.Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Balance, nil
}

// HasPurchased reports whether the user has ever bought credits; it decides
// the analysis retention window.
func (s *CreditService) HasPurchased(userID uint) (bool, error) {
	var row models.UserCredits
	err := s.DB.Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return row.TotalPurchased > 0, nil
}
