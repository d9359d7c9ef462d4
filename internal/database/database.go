package database

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"dredd-service/internal/config"
	"dredd-service/internal/models"
)

// Connect opens the MySQL connection. The handle is passed down through
// constructors; nothing reads a package-level global.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserCredits{},
		&models.Transaction{},
		&models.Payment{},
		&models.WebhookEvent{},
		&models.CallbackLog{},
		&models.Analysis{},
		&models.AnalysisCache{},
		&models.Promotion{},
	)
}
