package database

import (
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"looplib/internal/models"
)

// SeedAccounts inserts accounts that do not exist yet, matched on email, and
// returns how many were created. Used for development installs.
func SeedAccounts(db *gorm.DB, accounts []models.Account) (int64, error) {
	var created int64
	for i := range accounts {
		// UPSERT based on 'email' to prevent duplicates on restart
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true, // If it exists, leave it alone.
		}).Create(&accounts[i])
		if res.Error != nil {
			return created, res.Error
		}
		created += res.RowsAffected
	}
	slog.Info("seeded accounts", "requested", len(accounts), "created", created)
	return created, nil
}
