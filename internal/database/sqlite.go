package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/linguahub/linguahub/backend/internal/branches"
	"github.com/linguahub/linguahub/backend/internal/projects"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// Error translation is enabled so unique-constraint races surface as
// gorm.ErrDuplicatedKey for the services to classify.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&projects.Project{},
		&projects.Member{},
		&projects.Space{},
		&branches.Branch{},
		&branches.TranslationKey{},
		&branches.Translation{},
		&branches.Environment{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
