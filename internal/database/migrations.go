package database

import (
	"errors"
	"time"

	"github.com/linguahub/linguahub/backend/internal/branches"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillBranchSlugs = "2026-08-10_backfill_branch_slugs"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillBranchSlugs, apply: backfillBranchSlugs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillBranchSlugs derives slugs for branch rows imported before slugs
// became mandatory.
func backfillBranchSlugs(db *gorm.DB) error {
	var rows []branches.Branch
	if err := db.Where("slug = ''").Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		slug := branches.Slugify(row.Name)
		if slug == "" {
			slug = row.ID
		}
		err := db.Model(&branches.Branch{}).
			Where("id = ?", row.ID).
			Update("slug", slug).Error
		if err != nil {
			return err
		}
	}
	return nil
}
