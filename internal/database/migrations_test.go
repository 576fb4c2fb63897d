package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/linguahub/linguahub/backend/internal/branches"
	"gorm.io/gorm"
)

func TestOpenSQLiteBackfillsBranchSlugs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linguahub.db")

	// Seed a legacy row with no slug using a raw connection, bypassing the
	// service layer entirely.
	raw, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open raw database: %v", err)
	}
	if err := raw.AutoMigrate(&branches.Branch{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	legacy := branches.Branch{ID: "legacy-id", SpaceID: "space-1", Name: "Feature Branch!!", Slug: ""}
	if err := raw.Create(&legacy).Error; err != nil {
		t.Fatalf("failed to seed legacy row: %v", err)
	}
	// A second space: two empty slugs in the same space would collide on the
	// unique (space_id, slug) index.
	unsluggable := branches.Branch{ID: "odd-id", SpaceID: "space-2", Name: "!!!", Slug: ""}
	if err := raw.Create(&unsluggable).Error; err != nil {
		t.Fatalf("failed to seed unsluggable row: %v", err)
	}
	rawDB, err := raw.DB()
	if err != nil {
		t.Fatalf("failed to access raw sql db: %v", err)
	}
	if err := rawDB.Close(); err != nil {
		t.Fatalf("failed to close raw connection: %v", err)
	}

	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	var migrated branches.Branch
	if err := db.Where("id = ?", "legacy-id").Take(&migrated).Error; err != nil {
		t.Fatalf("failed to load migrated row: %v", err)
	}
	if migrated.Slug != "feature-branch" {
		t.Fatalf("expected derived slug, got %q", migrated.Slug)
	}

	// A name with no sluggable characters falls back to the row id. Use a
	// fresh destination so the previous row's primary key does not leak into
	// the query conditions.
	var migratedOdd branches.Branch
	if err := db.Where("id = ?", "odd-id").Take(&migratedOdd).Error; err != nil {
		t.Fatalf("failed to load migrated row: %v", err)
	}
	if migratedOdd.Slug != "odd-id" {
		t.Fatalf("expected id fallback slug, got %q", migratedOdd.Slug)
	}

	var record migrationRecord
	if err := db.Where("name = ?", migrationBackfillBranchSlugs).Take(&record).Error; err != nil {
		t.Fatalf("migration must be recorded: %v", err)
	}
}

func TestOpenSQLiteMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linguahub.db")

	first, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	firstDB, err := first.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	if err := firstDB.Close(); err != nil {
		t.Fatalf("failed to close connection: %v", err)
	}

	second, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("reopening must not re-run migrations: %v", err)
	}

	var count int64
	if err := second.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 migration record, got %d", count)
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		t.Fatalf("expected missing path to fail")
	}
}
