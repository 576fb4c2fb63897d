package branches

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDGenerator struct {
	prefix string
	next   int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

type staticSpaceDirectory map[string]SpaceInfo

func (d staticSpaceDirectory) SpaceByID(_ context.Context, spaceID string) (*SpaceInfo, error) {
	space, ok := d[spaceID]
	if !ok {
		return nil, nil
	}
	return &space, nil
}

type staticAccessChecker map[string]bool

func (c staticAccessChecker) IsMember(_ context.Context, projectID, userID string) (bool, error) {
	return c[projectID+":"+userID], nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Branch{}, &TranslationKey{}, &Translation{}, &Environment{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

const (
	testSpaceID   = "space-1"
	testProjectID = "project-1"
	testActorID   = "user-1"
)

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: NewUUIDProvider(),
		Spaces: staticSpaceDirectory{
			testSpaceID: {ID: testSpaceID, ProjectID: testProjectID, Name: "Website"},
			"space-2":   {ID: "space-2", ProjectID: testProjectID, Name: "Mobile"},
		},
		Access: staticAccessChecker{
			testProjectID + ":" + testActorID: true,
		},
		Clock: func() time.Time { return time.Unix(1700000000, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func seedBranch(t *testing.T, db *gorm.DB, id, spaceID, name string, sourceBranchID *string, isDefault bool) Branch {
	t.Helper()
	branch := Branch{
		ID:             id,
		SpaceID:        spaceID,
		Name:           name,
		Slug:           Slugify(name),
		SourceBranchID: sourceBranchID,
		IsDefault:      isDefault,
	}
	if err := db.Create(&branch).Error; err != nil {
		t.Fatalf("failed to seed branch %s: %v", id, err)
	}
	return branch
}

func mustCreateKey(t *testing.T, service *Service, branchID, name string) TranslationKey {
	t.Helper()
	key, err := service.CreateKey(context.Background(), branchID, name, nil, nil)
	if err != nil {
		t.Fatalf("failed to create key %s: %v", name, err)
	}
	return key
}

func mustUpsertTranslation(t *testing.T, service *Service, branchID, keyName, language, value string) {
	t.Helper()
	_, err := service.UpsertTranslation(context.Background(), branchID, keyName, language, value, StatusTranslated)
	if err != nil {
		t.Fatalf("failed to upsert translation %s/%s: %v", keyName, language, err)
	}
}

// branchSnapshot captures every key name with its translation map for
// before/after comparisons.
func branchSnapshot(t *testing.T, db *gorm.DB, branchID string) map[string]TranslationMap {
	t.Helper()
	keys, err := keysWithTranslations(db, branchID)
	if err != nil {
		t.Fatalf("failed to snapshot branch %s: %v", branchID, err)
	}
	return translationMapsByName(keys)
}

func snapshotsEqual(left, right map[string]TranslationMap) bool {
	if len(left) != len(right) {
		return false
	}
	for name, values := range left {
		other, ok := right[name]
		if !ok || !values.Equal(other) {
			return false
		}
	}
	return true
}
