package branches

import (
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store primitives take the database handle they must run on explicitly, so
// the caller decides which writes share one transaction. The services pass a
// gorm transaction handle through the whole creation/merge call chain.

// branchByID loads one branch. A missing row returns (nil, nil); storage
// failures return the error unchanged.
func branchByID(tx *gorm.DB, branchID string) (*Branch, error) {
	var branch Branch
	err := tx.Where("id = ?", branchID).Take(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

// branchBySlug loads the branch owning a slug within a space, or (nil, nil).
func branchBySlug(tx *gorm.DB, spaceID, slug string) (*Branch, error) {
	var branch Branch
	err := tx.Where("space_id = ? AND slug = ?", spaceID, slug).Take(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

// keysWithTranslations loads every key of a branch together with its
// translation rows, ordered by name for deterministic iteration.
func keysWithTranslations(tx *gorm.DB, branchID string) ([]TranslationKey, error) {
	var keys []TranslationKey
	err := tx.Where("branch_id = ?", branchID).
		Preload("Translations").
		Order("name ASC").
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// keyByName loads one key by its branch-unique name, or (nil, nil).
func keyByName(tx *gorm.DB, branchID, name string) (*TranslationKey, error) {
	var key TranslationKey
	err := tx.Where("branch_id = ? AND name = ?", branchID, name).Take(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// translationMapsByName projects loaded keys into the name-indexed
// TranslationMap form the diff calculator consumes.
func translationMapsByName(keys []TranslationKey) map[string]TranslationMap {
	maps := make(map[string]TranslationMap, len(keys))
	for _, key := range keys {
		values := make(TranslationMap, len(key.Translations))
		for _, translation := range key.Translations {
			values[translation.Language] = translation.Value
		}
		maps[key.Name] = values
	}
	return maps
}

// insertKey creates a new key row under a branch with a fresh id.
func insertKey(tx *gorm.DB, ids IDProvider, branchID, name string, namespace, description *string) (*TranslationKey, error) {
	keyID, err := ids.NewID()
	if err != nil {
		return nil, err
	}
	key := TranslationKey{
		ID:          keyID,
		BranchID:    branchID,
		Name:        name,
		Namespace:   namespace,
		Description: description,
	}
	if err := tx.Create(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// insertTranslations bulk-inserts translation rows for one key, assigning
// fresh ids. Rows are inserted in language order.
func insertTranslations(tx *gorm.DB, ids IDProvider, keyID string, values TranslationMap, status TranslationStatus) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]Translation, 0, len(values))
	for _, language := range sortedLanguages(values) {
		translationID, err := ids.NewID()
		if err != nil {
			return err
		}
		rows = append(rows, Translation{
			ID:       translationID,
			KeyID:    keyID,
			Language: language,
			Value:    values[language],
			Status:   status,
		})
	}
	return tx.Create(&rows).Error
}

// upsertTranslationValues writes every language/value pair onto a key,
// creating missing rows and overwriting existing values. Upserted values
// reset to the supplied status.
func upsertTranslationValues(tx *gorm.DB, ids IDProvider, keyID string, values TranslationMap, status TranslationStatus) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]Translation, 0, len(values))
	for _, language := range sortedLanguages(values) {
		translationID, err := ids.NewID()
		if err != nil {
			return err
		}
		rows = append(rows, Translation{
			ID:       translationID,
			KeyID:    keyID,
			Language: language,
			Value:    values[language],
			Status:   status,
		})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_id"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "status", "updated_at"}),
	}).Create(&rows).Error
}

// copyBranchKeys deep-copies every key and translation of the source branch
// into the target branch. All cloned rows receive fresh ids; statuses carry
// over unchanged. Returns the number of keys copied.
func copyBranchKeys(tx *gorm.DB, ids IDProvider, sourceBranchID, targetBranchID string) (int, error) {
	sourceKeys, err := keysWithTranslations(tx, sourceBranchID)
	if err != nil {
		return 0, err
	}

	for _, sourceKey := range sourceKeys {
		keyID, err := ids.NewID()
		if err != nil {
			return 0, err
		}
		clone := TranslationKey{
			ID:          keyID,
			BranchID:    targetBranchID,
			Name:        sourceKey.Name,
			Namespace:   sourceKey.Namespace,
			Description: sourceKey.Description,
		}
		if err := tx.Create(&clone).Error; err != nil {
			return 0, err
		}
		if len(sourceKey.Translations) == 0 {
			continue
		}
		rows := make([]Translation, 0, len(sourceKey.Translations))
		for _, translation := range sourceKey.Translations {
			translationID, err := ids.NewID()
			if err != nil {
				return 0, err
			}
			rows = append(rows, Translation{
				ID:       translationID,
				KeyID:    keyID,
				Language: translation.Language,
				Value:    translation.Value,
				Status:   translation.Status,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return 0, err
		}
	}

	return len(sourceKeys), nil
}

// deleteBranchContents removes a branch row together with every key and
// translation it owns, inside the caller's transaction.
func deleteBranchContents(tx *gorm.DB, branchID string) error {
	err := tx.Exec(
		"DELETE FROM translations WHERE key_id IN (SELECT id FROM translation_keys WHERE branch_id = ?)",
		branchID,
	).Error
	if err != nil {
		return err
	}
	if err := tx.Where("branch_id = ?", branchID).Delete(&TranslationKey{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", branchID).Delete(&Branch{}).Error
}

// environmentCount reports how many environments still point at a branch.
func environmentCount(tx *gorm.DB, branchID string) (int64, error) {
	var count int64
	err := tx.Model(&Environment{}).Where("branch_id = ?", branchID).Count(&count).Error
	return count, err
}

func sortedLanguages(values TranslationMap) []string {
	languages := make([]string, 0, len(values))
	for language := range values {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	return languages
}
