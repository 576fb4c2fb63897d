package branches

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

const maxNameLength = 190

var (
	// ErrInvalidBranchName indicates a branch name is empty or exceeds storage bounds.
	ErrInvalidBranchName = errors.New("branches: invalid branch name")
	// ErrInvalidKeyName indicates a translation key name is empty or exceeds storage bounds.
	ErrInvalidKeyName = errors.New("branches: invalid key name")
	// ErrInvalidLanguage indicates a language code is empty or exceeds storage bounds.
	ErrInvalidLanguage = errors.New("branches: invalid language code")
)

// BranchName represents a validated branch display name.
type BranchName string

// NewBranchName validates raw input and returns a BranchName.
func NewBranchName(rawInput string) (BranchName, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBranchName)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidBranchName, maxNameLength)
	}
	return BranchName(trimmed), nil
}

// String returns the underlying branch name.
func (n BranchName) String() string {
	return string(n)
}

// KeyName represents a validated translation key name. Comparison is
// case-sensitive everywhere.
type KeyName string

// NewKeyName validates raw input and returns a KeyName.
func NewKeyName(rawInput string) (KeyName, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKeyName)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidKeyName, maxNameLength)
	}
	return KeyName(trimmed), nil
}

// String returns the underlying key name.
func (n KeyName) String() string {
	return string(n)
}

// Language represents a validated language code (BCP 47 tags fit in 35 bytes).
type Language string

// NewLanguage validates raw input and returns a Language.
func NewLanguage(rawInput string) (Language, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLanguage)
	}
	if len(trimmed) > 35 {
		return "", fmt.Errorf("%w: exceeds 35 characters", ErrInvalidLanguage)
	}
	return Language(trimmed), nil
}

// String returns the underlying language code.
func (l Language) String() string {
	return string(l)
}

// TranslationStatus tracks the review state of a single translation value.
type TranslationStatus string

const (
	// StatusPending marks a value awaiting review.
	StatusPending TranslationStatus = "pending"
	// StatusTranslated marks a value a translator has filled in.
	StatusTranslated TranslationStatus = "translated"
	// StatusApproved marks a reviewed and accepted value.
	StatusApproved TranslationStatus = "approved"
)

// ParseTranslationStatus validates a raw status string, defaulting empty
// input to StatusPending.
func ParseTranslationStatus(value string) (TranslationStatus, error) {
	switch TranslationStatus(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return StatusPending, nil
	case StatusPending:
		return StatusPending, nil
	case StatusTranslated:
		return StatusTranslated, nil
	case StatusApproved:
		return StatusApproved, nil
	default:
		return "", fmt.Errorf("branches: unknown translation status %q", value)
	}
}

// Branch is an independently mutable snapshot of a space's translation keys.
// Exactly one branch per space carries IsDefault; a non-nil SourceBranchID
// always references a branch in the same space.
type Branch struct {
	ID             string    `gorm:"column:id;primaryKey;size:36;not null"`
	SpaceID        string    `gorm:"column:space_id;size:36;not null;uniqueIndex:idx_branches_space_slug,priority:1"`
	Name           string    `gorm:"column:name;size:190;not null"`
	Slug           string    `gorm:"column:slug;size:190;not null;uniqueIndex:idx_branches_space_slug,priority:2"`
	SourceBranchID *string   `gorm:"column:source_branch_id;size:36"`
	IsDefault      bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Branch) TableName() string {
	return "branches"
}

// TranslationKey is owned exclusively by one branch. Key instances are never
// shared across branches even when names coincide; every copy or merge
// creates brand-new rows.
type TranslationKey struct {
	ID           string        `gorm:"column:id;primaryKey;size:36;not null"`
	BranchID     string        `gorm:"column:branch_id;size:36;not null;uniqueIndex:idx_translation_keys_branch_name,priority:1"`
	Name         string        `gorm:"column:name;size:190;not null;uniqueIndex:idx_translation_keys_branch_name,priority:2"`
	Namespace    *string       `gorm:"column:namespace;size:190"`
	Description  *string       `gorm:"column:description;size:512"`
	Translations []Translation `gorm:"foreignKey:KeyID;references:ID"`
	CreatedAt    time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (TranslationKey) TableName() string {
	return "translation_keys"
}

// Translation holds one language's value for a key. The empty string is a
// valid, untranslated sentinel.
type Translation struct {
	ID        string            `gorm:"column:id;primaryKey;size:36;not null"`
	KeyID     string            `gorm:"column:key_id;size:36;not null;uniqueIndex:idx_translations_key_language,priority:1"`
	Language  string            `gorm:"column:language;size:35;not null;uniqueIndex:idx_translations_key_language,priority:2"`
	Value     string            `gorm:"column:value;type:text;not null"`
	Status    TranslationStatus `gorm:"column:status;size:32;not null;default:'pending'"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Translation) TableName() string {
	return "translations"
}

// Environment points a deploy target at a branch. A branch referenced by any
// environment cannot be deleted.
type Environment struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	SpaceID   string    `gorm:"column:space_id;size:36;not null;index"`
	BranchID  string    `gorm:"column:branch_id;size:36;not null;index"`
	Name      string    `gorm:"column:name;size:190;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Environment) TableName() string {
	return "environments"
}

// TranslationMap maps a language code to the stored value for one key. It is
// derived transiently for diffing and never persisted.
type TranslationMap map[string]string

// Equal reports whether both maps cover identical language sets with
// identical values per language.
func (m TranslationMap) Equal(other TranslationMap) bool {
	return maps.Equal(m, other)
}

// Clone returns an independent copy of the map.
func (m TranslationMap) Clone() TranslationMap {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// SpaceInfo is the projection of a space the branch core needs: its identity
// and the project whose membership gates access.
type SpaceInfo struct {
	ID        string
	ProjectID string
	Name      string
}
