package branches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linguahub/linguahub/backend/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase       = errors.New("database handle is required")
	errMissingIDProvider     = errors.New("id provider is required")
	errMissingSpaceDirectory = errors.New("space directory is required")
	errMissingAccessChecker  = errors.New("access checker is required")
	noOpLogger               = zap.NewNop()
)

// ServiceError wraps infrastructure failures with an operation.reason code.
// Domain outcomes (missing entities, validation, forbidden access) are raised
// as domain.Error instead and never wrapped here.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew        = "branches.service.new"
	opCreateBranch      = "branches.create_branch"
	opDeleteBranch      = "branches.delete_branch"
	opGetBranch         = "branches.get_branch"
	opListBranches      = "branches.list_branches"
	opCreateKey         = "branches.create_key"
	opUpsertTranslation = "branches.upsert_translation"
	opListKeys          = "branches.list_keys"
	opComputeDiff       = "branches.compute_diff"
	opMerge             = "branches.merge"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// SpaceDirectory resolves spaces for precondition checks. It is the boundary
// to the space-management collaborator; a missing space returns (nil, nil).
type SpaceDirectory interface {
	SpaceByID(ctx context.Context, spaceID string) (*SpaceInfo, error)
}

// AccessChecker is the delegated project-access collaborator: it reports
// whether an actor is a member of a space's owning project.
type AccessChecker interface {
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
}

// ServiceConfig describes the dependencies of the branch core.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Spaces     SpaceDirectory
	Access     AccessChecker
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service implements branch creation, deletion, diffing and merging over the
// key/translation store.
type Service struct {
	db     *gorm.DB
	ids    IDProvider
	spaces SpaceDirectory
	access AccessChecker
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and constructs the branch service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Spaces == nil {
		return nil, newServiceError(opServiceNew, "missing_space_directory", errMissingSpaceDirectory)
	}
	if cfg.Access == nil {
		return nil, newServiceError(opServiceNew, "missing_access_checker", errMissingAccessChecker)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:     cfg.Database,
		ids:    cfg.IDProvider,
		spaces: cfg.Spaces,
		access: cfg.Access,
		clock:  clock,
		logger: logger,
	}, nil
}

// CreateBranchResult carries the created branch, the number of keys deep-
// copied from the source, and the events the caller should publish.
type CreateBranchResult struct {
	Branch     Branch
	CopiedKeys int
	Events     []Event
}

const slugCollisionMessage = "branch with this name already exists in the space"

// CreateBranch creates a new branch as a full copy-on-write snapshot of the
// source branch. Preconditions are checked in order before any write; the
// branch row and every copied key/translation are inserted in one
// transaction, so readers observe either no branch or the complete copy.
func (s *Service) CreateBranch(ctx context.Context, name, spaceID, fromBranchID, actorID string) (CreateBranchResult, error) {
	branchName, err := NewBranchName(name)
	if err != nil {
		return CreateBranchResult{}, domain.FieldValidation("name", "branch name is required")
	}

	space, err := s.spaces.SpaceByID(ctx, spaceID)
	if err != nil {
		s.logError(opCreateBranch, "space_lookup_failed", err, zap.String("space_id", spaceID))
		return CreateBranchResult{}, newServiceError(opCreateBranch, "space_lookup_failed", err)
	}
	if space == nil {
		return CreateBranchResult{}, domain.NotFound("space")
	}

	member, err := s.access.IsMember(ctx, space.ProjectID, actorID)
	if err != nil {
		s.logError(opCreateBranch, "access_check_failed", err,
			zap.String("project_id", space.ProjectID),
			zap.String("actor_id", actorID))
		return CreateBranchResult{}, newServiceError(opCreateBranch, "access_check_failed", err)
	}
	if !member {
		return CreateBranchResult{}, domain.Forbidden("actor is not a member of the owning project")
	}

	source, err := branchByID(s.db.WithContext(ctx), fromBranchID)
	if err != nil {
		s.logError(opCreateBranch, "source_branch_lookup_failed", err, zap.String("branch_id", fromBranchID))
		return CreateBranchResult{}, newServiceError(opCreateBranch, "source_branch_lookup_failed", err)
	}
	if source == nil {
		return CreateBranchResult{}, domain.NotFound("source_branch")
	}
	if source.SpaceID != spaceID {
		return CreateBranchResult{}, domain.Validation("source branch must belong to the same space")
	}

	slug := Slugify(branchName.String())
	if slug == "" {
		return CreateBranchResult{}, domain.FieldValidation("name", "branch name must contain at least one alphanumeric character")
	}
	existing, err := branchBySlug(s.db.WithContext(ctx), spaceID, slug)
	if err != nil {
		s.logError(opCreateBranch, "slug_lookup_failed", err, zap.String("slug", slug))
		return CreateBranchResult{}, newServiceError(opCreateBranch, "slug_lookup_failed", err)
	}
	if existing != nil {
		return CreateBranchResult{}, domain.FieldValidation("name", slugCollisionMessage)
	}

	branchID, err := s.ids.NewID()
	if err != nil {
		s.logError(opCreateBranch, "id_generation_failed", err)
		return CreateBranchResult{}, newServiceError(opCreateBranch, "id_generation_failed", err)
	}

	sourceID := source.ID
	branch := Branch{
		ID:             branchID,
		SpaceID:        spaceID,
		Name:           branchName.String(),
		Slug:           slug,
		SourceBranchID: &sourceID,
		IsDefault:      false,
	}

	copiedKeys := 0
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&branch).Error; err != nil {
			// Two concurrent creations can race past the slug pre-check; the
			// unique index catches the loser and the caller sees the same
			// field error the pre-check would have produced.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.FieldValidationCause("name", slugCollisionMessage, err)
			}
			s.logError(opCreateBranch, "branch_insert_failed", err, zap.String("branch_id", branchID))
			return newServiceError(opCreateBranch, "branch_insert_failed", err)
		}

		copied, err := copyBranchKeys(tx, s.ids, source.ID, branchID)
		if err != nil {
			s.logError(opCreateBranch, "key_copy_failed", err,
				zap.String("source_branch_id", source.ID),
				zap.String("branch_id", branchID))
			return newServiceError(opCreateBranch, "key_copy_failed", err)
		}
		copiedKeys = copied
		return nil
	})
	if txErr != nil {
		return CreateBranchResult{}, txErr
	}

	s.logger.Info("branch created",
		zap.String("branch_id", branch.ID),
		zap.String("source_branch_id", source.ID),
		zap.Int("copied_keys", copiedKeys))

	return CreateBranchResult{
		Branch:     branch,
		CopiedKeys: copiedKeys,
		Events: []Event{BranchCreatedEvent{
			Branch:           branch,
			SourceBranchID:   source.ID,
			SourceBranchName: source.Name,
			ActorID:          actorID,
			CopiedKeys:       copiedKeys,
		}},
	}, nil
}

// DeleteBranch removes a branch and everything it owns. The default branch
// and branches still referenced by an environment cannot be deleted.
func (s *Service) DeleteBranch(ctx context.Context, branchID, actorID string) ([]Event, error) {
	branch, err := branchByID(s.db.WithContext(ctx), branchID)
	if err != nil {
		s.logError(opDeleteBranch, "branch_lookup_failed", err, zap.String("branch_id", branchID))
		return nil, newServiceError(opDeleteBranch, "branch_lookup_failed", err)
	}
	if branch == nil {
		return nil, domain.NotFound("branch")
	}
	if branch.IsDefault {
		return nil, domain.Validation("default branch cannot be deleted")
	}

	references, err := environmentCount(s.db.WithContext(ctx), branchID)
	if err != nil {
		s.logError(opDeleteBranch, "environment_count_failed", err, zap.String("branch_id", branchID))
		return nil, newServiceError(opDeleteBranch, "environment_count_failed", err)
	}
	if references > 0 {
		return nil, domain.Validation("branch is still referenced by an environment")
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteBranchContents(tx, branchID)
	})
	if txErr != nil {
		s.logError(opDeleteBranch, "delete_failed", txErr, zap.String("branch_id", branchID))
		return nil, newServiceError(opDeleteBranch, "delete_failed", txErr)
	}

	s.logger.Info("branch deleted", zap.String("branch_id", branchID))
	return []Event{BranchDeletedEvent{
		BranchID:   branch.ID,
		BranchName: branch.Name,
		SpaceID:    branch.SpaceID,
		ActorID:    actorID,
	}}, nil
}

// GetBranch loads one branch by id.
func (s *Service) GetBranch(ctx context.Context, branchID string) (Branch, error) {
	branch, err := branchByID(s.db.WithContext(ctx), branchID)
	if err != nil {
		s.logError(opGetBranch, "branch_lookup_failed", err, zap.String("branch_id", branchID))
		return Branch{}, newServiceError(opGetBranch, "branch_lookup_failed", err)
	}
	if branch == nil {
		return Branch{}, domain.NotFound("branch")
	}
	return *branch, nil
}

// ListBranches returns every branch of a space, default branch first, then
// by creation time.
func (s *Service) ListBranches(ctx context.Context, spaceID string) ([]Branch, error) {
	var result []Branch
	err := s.db.WithContext(ctx).
		Where("space_id = ?", spaceID).
		Order("is_default DESC, created_at ASC").
		Find(&result).Error
	if err != nil {
		s.logError(opListBranches, "query_failed", err, zap.String("space_id", spaceID))
		return nil, newServiceError(opListBranches, "query_failed", err)
	}
	return result, nil
}

// CreateKey adds a standalone key to a branch. Key names are unique and
// case-sensitive within their branch.
func (s *Service) CreateKey(ctx context.Context, branchID, name string, namespace, description *string) (TranslationKey, error) {
	keyName, err := NewKeyName(name)
	if err != nil {
		return TranslationKey{}, domain.FieldValidation("name", "key name is required")
	}
	branch, err := branchByID(s.db.WithContext(ctx), branchID)
	if err != nil {
		s.logError(opCreateKey, "branch_lookup_failed", err, zap.String("branch_id", branchID))
		return TranslationKey{}, newServiceError(opCreateKey, "branch_lookup_failed", err)
	}
	if branch == nil {
		return TranslationKey{}, domain.NotFound("branch")
	}

	key, err := insertKey(s.db.WithContext(ctx), s.ids, branchID, keyName.String(), namespace, description)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return TranslationKey{}, domain.FieldValidationCause("name", "key with this name already exists in the branch", err)
		}
		s.logError(opCreateKey, "key_insert_failed", err, zap.String("branch_id", branchID))
		return TranslationKey{}, newServiceError(opCreateKey, "key_insert_failed", err)
	}
	return *key, nil
}

// UpsertTranslation creates or overwrites one language's value on a key,
// addressed by branch and key name.
func (s *Service) UpsertTranslation(ctx context.Context, branchID, keyName, language, value string, status TranslationStatus) (Translation, error) {
	parsedLanguage, err := NewLanguage(language)
	if err != nil {
		return Translation{}, domain.FieldValidation("language", "language code is required")
	}
	if status == "" {
		status = StatusPending
	}

	key, err := keyByName(s.db.WithContext(ctx), branchID, keyName)
	if err != nil {
		s.logError(opUpsertTranslation, "key_lookup_failed", err,
			zap.String("branch_id", branchID),
			zap.String("key_name", keyName))
		return Translation{}, newServiceError(opUpsertTranslation, "key_lookup_failed", err)
	}
	if key == nil {
		return Translation{}, domain.NotFound("key")
	}

	values := TranslationMap{parsedLanguage.String(): value}
	if err := upsertTranslationValues(s.db.WithContext(ctx), s.ids, key.ID, values, status); err != nil {
		s.logError(opUpsertTranslation, "upsert_failed", err, zap.String("key_id", key.ID))
		return Translation{}, newServiceError(opUpsertTranslation, "upsert_failed", err)
	}

	var row Translation
	err = s.db.WithContext(ctx).
		Where("key_id = ? AND language = ?", key.ID, parsedLanguage.String()).
		Take(&row).Error
	if err != nil {
		s.logError(opUpsertTranslation, "reload_failed", err, zap.String("key_id", key.ID))
		return Translation{}, newServiceError(opUpsertTranslation, "reload_failed", err)
	}
	return row, nil
}

// ListKeys returns every key of a branch with its translations, ordered by
// key name.
func (s *Service) ListKeys(ctx context.Context, branchID string) ([]TranslationKey, error) {
	branch, err := branchByID(s.db.WithContext(ctx), branchID)
	if err != nil {
		s.logError(opListKeys, "branch_lookup_failed", err, zap.String("branch_id", branchID))
		return nil, newServiceError(opListKeys, "branch_lookup_failed", err)
	}
	if branch == nil {
		return nil, domain.NotFound("branch")
	}
	keys, err := keysWithTranslations(s.db.WithContext(ctx), branchID)
	if err != nil {
		s.logError(opListKeys, "query_failed", err, zap.String("branch_id", branchID))
		return nil, newServiceError(opListKeys, "query_failed", err)
	}
	return keys, nil
}

// ComputeDiff classifies the key differences between two branches of the
// same space into added/modified/deleted/conflict sets. Read-only; safe to
// call repeatedly and concurrently against the same pair.
func (s *Service) ComputeDiff(ctx context.Context, sourceBranchID, targetBranchID string) (BranchDiff, error) {
	diff, _, _, err := s.loadDiff(ctx, sourceBranchID, targetBranchID)
	return diff, err
}

func (s *Service) loadDiff(ctx context.Context, sourceBranchID, targetBranchID string) (BranchDiff, *Branch, *Branch, error) {
	db := s.db.WithContext(ctx)

	source, err := branchByID(db, sourceBranchID)
	if err != nil {
		s.logError(opComputeDiff, "source_branch_lookup_failed", err, zap.String("branch_id", sourceBranchID))
		return BranchDiff{}, nil, nil, newServiceError(opComputeDiff, "source_branch_lookup_failed", err)
	}
	if source == nil {
		return BranchDiff{}, nil, nil, domain.NotFound("source_branch")
	}
	target, err := branchByID(db, targetBranchID)
	if err != nil {
		s.logError(opComputeDiff, "target_branch_lookup_failed", err, zap.String("branch_id", targetBranchID))
		return BranchDiff{}, nil, nil, newServiceError(opComputeDiff, "target_branch_lookup_failed", err)
	}
	if target == nil {
		return BranchDiff{}, nil, nil, domain.NotFound("target_branch")
	}
	if source.SpaceID != target.SpaceID {
		return BranchDiff{}, nil, nil, domain.Validation("branches must belong to the same space")
	}

	sourceKeys, err := keysWithTranslations(db, source.ID)
	if err != nil {
		s.logError(opComputeDiff, "source_keys_load_failed", err, zap.String("branch_id", source.ID))
		return BranchDiff{}, nil, nil, newServiceError(opComputeDiff, "source_keys_load_failed", err)
	}
	targetKeys, err := keysWithTranslations(db, target.ID)
	if err != nil {
		s.logError(opComputeDiff, "target_keys_load_failed", err, zap.String("branch_id", target.ID))
		return BranchDiff{}, nil, nil, newServiceError(opComputeDiff, "target_keys_load_failed", err)
	}

	diff := computeDiff(source, target, translationMapsByName(sourceKeys), translationMapsByName(targetKeys))
	return diff, source, target, nil
}

// PreviewMerge returns the diff a merge would apply, with no side effects.
func (s *Service) PreviewMerge(ctx context.Context, sourceBranchID, targetBranchID string) (BranchDiff, error) {
	return s.ComputeDiff(ctx, sourceBranchID, targetBranchID)
}

// Merge applies a branch's diff onto the target branch. If any conflict is
// left without a resolution the merge aborts before touching storage and
// reports the unresolved conflicts; callers resolve and retry. All applied
// changes commit in one transaction. Keys present only in the target are
// never deleted.
func (s *Service) Merge(ctx context.Context, sourceBranchID string, opts MergeOptions) (MergeResult, error) {
	diff, _, target, err := s.loadDiff(ctx, sourceBranchID, opts.TargetBranchID)
	if err != nil {
		return MergeResult{}, err
	}

	resolved, unresolved, err := partitionConflicts(diff.Conflicts, opts.Resolutions)
	if err != nil {
		return MergeResult{}, err
	}
	if len(unresolved) > 0 {
		return MergeResult{Success: false, Merged: 0, Conflicts: unresolved}, nil
	}

	merged := 0
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range diff.Added {
			key, err := insertKey(tx, s.ids, diff.Target.ID, entry.Key, nil, nil)
			if err != nil {
				s.logError(opMerge, "key_insert_failed", err, zap.String("key_name", entry.Key))
				return newServiceError(opMerge, "key_insert_failed", err)
			}
			if err := insertTranslations(tx, s.ids, key.ID, entry.Translations, StatusPending); err != nil {
				s.logError(opMerge, "translation_insert_failed", err, zap.String("key_name", entry.Key))
				return newServiceError(opMerge, "translation_insert_failed", err)
			}
			merged++
		}

		for _, entry := range diff.Modified {
			applied, err := s.applyTranslations(tx, diff.Target.ID, entry.Key, entry.Source)
			if err != nil {
				return err
			}
			if applied {
				merged++
			}
		}

		for _, entry := range diff.Conflicts {
			resolution := resolved[entry.Key]
			var values TranslationMap
			switch resolution.Kind {
			case ResolutionUseTarget:
				// Keep existing target values untouched.
				continue
			case ResolutionUseSource:
				values = entry.Source
			case ResolutionExplicit:
				values = resolution.Translations
			}
			applied, err := s.applyTranslations(tx, diff.Target.ID, entry.Key, values)
			if err != nil {
				return err
			}
			if applied {
				merged++
			}
		}
		return nil
	})
	if txErr != nil {
		return MergeResult{}, txErr
	}

	s.logger.Info("branches merged",
		zap.String("source_branch_id", diff.Source.ID),
		zap.String("target_branch_id", diff.Target.ID),
		zap.Int("merged", merged))

	return MergeResult{
		Success: true,
		Merged:  merged,
		Events: []Event{BranchMergedEvent{
			SourceBranchID:   diff.Source.ID,
			SourceBranchName: diff.Source.Name,
			TargetBranchID:   diff.Target.ID,
			TargetBranchName: diff.Target.Name,
			SpaceID:          target.SpaceID,
			ActorID:          opts.ActorID,
			MergedKeys:       merged,
		}},
	}, nil
}

// applyTranslations upserts every language/value pair onto the named target
// key. A key deleted by a concurrent writer is skipped rather than failing
// the whole merge.
func (s *Service) applyTranslations(tx *gorm.DB, targetBranchID, keyName string, values TranslationMap) (bool, error) {
	key, err := keyByName(tx, targetBranchID, keyName)
	if err != nil {
		s.logError(opMerge, "target_key_lookup_failed", err, zap.String("key_name", keyName))
		return false, newServiceError(opMerge, "target_key_lookup_failed", err)
	}
	if key == nil {
		return false, nil
	}
	if err := upsertTranslationValues(tx, s.ids, key.ID, values, StatusPending); err != nil {
		s.logError(opMerge, "translation_upsert_failed", err, zap.String("key_name", keyName))
		return false, newServiceError(opMerge, "translation_upsert_failed", err)
	}
	return true, nil
}

// ProvisionDefaultBranch creates the empty default branch a new space starts
// with, inside the caller's transaction. No keys are copied.
func ProvisionDefaultBranch(tx *gorm.DB, ids IDProvider, spaceID, name string) (Branch, error) {
	branchName, err := NewBranchName(name)
	if err != nil {
		return Branch{}, err
	}
	branchID, err := ids.NewID()
	if err != nil {
		return Branch{}, err
	}
	branch := Branch{
		ID:        branchID,
		SpaceID:   spaceID,
		Name:      branchName.String(),
		Slug:      Slugify(branchName.String()),
		IsDefault: true,
	}
	if err := tx.Create(&branch).Error; err != nil {
		return Branch{}, err
	}
	return branch, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("branch service error", attrs...)
}
