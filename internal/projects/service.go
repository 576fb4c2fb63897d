package projects

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linguahub/linguahub/backend/internal/branches"
	"github.com/linguahub/linguahub/backend/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultBranchName = "main"

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies of the project/space service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider branches.IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service manages projects, membership and spaces. It implements the
// branches.SpaceDirectory and branches.AccessChecker collaborator interfaces
// the branch core delegates to.
type Service struct {
	db     *gorm.DB
	ids    branches.IDProvider
	now    func() time.Time
	logger *zap.Logger
	// membership lookups are hot on every branch operation; positive results
	// are cached per project+user.
	memberCache sync.Map
}

// NewService constructs the project service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("projects: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("projects: id provider required")
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
		now:    clock,
		logger: logger,
	}, nil
}

// CreateProject creates a project with the creating actor as its owner.
func (s *Service) CreateProject(ctx context.Context, name, ownerID string) (Project, error) {
	name = normalize(name)
	if name == "" {
		return Project{}, domain.FieldValidation("name", "project name is required")
	}
	if normalize(ownerID) == "" {
		return Project{}, domain.Validation("project owner is required")
	}

	projectID, err := s.ids.NewID()
	if err != nil {
		return Project{}, err
	}
	project := Project{ID: projectID, Name: name}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return tx.Create(&Member{ProjectID: projectID, UserID: ownerID, Role: RoleOwner}).Error
	})
	if txErr != nil {
		s.logger.Error("project creation failed", zap.Error(txErr), zap.String("name", name))
		return Project{}, txErr
	}

	s.logger.Info("project created", zap.String("project_id", projectID))
	return project, nil
}

// AddMember registers a user as a member of a project. Adding an existing
// member is a no-op.
func (s *Service) AddMember(ctx context.Context, projectID, userID string, role MemberRole) error {
	if normalize(userID) == "" {
		return domain.Validation("member user id is required")
	}
	if role == "" {
		role = RoleMember
	}

	var project Project
	err := s.db.WithContext(ctx).Where("id = ?", projectID).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound("project")
	}
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Create(&Member{ProjectID: projectID, UserID: userID, Role: role}).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return nil
}

// IsMember reports whether a user belongs to a project. Positive results are
// cached; removals must invalidate out of band, which this service does not
// support yet.
func (s *Service) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	if projectID == "" || userID == "" {
		return false, nil
	}
	cacheKey := projectID + ":" + userID
	if _, cached := s.memberCache.Load(cacheKey); cached {
		return true, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&Member{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	s.memberCache.Store(cacheKey, struct{}{})
	return true, nil
}

// SpaceByID resolves a space into the projection the branch core consumes.
// A missing space returns (nil, nil).
func (s *Service) SpaceByID(ctx context.Context, spaceID string) (*branches.SpaceInfo, error) {
	var space Space
	err := s.db.WithContext(ctx).Where("id = ?", spaceID).Take(&space).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &branches.SpaceInfo{ID: space.ID, ProjectID: space.ProjectID, Name: space.Name}, nil
}

// CreateSpaceResult carries the new space together with its implicitly
// provisioned default branch.
type CreateSpaceResult struct {
	Space         Space
	DefaultBranch branches.Branch
}

// CreateSpace provisions a space and its empty default branch in one
// transaction. The actor must be a member of the project.
func (s *Service) CreateSpace(ctx context.Context, projectID, name, actorID string) (CreateSpaceResult, error) {
	name = normalize(name)
	if name == "" {
		return CreateSpaceResult{}, domain.FieldValidation("name", "space name is required")
	}

	var project Project
	err := s.db.WithContext(ctx).Where("id = ?", projectID).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CreateSpaceResult{}, domain.NotFound("project")
	}
	if err != nil {
		return CreateSpaceResult{}, err
	}

	member, err := s.IsMember(ctx, projectID, actorID)
	if err != nil {
		return CreateSpaceResult{}, err
	}
	if !member {
		return CreateSpaceResult{}, domain.Forbidden("actor is not a member of the project")
	}

	spaceID, err := s.ids.NewID()
	if err != nil {
		return CreateSpaceResult{}, err
	}
	space := Space{ID: spaceID, ProjectID: projectID, Name: name}

	var defaultBranch branches.Branch
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&space).Error; err != nil {
			return err
		}
		created, err := branches.ProvisionDefaultBranch(tx, s.ids, spaceID, defaultBranchName)
		if err != nil {
			return err
		}
		defaultBranch = created
		return nil
	})
	if txErr != nil {
		s.logger.Error("space creation failed", zap.Error(txErr), zap.String("project_id", projectID))
		return CreateSpaceResult{}, txErr
	}

	s.logger.Info("space created",
		zap.String("space_id", spaceID),
		zap.String("default_branch_id", defaultBranch.ID))
	return CreateSpaceResult{Space: space, DefaultBranch: defaultBranch}, nil
}
