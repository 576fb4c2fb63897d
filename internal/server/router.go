package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/linguahub/linguahub/backend/internal/branches"
	"github.com/linguahub/linguahub/backend/internal/domain"
	"github.com/linguahub/linguahub/backend/internal/projects"
	"go.uber.org/zap"
)

const actorIDContextKey = "linguahub_actor_id"

var (
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingBranchService   = errors.New("branch service dependency required")
	errMissingProjectService  = errors.New("project service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
	errUnknownResolutionValue = errors.New("unknown resolution value")
)

// TokenManager validates the bearer tokens API callers present.
type TokenManager interface {
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP layer to the core services.
type Dependencies struct {
	TokenManager TokenManager
	Branches     *branches.Service
	Projects     *projects.Service
	Realtime     *RealtimeDispatcher
	Logger       *zap.Logger
}

// NewHTTPHandler builds the API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Branches == nil {
		return nil, errMissingBranchService
	}
	if deps.Projects == nil {
		return nil, errMissingProjectService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:   deps.TokenManager,
		branches: deps.Branches,
		projects: deps.Projects,
		realtime: realtime,
		logger:   logger,
	}

	api := router.Group("/api/v1")
	api.Use(handler.authorizeRequest)

	api.POST("/projects", handler.handleCreateProject)
	api.POST("/projects/:projectID/members", handler.handleAddMember)
	api.POST("/projects/:projectID/spaces", handler.handleCreateSpace)

	api.GET("/spaces/:spaceID/branches", handler.handleListBranches)
	api.POST("/spaces/:spaceID/branches", handler.handleCreateBranch)
	api.GET("/spaces/:spaceID/events", handler.handleSpaceEvents)

	api.GET("/branches/:branchID", handler.handleGetBranch)
	api.DELETE("/branches/:branchID", handler.handleDeleteBranch)
	api.GET("/branches/:branchID/keys", handler.handleListKeys)
	api.POST("/branches/:branchID/keys", handler.handleCreateKey)
	api.PUT("/branches/:branchID/keys/:keyName/translations/:language", handler.handleUpsertTranslation)
	api.GET("/branches/:branchID/diff/:targetBranchID", handler.handleDiff)
	api.GET("/branches/:branchID/merge-preview/:targetBranchID", handler.handleMergePreview)
	api.POST("/branches/:branchID/merge", handler.handleMerge)

	return router, nil
}

type httpHandler struct {
	tokens   TokenManager
	branches *branches.Service
	projects *projects.Service
	realtime *RealtimeDispatcher
	logger   *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(actorIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) actorID(c *gin.Context) string {
	return c.GetString(actorIDContextKey)
}

// respondError maps domain failures to HTTP statuses; anything else is an
// internal error.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	if domainErr, ok := domain.AsError(err); ok {
		switch domainErr.Kind {
		case domain.KindNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "resource": domainErr.Resource})
			return
		case domain.KindForbidden:
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		case domain.KindValidation:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_failed", "message": domainErr.Message})
			return
		case domain.KindFieldValidation:
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation_failed",
				"field":   domainErr.Field,
				"message": domainErr.Message,
			})
			return
		}
	}
	h.logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func (h *httpHandler) publishEvents(events []branches.Event) {
	now := time.Now().UTC()
	for _, event := range events {
		switch typed := event.(type) {
		case branches.BranchCreatedEvent:
			h.logger.Info("domain event",
				zap.String("event", typed.EventName()),
				zap.String("branch_id", typed.Branch.ID),
				zap.String("source_branch_id", typed.SourceBranchID),
				zap.String("source_branch_name", typed.SourceBranchName),
				zap.String("actor_id", typed.ActorID),
				zap.Int("copied_keys", typed.CopiedKeys))
			h.realtime.Publish(RealtimeMessage{
				SpaceID:        typed.Branch.SpaceID,
				EventType:      RealtimeEventBranchCreated,
				BranchID:       typed.Branch.ID,
				SourceBranchID: typed.SourceBranchID,
				ActorID:        typed.ActorID,
				Timestamp:      now,
			})
		case branches.BranchMergedEvent:
			h.logger.Info("domain event",
				zap.String("event", typed.EventName()),
				zap.String("source_branch_id", typed.SourceBranchID),
				zap.String("target_branch_id", typed.TargetBranchID),
				zap.String("actor_id", typed.ActorID),
				zap.Int("merged_keys", typed.MergedKeys))
			h.realtime.Publish(RealtimeMessage{
				SpaceID:        typed.SpaceID,
				EventType:      RealtimeEventBranchMerged,
				BranchID:       typed.TargetBranchID,
				SourceBranchID: typed.SourceBranchID,
				ActorID:        typed.ActorID,
				Timestamp:      now,
			})
		case branches.BranchDeletedEvent:
			h.logger.Info("domain event",
				zap.String("event", typed.EventName()),
				zap.String("branch_id", typed.BranchID),
				zap.String("actor_id", typed.ActorID))
			h.realtime.Publish(RealtimeMessage{
				SpaceID:   typed.SpaceID,
				EventType: RealtimeEventBranchDeleted,
				BranchID:  typed.BranchID,
				ActorID:   typed.ActorID,
				Timestamp: now,
			})
		}
	}
}

type projectRequestPayload struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleCreateProject(c *gin.Context) {
	var request projectRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	project, err := h.projects.CreateProject(c.Request.Context(), request.Name, h.actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": project.ID, "name": project.Name})
}

type memberRequestPayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *httpHandler) handleAddMember(c *gin.Context) {
	var request memberRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	role := projects.MemberRole(strings.ToLower(strings.TrimSpace(request.Role)))
	err := h.projects.AddMember(c.Request.Context(), c.Param("projectID"), request.UserID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type spaceRequestPayload struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleCreateSpace(c *gin.Context) {
	var request spaceRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	result, err := h.projects.CreateSpace(c.Request.Context(), c.Param("projectID"), request.Name, h.actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"space": gin.H{
			"id":         result.Space.ID,
			"project_id": result.Space.ProjectID,
			"name":       result.Space.Name,
		},
		"default_branch": branchPayloadFrom(result.DefaultBranch),
	})
}

type branchPayload struct {
	ID             string  `json:"id"`
	SpaceID        string  `json:"space_id"`
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	SourceBranchID *string `json:"source_branch_id,omitempty"`
	IsDefault      bool    `json:"is_default"`
	CreatedAt      int64   `json:"created_at_s"`
	UpdatedAt      int64   `json:"updated_at_s"`
}

func branchPayloadFrom(branch branches.Branch) branchPayload {
	return branchPayload{
		ID:             branch.ID,
		SpaceID:        branch.SpaceID,
		Name:           branch.Name,
		Slug:           branch.Slug,
		SourceBranchID: branch.SourceBranchID,
		IsDefault:      branch.IsDefault,
		CreatedAt:      branch.CreatedAt.Unix(),
		UpdatedAt:      branch.UpdatedAt.Unix(),
	}
}

func (h *httpHandler) handleListBranches(c *gin.Context) {
	result, err := h.branches.ListBranches(c.Request.Context(), c.Param("spaceID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload := make([]branchPayload, 0, len(result))
	for _, branch := range result {
		payload = append(payload, branchPayloadFrom(branch))
	}
	c.JSON(http.StatusOK, gin.H{"branches": payload})
}

type createBranchPayload struct {
	Name           string `json:"name"`
	SourceBranchID string `json:"source_branch_id"`
}

func (h *httpHandler) handleCreateBranch(c *gin.Context) {
	var request createBranchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	result, err := h.branches.CreateBranch(
		c.Request.Context(),
		request.Name,
		c.Param("spaceID"),
		request.SourceBranchID,
		h.actorID(c),
	)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.publishEvents(result.Events)
	c.JSON(http.StatusCreated, gin.H{
		"branch":      branchPayloadFrom(result.Branch),
		"copied_keys": result.CopiedKeys,
	})
}

func (h *httpHandler) handleGetBranch(c *gin.Context) {
	branch, err := h.branches.GetBranch(c.Request.Context(), c.Param("branchID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, branchPayloadFrom(branch))
}

func (h *httpHandler) handleDeleteBranch(c *gin.Context) {
	events, err := h.branches.DeleteBranch(c.Request.Context(), c.Param("branchID"), h.actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.publishEvents(events)
	c.Status(http.StatusNoContent)
}

type translationPayload struct {
	Language string `json:"language"`
	Value    string `json:"value"`
	Status   string `json:"status"`
}

type keyPayload struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Namespace    *string              `json:"namespace,omitempty"`
	Description  *string              `json:"description,omitempty"`
	Translations []translationPayload `json:"translations"`
}

func (h *httpHandler) handleListKeys(c *gin.Context) {
	keys, err := h.branches.ListKeys(c.Request.Context(), c.Param("branchID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload := make([]keyPayload, 0, len(keys))
	for _, key := range keys {
		translations := make([]translationPayload, 0, len(key.Translations))
		for _, translation := range key.Translations {
			translations = append(translations, translationPayload{
				Language: translation.Language,
				Value:    translation.Value,
				Status:   string(translation.Status),
			})
		}
		payload = append(payload, keyPayload{
			ID:           key.ID,
			Name:         key.Name,
			Namespace:    key.Namespace,
			Description:  key.Description,
			Translations: translations,
		})
	}
	c.JSON(http.StatusOK, gin.H{"keys": payload})
}

type createKeyPayload struct {
	Name        string  `json:"name"`
	Namespace   *string `json:"namespace"`
	Description *string `json:"description"`
}

func (h *httpHandler) handleCreateKey(c *gin.Context) {
	var request createKeyPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	key, err := h.branches.CreateKey(
		c.Request.Context(),
		c.Param("branchID"),
		request.Name,
		request.Namespace,
		request.Description,
	)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": key.ID, "name": key.Name})
}

type upsertTranslationPayload struct {
	Value  string `json:"value"`
	Status string `json:"status"`
}

func (h *httpHandler) handleUpsertTranslation(c *gin.Context) {
	var request upsertTranslationPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	status, err := branches.ParseTranslationStatus(request.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}
	translation, err := h.branches.UpsertTranslation(
		c.Request.Context(),
		c.Param("branchID"),
		c.Param("keyName"),
		c.Param("language"),
		request.Value,
		status,
	)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, translationPayload{
		Language: translation.Language,
		Value:    translation.Value,
		Status:   string(translation.Status),
	})
}

type branchRefPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type diffEntryPayload struct {
	Key          string            `json:"key"`
	Translations map[string]string `json:"translations"`
}

type modifiedEntryPayload struct {
	Key    string            `json:"key"`
	Source map[string]string `json:"source"`
	Target map[string]string `json:"target"`
}

type diffPayload struct {
	Source    branchRefPayload       `json:"source"`
	Target    branchRefPayload       `json:"target"`
	Added     []diffEntryPayload     `json:"added"`
	Modified  []modifiedEntryPayload `json:"modified"`
	Deleted   []diffEntryPayload     `json:"deleted"`
	Conflicts []modifiedEntryPayload `json:"conflicts"`
}

func diffPayloadFrom(diff branches.BranchDiff) diffPayload {
	payload := diffPayload{
		Source:    branchRefPayload{ID: diff.Source.ID, Name: diff.Source.Name},
		Target:    branchRefPayload{ID: diff.Target.ID, Name: diff.Target.Name},
		Added:     make([]diffEntryPayload, 0, len(diff.Added)),
		Modified:  make([]modifiedEntryPayload, 0, len(diff.Modified)),
		Deleted:   make([]diffEntryPayload, 0, len(diff.Deleted)),
		Conflicts: make([]modifiedEntryPayload, 0, len(diff.Conflicts)),
	}
	for _, entry := range diff.Added {
		payload.Added = append(payload.Added, diffEntryPayload{Key: entry.Key, Translations: entry.Translations})
	}
	for _, entry := range diff.Modified {
		payload.Modified = append(payload.Modified, modifiedEntryPayload{Key: entry.Key, Source: entry.Source, Target: entry.Target})
	}
	for _, entry := range diff.Deleted {
		payload.Deleted = append(payload.Deleted, diffEntryPayload{Key: entry.Key, Translations: entry.Translations})
	}
	for _, entry := range diff.Conflicts {
		payload.Conflicts = append(payload.Conflicts, modifiedEntryPayload{Key: entry.Key, Source: entry.Source, Target: entry.Target})
	}
	return payload
}

func (h *httpHandler) handleDiff(c *gin.Context) {
	diff, err := h.branches.ComputeDiff(c.Request.Context(), c.Param("branchID"), c.Param("targetBranchID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, diffPayloadFrom(diff))
}

func (h *httpHandler) handleMergePreview(c *gin.Context) {
	diff, err := h.branches.PreviewMerge(c.Request.Context(), c.Param("branchID"), c.Param("targetBranchID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, diffPayloadFrom(diff))
}

type resolutionPayload struct {
	Key          string            `json:"key"`
	Resolution   string            `json:"resolution"`
	Translations map[string]string `json:"translations,omitempty"`
}

type mergeRequestPayload struct {
	TargetBranchID string              `json:"target_branch_id"`
	Resolutions    []resolutionPayload `json:"resolutions"`
}

func parseResolution(payload resolutionPayload) (branches.ConflictResolution, error) {
	switch strings.ToLower(strings.TrimSpace(payload.Resolution)) {
	case string(branches.ResolutionUseSource):
		return branches.ResolveWithSource(payload.Key), nil
	case string(branches.ResolutionUseTarget):
		return branches.ResolveWithTarget(payload.Key), nil
	case string(branches.ResolutionExplicit):
		return branches.ResolveWithTranslations(payload.Key, payload.Translations), nil
	default:
		return branches.ConflictResolution{}, errUnknownResolutionValue
	}
}

func (h *httpHandler) handleMerge(c *gin.Context) {
	var request mergeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.TargetBranchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	resolutions := make([]branches.ConflictResolution, 0, len(request.Resolutions))
	for _, payload := range request.Resolutions {
		resolution, err := parseResolution(payload)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_resolution"})
			return
		}
		resolutions = append(resolutions, resolution)
	}

	result, err := h.branches.Merge(c.Request.Context(), c.Param("branchID"), branches.MergeOptions{
		TargetBranchID: request.TargetBranchID,
		Resolutions:    resolutions,
		ActorID:        h.actorID(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.publishEvents(result.Events)

	conflicts := make([]modifiedEntryPayload, 0, len(result.Conflicts))
	for _, entry := range result.Conflicts {
		conflicts = append(conflicts, modifiedEntryPayload{Key: entry.Key, Source: entry.Source, Target: entry.Target})
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   result.Success,
		"merged":    result.Merged,
		"conflicts": conflicts,
	})
}

func (h *httpHandler) handleSpaceEvents(c *gin.Context) {
	stream, cancel := h.realtime.Subscribe(c.Request.Context(), c.Param("spaceID"))
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
