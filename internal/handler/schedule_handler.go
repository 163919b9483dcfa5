package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/internal/service"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
	"github.com/akademik-fk/curriculum-api/pkg/response"
)

type scheduleService interface {
	Create(ctx context.Context, kind models.Kind, req service.SessionRequest) (*models.Session, error)
	Update(ctx context.Context, kind models.Kind, id string, req service.UpdateSessionRequest) (*models.Session, error)
	DryRun(ctx context.Context, kind models.Kind, req service.SessionRequest) (*service.ValidationResult, error)
	Get(ctx context.Context, kind models.Kind, id string) (*models.Session, error)
	List(ctx context.Context, kind models.Kind, filter models.SessionFilter) ([]models.Session, int, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
}

// ScheduleHandler exposes session CRUD for every schedule kind. The
// kind is a path segment ("csr", "pbl", "kuliah-besar", ...) so all
// nine kinds share one route tree.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// kindParam parses the :kind path segment; unknown kinds 404 rather
// than 400, the route simply does not exist.
func kindParam(c *gin.Context) (models.Kind, bool) {
	kind, ok := models.ParseKind(c.Param("kind"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown schedule kind "+c.Param("kind")))
		return "", false
	}
	return kind, true
}

// List returns sessions of one kind.
func (h *ScheduleHandler) List(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}

	var filter models.SessionFilter
	filter.TermID = c.Query("termId")
	filter.CourseCode = c.Query("courseCode")
	filter.RoomID = c.Query("roomId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	sessions, total, err := h.service.List(c.Request.Context(), kind, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get returns one session.
func (h *ScheduleHandler) Get(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	session, err := h.service.Get(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Create validates and persists a session; a conflicting or oversized
// session is rejected with the structured reason.
func (h *ScheduleHandler) Create(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req service.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.service.Create(c.Request.Context(), kind, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Validate dry-runs a payload without persisting anything.
func (h *ScheduleHandler) Validate(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req service.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.DryRun(c.Request.Context(), kind, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update edits a session's slot and resources.
func (h *ScheduleHandler) Update(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req service.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.service.Update(c.Request.Context(), kind, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete removes a session and frees its slots.
func (h *ScheduleHandler) Delete(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), kind, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
