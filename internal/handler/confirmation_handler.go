package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/internal/service"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
	"github.com/akademik-fk/curriculum-api/pkg/response"
)

type confirmationService interface {
	Apply(ctx context.Context, kind models.Kind, entryID, lecturerID string, req service.ConfirmationRequest) (*models.LecturerAssignment, error)
	Roster(ctx context.Context, kind models.Kind, entryID string) ([]models.LecturerAssignment, error)
	History(ctx context.Context, kind models.Kind, entryID, lecturerID string) ([]models.ConfirmationTransition, error)
}

// ConfirmationHandler exposes lecturer availability confirmation on a
// session's roster.
type ConfirmationHandler struct {
	service confirmationService
}

// NewConfirmationHandler constructs handler.
func NewConfirmationHandler(svc confirmationService) *ConfirmationHandler {
	return &ConfirmationHandler{service: svc}
}

// Roster lists every lecturer assignment on a session, declined ones
// included.
func (h *ConfirmationHandler) Roster(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	roster, err := h.service.Roster(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Apply runs one confirmation action for a lecturer.
func (h *ConfirmationHandler) Apply(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req service.ConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.service.Apply(c.Request.Context(), kind, c.Param("id"), c.Param("lecturerId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// History returns the transition log of one lecturer's confirmation.
func (h *ConfirmationHandler) History(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	history, err := h.service.History(c.Request.Context(), kind, c.Param("id"), c.Param("lecturerId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
