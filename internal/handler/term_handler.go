package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/pkg/response"
)

type termScheduleService interface {
	List(ctx context.Context, termID string) ([]models.Entry, error)
	ExportCSV(ctx context.Context, termID string) ([]byte, error)
	ExportPDF(ctx context.Context, termID string) ([]byte, error)
}

// TermHandler exposes the unified cross-kind schedule of one academic
// term, as JSON and as CSV/PDF downloads.
type TermHandler struct {
	service termScheduleService
}

// NewTermHandler constructs a term handler.
func NewTermHandler(svc termScheduleService) *TermHandler {
	return &TermHandler{service: svc}
}

// Schedule lists every entry of every kind in the term, ordered by
// date and start time.
func (h *TermHandler) Schedule(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportCSV downloads the term schedule as CSV.
func (h *TermHandler) ExportCSV(c *gin.Context) {
	termID := c.Param("id")
	out, err := h.service.ExportCSV(c.Request.Context(), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=jadwal-%s.csv", termID))
	c.Data(http.StatusOK, "text/csv", out)
}

// ExportPDF downloads the term schedule as PDF.
func (h *TermHandler) ExportPDF(c *gin.Context) {
	termID := c.Param("id")
	out, err := h.service.ExportPDF(c.Request.Context(), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=jadwal-%s.pdf", termID))
	c.Data(http.StatusOK, "application/pdf", out)
}
