package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akademik-fk/curriculum-api/internal/service"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
	"github.com/akademik-fk/curriculum-api/pkg/response"
)

type importService interface {
	ImportWorkbook(ctx context.Context, r io.Reader) (*service.ImportResult, error)
}

// ImportHandler accepts an XLSX workbook of schedule rows via multipart
// upload and imports it atomically.
type ImportHandler struct {
	service     importService
	maxFileSize int64
}

// NewImportHandler constructs handler.
func NewImportHandler(svc importService, maxFileSize int64) *ImportHandler {
	if maxFileSize <= 0 {
		maxFileSize = 8 << 20
	}
	return &ImportHandler{service: svc, maxFileSize: maxFileSize}
}

// Import handles POST of a workbook under the "file" form field. Any
// failing row fails the whole upload and the response lists every row
// error.
func (h *ImportHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "a workbook must be uploaded in the \"file\" field"))
		return
	}
	if header.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "uploaded file exceeds the size limit"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.service.ImportWorkbook(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
