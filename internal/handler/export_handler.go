package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetops/tms-calendar-api/internal/models"
	"github.com/fleetops/tms-calendar-api/internal/service"
	appErrors "github.com/fleetops/tms-calendar-api/pkg/errors"
	"github.com/fleetops/tms-calendar-api/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, state models.ViewState, format service.ExportFormat) (*service.ExportResult, error)
}

// ExportHandler renders a calendar window as CSV, PDF or an iCalendar feed.
type ExportHandler struct {
	service exportService
	now     func() time.Time
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc, now: time.Now}
}

// Export godoc
// @Summary Export calendar window
// @Tags Calendar
// @Produce text/csv,application/pdf,text/calendar
// @Param format query string true "csv | pdf | ics"
// @Param focus query string false "Focus date (YYYY-MM-DD), today when omitted"
// @Param mode query string false "day | week | month (default week)"
// @Success 200 {file} byte
// @Router /calendar/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	state := models.ViewState{Mode: models.ViewModeWeek, Focus: h.now().UTC().Truncate(24 * time.Hour)}
	if raw := c.Query("mode"); raw != "" {
		mode, parseErr := models.ParseViewMode(raw)
		if parseErr != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, parseErr.Error()))
			return
		}
		state.Mode = mode
	}
	if raw := c.Query("focus"); raw != "" {
		parsed, parseErr := parseDate(raw)
		if parseErr != nil {
			response.Error(c, parseErr)
			return
		}
		state.Focus = *parsed
	}
	filter, err := parseEventFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	state.Filter = filter

	result, err := h.service.Export(c.Request.Context(), state, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Body)
}
