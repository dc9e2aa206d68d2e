package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetops/tms-calendar-api/internal/models"
	"github.com/fleetops/tms-calendar-api/internal/service"
	appErrors "github.com/fleetops/tms-calendar-api/pkg/errors"
	"github.com/fleetops/tms-calendar-api/pkg/response"
)

type calendarViewBuilder interface {
	BuildView(ctx context.Context, state models.ViewState, compact bool) (*models.CalendarView, error)
}

// CalendarHandler exposes the computed calendar window. Navigation state lives
// in the ViewSession: focus, mode and filter persist across requests, so a
// bare direction=next continues from wherever the cursor last stood.
type CalendarHandler struct {
	service calendarViewBuilder
	session *service.ViewSession
	now     func() time.Time
}

// NewCalendarHandler constructs the handler around a navigation session.
func NewCalendarHandler(svc calendarViewBuilder, session *service.ViewSession) *CalendarHandler {
	if session == nil {
		session = service.NewViewSession(time.Now().UTC().Truncate(24*time.Hour), models.ViewModeMonth)
	}
	return &CalendarHandler{service: svc, session: session, now: time.Now}
}

// View godoc
// @Summary Computed calendar window
// @Description Returns the visible day sequence and overlap-resolved event positions for a focus date and view mode. Navigation is applied to the session cursor before layout when direction is given.
// @Tags Calendar
// @Produce json
// @Param focus query string false "Focus date (YYYY-MM-DD), session cursor when omitted"
// @Param mode query string false "day | week | month"
// @Param direction query string false "next | previous | today"
// @Param compact query bool false "Use the compact per-cell visible cap"
// @Param client_id query string false "Client IDs (repeatable)"
// @Param driver_id query string false "Driver IDs (repeatable)"
// @Param vehicle_id query string false "Vehicle IDs (repeatable)"
// @Param status query string false "Statuses (repeatable)"
// @Success 200 {object} response.Envelope
// @Router /calendar/view [get]
func (h *CalendarHandler) View(c *gin.Context) {
	state, compact, err := h.parseViewQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.BuildView(c.Request.Context(), state, compact)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// parseViewQuery validates the full query before mutating the session, so a
// rejected request leaves the cursor where it was.
func (h *CalendarHandler) parseViewQuery(c *gin.Context) (models.ViewState, bool, error) {
	var mode *models.ViewMode
	if raw := c.Query("mode"); raw != "" {
		parsed, err := models.ParseViewMode(raw)
		if err != nil {
			return models.ViewState{}, false, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		mode = &parsed
	}

	var focus *time.Time
	if raw := c.Query("focus"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return models.ViewState{}, false, err
		}
		focus = parsed
	}

	direction := c.Query("direction")
	switch direction {
	case "", "next", "previous", "today":
	default:
		return models.ViewState{}, false, appErrors.Clone(appErrors.ErrValidation, "direction must be next, previous or today")
	}

	filter, err := parseEventFilter(c)
	if err != nil {
		return models.ViewState{}, false, err
	}

	compact := false
	if raw := c.Query("compact"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return models.ViewState{}, false, appErrors.Clone(appErrors.ErrValidation, "compact must be a boolean")
		}
		compact = parsed
	}

	if mode != nil {
		h.session.SetMode(*mode)
	}
	if focus != nil {
		h.session.Select(*focus)
	}
	switch direction {
	case "next":
		h.session.Next()
	case "previous":
		h.session.Previous()
	case "today":
		h.session.Today(h.now().UTC().Truncate(24 * time.Hour))
	}
	h.session.SetFilter(filter)

	return h.session.State(), compact, nil
}
