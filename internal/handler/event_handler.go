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

type eventService interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, req service.CreateEventRequest) (*models.Event, error)
	Update(ctx context.Context, id string, req service.UpdateEventRequest) (*models.Event, error)
	Move(ctx context.Context, id string, req service.MoveEventRequest) (*models.Event, error)
	Delete(ctx context.Context, id string) error
}

// EventHandler exposes event CRUD and move endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs an event handler.
func NewEventHandler(svc eventService) *EventHandler {
	return &EventHandler{service: svc}
}

// List godoc
// @Summary List events
// @Description List events intersecting an optional date range, narrowed by relation and status filters
// @Tags Events
// @Produce json
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Param client_id query string false "Client IDs (repeatable)"
// @Param driver_id query string false "Driver IDs (repeatable)"
// @Param vehicle_id query string false "Vehicle IDs (repeatable)"
// @Param status query string false "Statuses (repeatable)"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	filter, err := parseEventFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	events, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Get godoc
// @Summary Get event detail
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Create godoc
// @Summary Create event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Partially update event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.UpdateEventRequest true "Fields to merge"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [patch]
func (h *EventHandler) Update(c *gin.Context) {
	var req service.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Move godoc
// @Summary Reschedule event
// @Description Changes only the start and end timestamps
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.MoveEventRequest true "New schedule"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/move [post]
func (h *EventHandler) Move(c *gin.Context) {
	var req service.MoveEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.service.Move(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Cancel event
// @Tags Events
// @Param id path string true "Event ID"
// @Success 204
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseEventFilter(c *gin.Context) (models.EventFilter, error) {
	var filter models.EventFilter
	if raw := c.Query("from"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.From = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.To = parsed
	}
	filter.ClientIDs = c.QueryArray("client_id")
	filter.DriverIDs = c.QueryArray("driver_id")
	filter.VehicleIDs = c.QueryArray("vehicle_id")
	for _, raw := range c.QueryArray("status") {
		status := models.EventStatus(raw)
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown status "+raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	return filter, nil
}

func parseDate(raw string) (*time.Time, error) {
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}
