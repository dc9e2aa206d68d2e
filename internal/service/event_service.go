package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/fleetops/tms-calendar-api/internal/models"
	appErrors "github.com/fleetops/tms-calendar-api/pkg/errors"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	UpdateSchedule(ctx context.Context, id string, startAt, endAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// EventService owns authoritative event data: it validates payloads, routes
// mutations to the repository and invalidates computed views on every change.
type EventService struct {
	repo      eventRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(repo eventRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EventService{repo: repo, cache: cache, validator: validate, logger: logger}
	svc.validator.RegisterValidation("eventstatus", func(fl validator.FieldLevel) bool {
		return models.EventStatus(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.EventPriority(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("rrule", func(fl validator.FieldLevel) bool {
		_, err := rrule.StrToRRule(fl.Field().String())
		return err == nil
	})
	return svc
}

// CreateEventRequest describes the create payload.
type CreateEventRequest struct {
	Title    string    `json:"title"`
	StartAt  time.Time `json:"start_at" validate:"required"`
	EndAt    time.Time `json:"end_at" validate:"required"`
	AllDay   bool      `json:"all_day"`
	Status   string    `json:"status" validate:"omitempty,eventstatus"`
	Priority string    `json:"priority" validate:"omitempty,priority"`

	ClientID    string  `json:"client_id" validate:"required"`
	ClientName  string  `json:"client_name" validate:"required"`
	VehicleID   *string `json:"vehicle_id"`
	VehicleName *string `json:"vehicle_name"`
	DriverID    *string `json:"driver_id"`
	DriverName  *string `json:"driver_name"`

	Color            *string  `json:"color"`
	PickupLocation   *string  `json:"pickup_location"`
	PickupLat        *float64 `json:"pickup_lat"`
	PickupLng        *float64 `json:"pickup_lng"`
	DeliveryLocation *string  `json:"delivery_location"`
	DeliveryLat      *float64 `json:"delivery_lat"`
	DeliveryLng      *float64 `json:"delivery_lng"`

	RRule *string `json:"rrule" validate:"omitempty,rrule"`
}

// UpdateEventRequest describes a partial update; nil fields are left as-is.
type UpdateEventRequest struct {
	Title    *string    `json:"title"`
	StartAt  *time.Time `json:"start_at"`
	EndAt    *time.Time `json:"end_at"`
	AllDay   *bool      `json:"all_day"`
	Status   *string    `json:"status" validate:"omitempty,eventstatus"`
	Priority *string    `json:"priority" validate:"omitempty,priority"`

	VehicleID   *string `json:"vehicle_id"`
	VehicleName *string `json:"vehicle_name"`
	DriverID    *string `json:"driver_id"`
	DriverName  *string `json:"driver_name"`

	Color            *string  `json:"color"`
	PickupLocation   *string  `json:"pickup_location"`
	PickupLat        *float64 `json:"pickup_lat"`
	PickupLng        *float64 `json:"pickup_lng"`
	DeliveryLocation *string  `json:"delivery_location"`
	DeliveryLat      *float64 `json:"delivery_lat"`
	DeliveryLng      *float64 `json:"delivery_lng"`

	RRule *string `json:"rrule" validate:"omitempty,rrule"`
}

// MoveEventRequest restricts a mutation to the temporal fields.
type MoveEventRequest struct {
	StartAt time.Time `json:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at" validate:"required"`
}

// List returns events matching the filter. An empty result is a valid,
// empty slice so callers can distinguish "no events" from a failed query.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list events")
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Get returns an event by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get event")
	}
	return event, nil
}

// Create registers a new event and assigns its id.
func (s *EventService) Create(ctx context.Context, req CreateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_at must be after start_at")
	}
	event := &models.Event{
		Title:            req.Title,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		AllDay:           req.AllDay,
		Status:           models.EventStatusBooked,
		Priority:         models.EventPriorityMedium,
		ClientID:         req.ClientID,
		ClientName:       req.ClientName,
		VehicleID:        req.VehicleID,
		VehicleName:      req.VehicleName,
		DriverID:         req.DriverID,
		DriverName:       req.DriverName,
		Color:            req.Color,
		PickupLocation:   req.PickupLocation,
		PickupLat:        req.PickupLat,
		PickupLng:        req.PickupLng,
		DeliveryLocation: req.DeliveryLocation,
		DeliveryLat:      req.DeliveryLat,
		DeliveryLng:      req.DeliveryLng,
		RRule:            req.RRule,
	}
	if req.Status != "" {
		event.Status = models.EventStatus(req.Status)
	}
	if req.Priority != "" {
		event.Priority = models.EventPriority(req.Priority)
	}
	if event.Title == "" {
		event.Title = event.ClientName
	}
	if err := ensureStatusSemantics(event); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.invalidateViews(ctx)
	return event, nil
}

// Update merges the provided fields into the stored event.
func (s *EventService) Update(ctx context.Context, id string, req UpdateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	applyEventPatch(event, req)
	if !event.EndAt.After(event.StartAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_at must be after start_at")
	}
	if err := ensureStatusSemantics(event); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	s.invalidateViews(ctx)
	return event, nil
}

// Move reschedules an event, changing only its start and end.
func (s *EventService) Move(ctx context.Context, id string, req MoveEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_at must be after start_at")
	}
	if err := s.repo.UpdateSchedule(ctx, id, req.StartAt, req.EndAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move event")
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload moved event")
	}
	s.invalidateViews(ctx)
	return event, nil
}

// Delete cancels an event. A missing id surfaces NotFound and leaves state
// untouched; no optimistic removal happens before the store confirms.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	s.invalidateViews(ctx)
	return nil
}

func (s *EventService) invalidateViews(ctx context.Context) {
	if err := s.cache.InvalidatePattern(ctx, viewCachePrefix+"*"); err != nil {
		s.logger.Warn("view cache invalidation failed", zap.Error(err))
	}
}

func applyEventPatch(event *models.Event, req UpdateEventRequest) {
	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.StartAt != nil {
		event.StartAt = *req.StartAt
	}
	if req.EndAt != nil {
		event.EndAt = *req.EndAt
	}
	if req.AllDay != nil {
		event.AllDay = *req.AllDay
	}
	if req.Status != nil {
		event.Status = models.EventStatus(*req.Status)
	}
	if req.Priority != nil {
		event.Priority = models.EventPriority(*req.Priority)
	}
	if req.VehicleID != nil {
		event.VehicleID = req.VehicleID
	}
	if req.VehicleName != nil {
		event.VehicleName = req.VehicleName
	}
	if req.DriverID != nil {
		event.DriverID = req.DriverID
	}
	if req.DriverName != nil {
		event.DriverName = req.DriverName
	}
	if req.Color != nil {
		event.Color = req.Color
	}
	if req.PickupLocation != nil {
		event.PickupLocation = req.PickupLocation
	}
	if req.PickupLat != nil {
		event.PickupLat = req.PickupLat
	}
	if req.PickupLng != nil {
		event.PickupLng = req.PickupLng
	}
	if req.DeliveryLocation != nil {
		event.DeliveryLocation = req.DeliveryLocation
	}
	if req.DeliveryLat != nil {
		event.DeliveryLat = req.DeliveryLat
	}
	if req.DeliveryLng != nil {
		event.DeliveryLng = req.DeliveryLng
	}
	if req.RRule != nil {
		event.RRule = req.RRule
	}
}

// ensureStatusSemantics rejects field combinations that contradict the
// lifecycle: a job past booking must have a driver or vehicle allocated.
func ensureStatusSemantics(event *models.Event) error {
	switch event.Status {
	case models.EventStatusAllocated, models.EventStatusInProgress, models.EventStatusCompleted:
		if event.DriverID == nil && event.VehicleID == nil {
			return appErrors.Clone(appErrors.ErrValidation, "status requires an allocated driver or vehicle")
		}
	}
	return nil
}
