package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fleetops/tms-calendar-api/internal/models"
)

const eventColumns = `id, title, start_at, end_at, all_day, status, priority,
client_id, client_name, vehicle_id, vehicle_name, driver_id, driver_name,
color, pickup_location, pickup_lat, pickup_lng, delivery_location, delivery_lat, delivery_lng,
rrule, created_at, updated_at`

// EventRepository persists dispatch calendar events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs an event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns events whose interval intersects the filter range, narrowed by
// the optional relation and status filters. Recurring series whose base row
// starts before the range end are always included so occurrences can be
// expanded by the caller. An empty result is a nil slice, not an error.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.From != nil && filter.To != nil {
		where = append(where, fmt.Sprintf("((end_at >= $%d AND start_at <= $%d) OR (rrule IS NOT NULL AND start_at <= $%d))",
			len(args)+1, len(args)+2, len(args)+2))
		args = append(args, *filter.From, *filter.To)
	} else {
		if filter.From != nil {
			where = append(where, fmt.Sprintf("end_at >= $%d", len(args)+1))
			args = append(args, *filter.From)
		}
		if filter.To != nil {
			where = append(where, fmt.Sprintf("start_at <= $%d", len(args)+1))
			args = append(args, *filter.To)
		}
	}
	if len(filter.ClientIDs) > 0 {
		where = append(where, fmt.Sprintf("client_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.ClientIDs))
	}
	if len(filter.DriverIDs) > 0 {
		where = append(where, fmt.Sprintf("driver_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.DriverIDs))
	}
	if len(filter.VehicleIDs) > 0 {
		where = append(where, fmt.Sprintf("vehicle_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.VehicleIDs))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}

	query := fmt.Sprintf("SELECT %s FROM events WHERE %s ORDER BY start_at ASC, id ASC",
		eventColumns, strings.Join(where, " AND "))
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetByID fetches a single event.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events WHERE id = $1", eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts an event, assigning a fresh id when absent.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	query := `INSERT INTO events (id, title, start_at, end_at, all_day, status, priority,
client_id, client_name, vehicle_id, vehicle_name, driver_id, driver_name,
color, pickup_location, pickup_lat, pickup_lng, delivery_location, delivery_lat, delivery_lng,
rrule, created_at, updated_at)
VALUES (:id, :title, :start_at, :end_at, :all_day, :status, :priority,
:client_id, :client_name, :vehicle_id, :vehicle_name, :driver_id, :driver_name,
:color, :pickup_location, :pickup_lat, :pickup_lng, :delivery_location, :delivery_lat, :delivery_lng,
:rrule, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update writes the full event row. Callers merge partial updates onto a
// freshly loaded event before calling this.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	query := `UPDATE events SET title = :title, start_at = :start_at, end_at = :end_at, all_day = :all_day,
status = :status, priority = :priority, client_id = :client_id, client_name = :client_name,
vehicle_id = :vehicle_id, vehicle_name = :vehicle_name, driver_id = :driver_id, driver_name = :driver_name,
color = :color, pickup_location = :pickup_location, pickup_lat = :pickup_lat, pickup_lng = :pickup_lng,
delivery_location = :delivery_location, delivery_lat = :delivery_lat, delivery_lng = :delivery_lng,
rrule = :rrule, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateSchedule moves an event, touching only its temporal columns.
func (r *EventRepository) UpdateSchedule(ctx context.Context, id string, startAt, endAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE events SET start_at = $1, end_at = $2, updated_at = $3 WHERE id = $4",
		startAt, endAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("move event: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an event.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TransitionStatuses rolls allocated jobs into in_progress once their start
// time passes and in_progress jobs into completed once their end time passes.
// Jobs flagged with issues are left for a dispatcher to resolve.
func (r *EventRepository) TransitionStatuses(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	res, err := r.db.ExecContext(ctx,
		"UPDATE events SET status = $1, updated_at = $2 WHERE status = $3 AND start_at <= $2 AND end_at > $2",
		string(models.EventStatusInProgress), now.UTC(), string(models.EventStatusAllocated))
	if err != nil {
		return 0, fmt.Errorf("roll allocated events: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil {
		total += affected
	}
	res, err = r.db.ExecContext(ctx,
		"UPDATE events SET status = $1, updated_at = $2 WHERE status = $3 AND end_at <= $2",
		string(models.EventStatusCompleted), now.UTC(), string(models.EventStatusInProgress))
	if err != nil {
		return total, fmt.Errorf("complete finished events: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil {
		total += affected
	}
	return total, nil
}
