package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/tms-calendar-api/internal/models"
)

func newEventMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func eventMockColumns() []string {
	return []string{
		"id", "title", "start_at", "end_at", "all_day", "status", "priority",
		"client_id", "client_name", "vehicle_id", "vehicle_name", "driver_id", "driver_name",
		"color", "pickup_location", "pickup_lat", "pickup_lng", "delivery_location", "delivery_lat", "delivery_lng",
		"rrule", "created_at", "updated_at",
	}
}

func eventMockRow(rows *sqlmock.Rows, id string, start, end time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, "Delivery run", start, end, false, "booked", "medium",
		"client-1", "Acme Logistics", nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil, nil,
		nil, start, start,
	)
}

func TestEventRepositoryListWindowQueryIsIdempotent(t *testing.T) {
	db, mock, cleanup := newEventMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 16, 23, 59, 59, 0, time.UTC)
	filter := models.EventFilter{From: &from, To: &to}

	pattern := regexp.QuoteMeta("((end_at >= $1 AND start_at <= $2) OR (rrule IS NOT NULL AND start_at <= $2)) ORDER BY start_at ASC, id ASC")
	for i := 0; i < 2; i++ {
		rows := sqlmock.NewRows(eventMockColumns())
		eventMockRow(rows, "evt-1", from.Add(9*time.Hour), from.Add(11*time.Hour))
		eventMockRow(rows, "evt-2", from.Add(10*time.Hour), from.Add(12*time.Hour))
		mock.ExpectQuery(pattern).WithArgs(from, to).WillReturnRows(rows)
	}

	first, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	second, err := repo.List(context.Background(), filter)
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "repeated window queries must return identical rows")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListAppliesRelationFilters(t *testing.T) {
	db, mock, cleanup := newEventMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`driver_id = ANY\(\$3\) AND status = ANY\(\$4\)`).
		WithArgs(from, to, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(eventMockColumns()))

	events, err := repo.List(context.Background(), models.EventFilter{
		From:      &from,
		To:        &to,
		DriverIDs: []string{"drv-1"},
		Statuses:  []models.EventStatus{models.EventStatusAllocated},
	})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryCreateAssignsIDAndTimestamps(t *testing.T) {
	db, mock, cleanup := newEventMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.Event{
		Title:      "Delivery run",
		StartAt:    time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC),
		Status:     models.EventStatusBooked,
		Priority:   models.EventPriorityMedium,
		ClientID:   "client-1",
		ClientName: "Acme Logistics",
	}
	err := repo.Create(context.Background(), event)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.False(t, event.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryUpdateScheduleTouchesOnlyTemporalColumns(t *testing.T) {
	db, mock, cleanup := newEventMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	start := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 11, 16, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET start_at = $1, end_at = $2, updated_at = $3 WHERE id = $4")).
		WithArgs(start, end, sqlmock.AnyArg(), "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSchedule(context.Background(), "evt-1", start, end)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryUpdateScheduleMissingRow(t *testing.T) {
	db, mock, cleanup := newEventMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("UPDATE events SET start_at").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSchedule(context.Background(), "missing",
		time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 11, 16, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newEventMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryTransitionStatuses(t *testing.T) {
	db, mock, cleanup := newEventMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE events SET status").
		WithArgs("in_progress", now, "allocated").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE events SET status").
		WithArgs("completed", now, "in_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := repo.TransitionStatuses(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
