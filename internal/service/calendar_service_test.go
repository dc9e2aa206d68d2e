package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/tms-calendar-api/internal/models"
	appErrors "github.com/fleetops/tms-calendar-api/pkg/errors"
)

type eventListerStub struct {
	events  []models.Event
	err     error
	calls   int
	filters []models.EventFilter
}

func (s *eventListerStub) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	s.calls++
	s.filters = append(s.filters, filter)
	return s.events, s.err
}

func newCalendarService(store eventLister) *CalendarService {
	return NewCalendarService(store, nil, nil, nil, calendarTestConfig(), nil)
}

func calendarTestConfig() CalendarConfig {
	return CalendarConfig{
		Grid:                  testGrid,
		MaxVisiblePerCell:     3,
		CompactVisiblePerCell: 2,
	}
}

func TestWindowForMonthIsMondayAlignedMultipleOfSeven(t *testing.T) {
	for month := time.January; month <= time.December; month++ {
		for _, day := range []int{1, 15, 28} {
			focus := time.Date(2025, month, day, 0, 0, 0, 0, time.UTC)
			start, end := WindowFor(focus, models.ViewModeMonth)

			days := int(end.Sub(start).Hours() / 24)
			assert.Equal(t, 0, days%7, "window for %s must be a multiple of 7 days", focus)
			assert.Equal(t, time.Monday, start.Weekday())
			assert.Equal(t, time.Sunday, end.AddDate(0, 0, -1).Weekday())

			firstOfMonth := time.Date(2025, month, 1, 0, 0, 0, 0, time.UTC)
			lastOfMonth := firstOfMonth.AddDate(0, 1, -1)
			assert.False(t, start.After(firstOfMonth), "window must include the 1st")
			assert.True(t, end.After(lastOfMonth), "window must include the last day")
		}
	}
}

func TestWindowForWeekAndDay(t *testing.T) {
	// A Thursday.
	focus := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)

	start, end := WindowFor(focus, models.ViewModeWeek)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), end)

	start, end = WindowFor(focus, models.ViewModeDay)
	assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), end)
}

func TestBuildDayCellsOverflowNeverDropsEvents(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	var events []models.Event
	priorities := []models.EventPriority{
		models.EventPriorityLow, models.EventPriorityHigh, models.EventPriorityMedium,
		models.EventPriorityLow, models.EventPriorityHigh,
	}
	for i, p := range priorities {
		ev := timedEvent(string(rune('a'+i)), day.Add(time.Duration(8+i)*time.Hour), day.Add(time.Duration(9+i)*time.Hour))
		ev.Priority = p
		events = append(events, ev)
	}

	cells := buildDayCells(events, day, day.AddDate(0, 0, 1), 3)
	require.Len(t, cells, 1)
	cell := cells[0]

	assert.Equal(t, 5, cell.Total)
	assert.Len(t, cell.Events, 3)
	assert.Equal(t, 2, cell.Overflow)
	assert.Equal(t, cell.Total-len(cell.Events), cell.Overflow)

	// High priority events surface before the truncation point.
	assert.Equal(t, models.EventPriorityHigh, cell.Events[0].Priority)
	assert.Equal(t, models.EventPriorityHigh, cell.Events[1].Priority)
	assert.Equal(t, models.EventPriorityMedium, cell.Events[2].Priority)
}

func TestBuildDayCellsUnderCapHasZeroOverflow(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []models.Event{timedEvent("a", day.Add(9*time.Hour), day.Add(10*time.Hour))}

	cells := buildDayCells(events, day, day.AddDate(0, 0, 1), 3)
	require.Len(t, cells, 1)
	assert.Equal(t, 1, cells[0].Total)
	assert.Equal(t, 0, cells[0].Overflow)
}

func TestBuildViewEmptyWeekIsNotAnError(t *testing.T) {
	store := &eventListerStub{}
	svc := newCalendarService(store)

	view, err := svc.BuildView(context.Background(), models.ViewState{
		Focus: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC),
		Mode:  models.ViewModeWeek,
	}, false)

	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Len(t, view.Days, 7)
	for _, cell := range view.Days {
		assert.Empty(t, cell.Events)
		assert.Zero(t, cell.Overflow)
	}
	assert.Len(t, view.Columns, 7)
}

func TestBuildViewQueryFailureIsDistinguishable(t *testing.T) {
	store := &eventListerStub{err: errors.New("connection refused")}
	svc := newCalendarService(store)

	view, err := svc.BuildView(context.Background(), models.ViewState{
		Focus: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC),
		Mode:  models.ViewModeWeek,
	}, false)

	require.Error(t, err)
	assert.Nil(t, view)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErr.Code)
}

func TestBuildViewWeekPacksOverlaps(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &eventListerStub{events: []models.Event{
		timedEvent("a", dayAt(9, 0), dayAt(11, 0)),
		timedEvent("b", dayAt(9, 30), dayAt(10, 30)),
		timedEvent("c", dayAt(10, 0), dayAt(12, 0)),
	}}
	svc := newCalendarService(store)

	view, err := svc.BuildView(context.Background(), models.ViewState{Focus: day, Mode: models.ViewModeWeek}, false)
	require.NoError(t, err)
	require.Len(t, view.Columns, 7)

	monday := view.Columns[0]
	require.Len(t, monday, 3)
	offsets := map[int]bool{}
	for _, p := range monday {
		offsets[p.Offset] = true
		assert.InDelta(t, 1.0/3.0, p.Width, 1e-9)
	}
	assert.Len(t, offsets, 3)
}

func TestBuildViewQueriesWindowRange(t *testing.T) {
	store := &eventListerStub{}
	svc := newCalendarService(store)
	focus := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

	_, err := svc.BuildView(context.Background(), models.ViewState{Focus: focus, Mode: models.ViewModeMonth}, false)
	require.NoError(t, err)
	require.Len(t, store.filters, 1)

	filter := store.filters[0]
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.Equal(t, time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC), *filter.From)
	assert.True(t, filter.To.Before(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
}

func TestBuildViewExpandsRecurringEvents(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	rule := "FREQ=DAILY;COUNT=10"
	base := timedEvent("series", dayAt(9, 0), dayAt(10, 0))
	base.RRule = &rule
	store := &eventListerStub{events: []models.Event{base}}
	svc := newCalendarService(store)

	view, err := svc.BuildView(context.Background(), models.ViewState{Focus: monday, Mode: models.ViewModeWeek}, false)
	require.NoError(t, err)
	require.Len(t, view.Days, 7)

	for i, cell := range view.Days {
		require.Len(t, cell.Events, 1, "day %d should carry one occurrence", i)
		occ := cell.Events[0]
		assert.Equal(t, 9, occ.StartAt.Hour())
		assert.Equal(t, time.Hour, occ.EndAt.Sub(occ.StartAt))
		if i == 0 {
			assert.Equal(t, "series", occ.ID)
		} else {
			assert.NotEqual(t, "series", occ.ID)
			assert.Contains(t, occ.ID, "series:")
		}
	}
}

func TestBuildViewSkipsUnparsableRecurrence(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	bad := "FREQ=NONSENSE"
	ev := timedEvent("broken", dayAt(9, 0), dayAt(10, 0))
	ev.RRule = &bad
	store := &eventListerStub{events: []models.Event{ev}}
	svc := newCalendarService(store)

	view, err := svc.BuildView(context.Background(), models.ViewState{Focus: monday, Mode: models.ViewModeWeek}, false)
	require.NoError(t, err)
	for _, cell := range view.Days {
		assert.Empty(t, cell.Events)
	}
}

// invalidatingLister invalidates the view cache while its window query is in
// flight, modelling a delete that lands between the read and the cache write.
type invalidatingLister struct {
	cache  *CacheService
	events []models.Event
	calls  int
}

func (l *invalidatingLister) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	l.calls++
	_ = l.cache.InvalidatePattern(ctx, viewCachePrefix+"*")
	return l.events, nil
}

// supersededLister issues a newer session request while an older window query
// is still resolving.
type supersededLister struct {
	session *ViewSession
	events  []models.Event
}

func (l *supersededLister) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	l.session.BeginRequest()
	return l.events, nil
}

func TestBuildViewCachesResultWhenCurrent(t *testing.T) {
	cacheRepo := &cacheRepoStub{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	session := NewViewSession(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), models.ViewModeWeek)
	store := &eventListerStub{events: []models.Event{timedEvent("evt-1", dayAt(9, 0), dayAt(10, 0))}}
	svc := NewCalendarService(store, cache, nil, session, calendarTestConfig(), nil)

	_, err := svc.BuildView(context.Background(), session.State(), false)
	require.NoError(t, err)
	assert.Len(t, cacheRepo.setKeys, 1)
}

func TestBuildViewStaleResolutionDoesNotRepopulateCache(t *testing.T) {
	cacheRepo := &cacheRepoStub{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	lister := &invalidatingLister{
		cache:  cache,
		events: []models.Event{timedEvent("deleted", dayAt(9, 0), dayAt(10, 0))},
	}
	svc := NewCalendarService(lister, cache, nil, nil, calendarTestConfig(), nil)
	state := models.ViewState{Focus: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), Mode: models.ViewModeWeek}

	view, err := svc.BuildView(context.Background(), state, false)
	require.NoError(t, err)
	require.NotNil(t, view, "the in-flight caller still gets its result")
	assert.Empty(t, cacheRepo.setKeys,
		"a result computed before the invalidation must not be written back")

	// The next pass recomputes from the store instead of serving stale state.
	_, err = svc.BuildView(context.Background(), state, false)
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)
}

func TestBuildViewSupersededRequestDoesNotOverwriteCache(t *testing.T) {
	cacheRepo := &cacheRepoStub{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	session := NewViewSession(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), models.ViewModeWeek)
	lister := &supersededLister{
		session: session,
		events:  []models.Event{timedEvent("evt-1", dayAt(9, 0), dayAt(10, 0))},
	}
	svc := NewCalendarService(lister, cache, nil, session, calendarTestConfig(), nil)

	view, err := svc.BuildView(context.Background(), session.State(), false)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Empty(t, cacheRepo.setKeys,
		"a resolution overtaken by a newer request must be discarded, not cached")
}

func TestBuildViewCompactLowersVisibleCap(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &eventListerStub{events: []models.Event{
		timedEvent("a", dayAt(8, 0), dayAt(9, 0)),
		timedEvent("b", dayAt(9, 0), dayAt(10, 0)),
		timedEvent("c", dayAt(10, 0), dayAt(11, 0)),
	}}
	svc := newCalendarService(store)

	view, err := svc.BuildView(context.Background(), models.ViewState{Focus: day, Mode: models.ViewModeMonth}, true)
	require.NoError(t, err)

	var cell *models.DayCell
	for i := range view.Days {
		if view.Days[i].Date.Equal(day) {
			cell = &view.Days[i]
		}
	}
	require.NotNil(t, cell)
	assert.Len(t, cell.Events, 2)
	assert.Equal(t, 1, cell.Overflow)
	assert.Equal(t, 3, cell.Total)
}
