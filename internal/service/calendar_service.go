package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/fleetops/tms-calendar-api/internal/models"
	appErrors "github.com/fleetops/tms-calendar-api/pkg/errors"
)

const viewCachePrefix = "calendar:view:"

type eventLister interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

// CalendarConfig tunes the range/layout engine.
type CalendarConfig struct {
	Grid                  GridOptions
	MaxVisiblePerCell     int
	CompactVisiblePerCell int
	MaxOccurrences        int
	CacheTTL              time.Duration
}

// CalendarService converts (focus date, view mode) into the concrete window,
// day cells and overlap-free event positions for one render pass. When a
// ViewSession is attached, every layout pass runs under its sequence gate:
// a pass superseded by a newer one delivers its result to its own caller but
// never writes cached layout state.
type CalendarService struct {
	store   eventLister
	cache   *CacheService
	metrics *MetricsService
	session *ViewSession
	logger  *zap.Logger
	cfg     CalendarConfig
}

// NewCalendarService constructs the service.
func NewCalendarService(store eventLister, cache *CacheService, metrics *MetricsService, session *ViewSession, cfg CalendarConfig, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxVisiblePerCell <= 0 {
		cfg.MaxVisiblePerCell = 3
	}
	if cfg.CompactVisiblePerCell <= 0 {
		cfg.CompactVisiblePerCell = 2
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = 366
	}
	return &CalendarService{store: store, cache: cache, metrics: metrics, session: session, logger: logger, cfg: cfg}
}

// WindowFor computes the visible date range for a focus date and mode. The
// returned end is exclusive. Month windows are Monday-aligned spans covering
// the whole calendar month, always a multiple of 7 days; week windows run
// Monday through Sunday; day windows cover the single focus day.
func WindowFor(focus time.Time, mode models.ViewMode) (time.Time, time.Time) {
	switch mode {
	case models.ViewModeDay:
		start := startOfDay(focus)
		return start, start.AddDate(0, 0, 1)
	case models.ViewModeWeek:
		start := startOfWeek(focus)
		return start, start.AddDate(0, 0, 7)
	default:
		firstOfMonth := time.Date(focus.Year(), focus.Month(), 1, 0, 0, 0, 0, focus.Location())
		lastOfMonth := firstOfMonth.AddDate(0, 1, -1)
		start := startOfWeek(firstOfMonth)
		end := startOfWeek(lastOfMonth).AddDate(0, 0, 7)
		return start, end
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday 00:00 on or before t.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// BuildView runs one full layout pass: window computation, event retrieval,
// recurrence expansion, day-cell grouping and, for day/week modes, lane
// packing per day column. Compact layouts lower the per-cell visible cap.
func (s *CalendarService) BuildView(ctx context.Context, state models.ViewState, compact bool) (*models.CalendarView, error) {
	if state.Mode == "" {
		state.Mode = models.ViewModeMonth
	}
	start, end := WindowFor(state.Focus, state.Mode)

	key := s.viewCacheKey(state, compact)
	if s.cache.Enabled() {
		var cached models.CalendarView
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	filter := state.Filter
	filter.From = &start
	queryEnd := end.Add(-time.Nanosecond)
	filter.To = &queryEnd

	var seq uint64
	if s.session != nil {
		seq = s.session.BeginRequest()
	}
	gen := s.cache.Generation()

	began := time.Now()
	events, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to query events for window")
	}
	events = s.expandOccurrences(events, start, end)

	visibleCap := s.cfg.MaxVisiblePerCell
	if compact {
		visibleCap = s.cfg.CompactVisiblePerCell
	}

	view := &models.CalendarView{
		Mode:        state.Mode,
		Focus:       startOfDay(state.Focus),
		WindowStart: start,
		WindowEnd:   end,
		Days:        buildDayCells(events, start, end, visibleCap),
	}
	if state.Mode != models.ViewModeMonth {
		view.Columns = s.packWindow(events, start, end)
	}

	if s.metrics != nil {
		s.metrics.ObserveLayoutPass(state.Mode, len(events), time.Since(began))
	}

	// A resolution superseded by a newer request, or computed before an
	// invalidation, must not overwrite newer layout state.
	if s.session != nil && !s.session.Accept(seq) {
		return view, nil
	}
	if s.cache.Enabled() && s.cache.Generation() == gen {
		_ = s.cache.Set(ctx, key, view, s.cfg.CacheTTL)
	}
	return view, nil
}

// expandOccurrences replaces recurring series with their concrete occurrences
// inside [start, end) and drops non-recurring events that do not intersect the
// window. Expansion is capped to guard against runaway rules.
func (s *CalendarService) expandOccurrences(events []models.Event, start, end time.Time) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if ev.RRule == nil || *ev.RRule == "" {
			if ev.EndAt.After(start) && ev.StartAt.Before(end) {
				out = append(out, ev)
			}
			continue
		}
		rule, err := rrule.StrToRRule(*ev.RRule)
		if err != nil {
			s.logger.Warn("skipping unparsable recurrence rule",
				zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		rule.DTStart(ev.StartAt)
		duration := ev.Duration()
		times := rule.Between(start.Add(-duration), end.Add(-time.Nanosecond), true)
		for i, occStart := range times {
			if i >= s.cfg.MaxOccurrences {
				s.logger.Warn("recurrence expansion capped",
					zap.String("event_id", ev.ID), zap.Int("cap", s.cfg.MaxOccurrences))
				break
			}
			occ := ev
			occ.StartAt = occStart
			occ.EndAt = occStart.Add(duration)
			if !occ.EndAt.After(start) || !occ.StartAt.Before(end) {
				continue
			}
			if !occStart.Equal(ev.StartAt) {
				occ.ID = fmt.Sprintf("%s:%s", ev.ID, occStart.UTC().Format("20060102T150405Z"))
			}
			out = append(out, occ)
		}
	}
	return out
}

// buildDayCells groups events by their start day, orders each cell by
// priority descending then start time, and truncates to the visible cap. The
// overflow counter always equals total minus shown.
func buildDayCells(events []models.Event, start, end time.Time, visibleCap int) []models.DayCell {
	byDay := make(map[string][]models.Event)
	for _, ev := range events {
		key := startOfDay(ev.StartAt).Format("2006-01-02")
		byDay[key] = append(byDay[key], ev)
	}

	days := int(end.Sub(start).Hours() / 24)
	cells := make([]models.DayCell, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		dayEvents := byDay[date.Format("2006-01-02")]
		sort.SliceStable(dayEvents, func(a, b int) bool {
			if dayEvents[a].Priority.Rank() != dayEvents[b].Priority.Rank() {
				return dayEvents[a].Priority.Rank() > dayEvents[b].Priority.Rank()
			}
			if !dayEvents[a].StartAt.Equal(dayEvents[b].StartAt) {
				return dayEvents[a].StartAt.Before(dayEvents[b].StartAt)
			}
			return dayEvents[a].ID < dayEvents[b].ID
		})
		total := len(dayEvents)
		shown := total
		if shown > visibleCap {
			shown = visibleCap
		}
		cells = append(cells, models.DayCell{
			Date:     date,
			Events:   dayEvents[:shown],
			Overflow: total - shown,
			Total:    total,
		})
	}
	return cells
}

// packWindow runs lane packing independently per day column.
func (s *CalendarService) packWindow(events []models.Event, start, end time.Time) [][]models.PositionedEvent {
	days := int(end.Sub(start).Hours() / 24)
	columns := make([][]models.PositionedEvent, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		next := day.AddDate(0, 0, 1)
		var dayEvents []models.Event
		for _, ev := range events {
			if ev.EndAt.After(day) && ev.StartAt.Before(next) {
				dayEvents = append(dayEvents, ev)
			}
		}
		columns[i] = packColumn(day, i, dayEvents, s.cfg.Grid)
	}
	return columns
}

func (s *CalendarService) viewCacheKey(state models.ViewState, compact bool) string {
	h := fnv.New64a()
	writeIDs := func(ids []string) {
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		fmt.Fprintf(h, "|%s", strings.Join(sorted, ","))
	}
	writeIDs(state.Filter.ClientIDs)
	writeIDs(state.Filter.DriverIDs)
	writeIDs(state.Filter.VehicleIDs)
	statuses := make([]string, len(state.Filter.Statuses))
	for i, st := range state.Filter.Statuses {
		statuses[i] = string(st)
	}
	writeIDs(statuses)
	return fmt.Sprintf("%s%s:%s:compact=%t:f=%x",
		viewCachePrefix, state.Mode, startOfDay(state.Focus).Format("2006-01-02"), compact, h.Sum64())
}
