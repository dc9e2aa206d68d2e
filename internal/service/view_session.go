package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetops/tms-calendar-api/internal/models"
)

// ViewSession holds the transient navigation cursor for one calendar
// consumer: focus date, view mode and active filter. Navigation uses
// calendar-aware arithmetic; month steps clamp the day-of-month so stepping
// from Jan 31 lands on Feb 28, never Mar 3.
//
// Queries issued against a session carry a monotonically increasing sequence
// number. Only the newest sequence is accepted when results arrive, so a
// slow, superseded window query can never overwrite newer layout state.
type ViewSession struct {
	mu    sync.Mutex
	state models.ViewState

	seq      atomic.Uint64
	accepted atomic.Uint64

	// OnDateChange, when set, is invoked after Today and Select so a sibling
	// selection can stay in sync.
	OnDateChange func(time.Time)
}

// NewViewSession builds a session focused on the given date.
func NewViewSession(focus time.Time, mode models.ViewMode) *ViewSession {
	if mode == "" {
		mode = models.ViewModeMonth
	}
	return &ViewSession{state: models.ViewState{Focus: focus, Mode: mode}}
}

// State returns a copy of the current view state.
func (s *ViewSession) State() models.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetFilter replaces the active event filter.
func (s *ViewSession) SetFilter(filter models.EventFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Filter = filter
}

// SetMode switches the view granularity.
func (s *ViewSession) SetMode(mode models.ViewMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Mode = mode
}

// Next advances the focus by one unit of the current mode.
func (s *ViewSession) Next() models.ViewState {
	return s.step(1)
}

// Previous moves the focus back by one unit of the current mode.
func (s *ViewSession) Previous() models.ViewState {
	return s.step(-1)
}

func (s *ViewSession) step(direction int) models.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Focus = Navigate(s.state.Focus, s.state.Mode, direction)
	return s.state
}

// Today resets the focus to now and notifies the date listener.
func (s *ViewSession) Today(now time.Time) models.ViewState {
	return s.Select(now)
}

// Select sets an explicit focus date and notifies the date listener.
func (s *ViewSession) Select(date time.Time) models.ViewState {
	s.mu.Lock()
	s.state.Focus = date
	state := s.state
	listener := s.OnDateChange
	s.mu.Unlock()
	if listener != nil {
		listener(date)
	}
	return state
}

// BeginRequest issues a sequence number for a window query about to start.
func (s *ViewSession) BeginRequest() uint64 {
	return s.seq.Add(1)
}

// Accept reports whether a resolved query is still current. Stale results
// must be discarded by the caller; acceptance is recorded so an even older
// result can never slip in afterwards.
func (s *ViewSession) Accept(seq uint64) bool {
	if seq != s.seq.Load() {
		return false
	}
	for {
		prev := s.accepted.Load()
		if seq <= prev {
			return false
		}
		if s.accepted.CompareAndSwap(prev, seq) {
			return true
		}
	}
}

// Navigate shifts a focus date by direction units of the given mode: one day,
// seven days, or one calendar month with the day clamped to the target
// month's length.
func Navigate(focus time.Time, mode models.ViewMode, direction int) time.Time {
	switch mode {
	case models.ViewModeDay:
		return focus.AddDate(0, 0, direction)
	case models.ViewModeWeek:
		return focus.AddDate(0, 0, 7*direction)
	default:
		return addMonthsClamped(focus, direction)
	}
}

// addMonthsClamped anchors the shift at the first of the month and clamps the
// day so months of different lengths never skip or duplicate a step.
func addMonthsClamped(t time.Time, months int) time.Time {
	anchor := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	shifted := anchor.AddDate(0, months, 0)
	day := t.Day()
	if last := daysInMonth(shifted.Year(), shifted.Month()); day > last {
		day = last
	}
	return time.Date(shifted.Year(), shifted.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}
