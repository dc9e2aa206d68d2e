package models

import "time"

// PositionedEvent is the layout engine's output for one event in one render
// pass: the event plus its grid placement. Recomputed on every pass, never
// persisted.
type PositionedEvent struct {
	Event    Event   `json:"event"`
	Column   int     `json:"column"`
	StartRow int     `json:"start_row"`
	EndRow   int     `json:"end_row"`
	Offset   int     `json:"offset"`
	Width    float64 `json:"width"`
	// Clipped marks events whose interval extended beyond the visible hour
	// range and was trimmed to the nearest visible slot.
	Clipped bool `json:"clipped,omitempty"`
}

// DayCell summarises one day of the window for month/week rendering. Events
// holds at most the configured visible cap; the rest is reported via Overflow
// so nothing is dropped silently.
type DayCell struct {
	Date     time.Time `json:"date"`
	Events   []Event   `json:"events"`
	Overflow int       `json:"overflow"`
	Total    int       `json:"total"`
}

// CalendarView is the full computed result for one (focus, mode) window.
type CalendarView struct {
	Mode        ViewMode  `json:"mode"`
	Focus       time.Time `json:"focus"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Days        []DayCell `json:"days"`
	// Columns carries the packed day/week grid, one slice per day column in
	// window order. Empty for month mode.
	Columns [][]PositionedEvent `json:"columns,omitempty"`
}
