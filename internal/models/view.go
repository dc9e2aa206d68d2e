package models

import (
	"fmt"
	"time"
)

// ViewMode selects the calendar granularity.
type ViewMode string

const (
	ViewModeDay   ViewMode = "day"
	ViewModeWeek  ViewMode = "week"
	ViewModeMonth ViewMode = "month"
)

// ParseViewMode rejects anything outside the known granularity set.
func ParseViewMode(raw string) (ViewMode, error) {
	switch ViewMode(raw) {
	case ViewModeDay, ViewModeWeek, ViewModeMonth:
		return ViewMode(raw), nil
	default:
		return "", fmt.Errorf("unknown view mode %q", raw)
	}
}

// ViewState is the transient cursor a calendar consumer navigates with.
type ViewState struct {
	Focus  time.Time
	Mode   ViewMode
	Filter EventFilter
}
