package service

import (
	"sort"
	"time"

	"github.com/fleetops/tms-calendar-api/internal/models"
)

// GridOptions bounds the detailed day/week grid. Rows are SlotMinutes wide
// between DayStartHour and DayEndHour.
type GridOptions struct {
	DayStartHour int
	DayEndHour   int
	SlotMinutes  int
}

func (o GridOptions) normalized() GridOptions {
	if o.SlotMinutes <= 0 {
		o.SlotMinutes = 30
	}
	if o.DayEndHour <= o.DayStartHour {
		o.DayStartHour = 0
		o.DayEndHour = 24
	}
	if o.DayStartHour < 0 {
		o.DayStartHour = 0
	}
	if o.DayEndHour > 24 {
		o.DayEndHour = 24
	}
	return o
}

// RowCount returns the number of slots in one day column.
func (o GridOptions) RowCount() int {
	o = o.normalized()
	return (o.DayEndHour - o.DayStartHour) * 60 / o.SlotMinutes
}

// packColumn lays out one day column: events are converted into row spans,
// clipped to the visible hour range, and greedily assigned lanes so that no
// two concurrently active events share a lane. Widths are reconciled per
// overlap cluster, so every member of a cluster divides the column by the
// cluster's lane count.
func packColumn(day time.Time, column int, events []models.Event, opts GridOptions) []models.PositionedEvent {
	if len(events) == 0 {
		return nil
	}
	opts = opts.normalized()
	rows := opts.RowCount()

	positioned := make([]models.PositionedEvent, 0, len(events))
	for _, ev := range events {
		start, end, clipped := rowSpan(day, ev, opts, rows)
		positioned = append(positioned, models.PositionedEvent{
			Event:    ev,
			Column:   column,
			StartRow: start,
			EndRow:   end,
			Clipped:  clipped,
		})
	}

	// Longer events starting at the same row are placed first so they anchor
	// lane 0 of their cluster.
	sort.SliceStable(positioned, func(i, j int) bool {
		if positioned[i].StartRow != positioned[j].StartRow {
			return positioned[i].StartRow < positioned[j].StartRow
		}
		return positioned[i].EndRow > positioned[j].EndRow
	})

	assignLanes(positioned)
	reconcileClusterWidths(positioned)
	return positioned
}

// rowSpan converts an event interval into [startRow, endRow) within the grid.
// Events outside the visible range are clamped to the nearest boundary and
// keep at least one row so they stay visible.
func rowSpan(day time.Time, ev models.Event, opts GridOptions, rows int) (int, int, bool) {
	if ev.AllDay {
		return 0, rows, false
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), opts.DayStartHour, 0, 0, 0, day.Location())
	slot := time.Duration(opts.SlotMinutes) * time.Minute

	start := int(ev.StartAt.Sub(dayStart) / slot)
	end := int((ev.EndAt.Sub(dayStart) + slot - 1) / slot)

	clipped := false
	if start < 0 {
		start = 0
		clipped = true
	}
	if start > rows-1 {
		start = rows - 1
		clipped = true
	}
	if end > rows {
		end = rows
		clipped = true
	}
	if end <= start {
		end = start + 1
	}
	return start, end, clipped
}

// assignLanes gives each entry the lowest lane not occupied by a previously
// placed, still-overlapping entry. Entries must already be sorted by
// (StartRow asc, EndRow desc).
func assignLanes(entries []models.PositionedEvent) {
	for i := range entries {
		taken := map[int]bool{}
		for j := 0; j < i; j++ {
			if rowsOverlap(entries[i], entries[j]) {
				taken[entries[j].Offset] = true
			}
		}
		lane := 0
		for taken[lane] {
			lane++
		}
		entries[i].Offset = lane
	}
}

// reconcileClusterWidths discovers maximal clusters of transitively
// overlapping entries and sets every member's width to 1/lanes for that
// cluster. Placing a later event therefore shrinks earlier members of the
// same cluster, matching the even-division invariant.
func reconcileClusterWidths(entries []models.PositionedEvent) {
	n := len(entries)
	if n == 0 {
		return
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entries[order[a]].StartRow < entries[order[b]].StartRow
	})

	// Interval sweep: entries sorted by start row form one cluster as long as
	// each next entry starts before the running maximum end row.
	cluster := []int{order[0]}
	clusterEnd := entries[order[0]].EndRow
	flush := func() {
		lanes := 0
		for _, idx := range cluster {
			if entries[idx].Offset+1 > lanes {
				lanes = entries[idx].Offset + 1
			}
		}
		width := 1.0 / float64(lanes)
		for _, idx := range cluster {
			entries[idx].Width = width
		}
	}
	for _, idx := range order[1:] {
		if entries[idx].StartRow < clusterEnd {
			cluster = append(cluster, idx)
			if entries[idx].EndRow > clusterEnd {
				clusterEnd = entries[idx].EndRow
			}
			continue
		}
		flush()
		cluster = []int{idx}
		clusterEnd = entries[idx].EndRow
	}
	flush()
}

func rowsOverlap(a, b models.PositionedEvent) bool {
	return a.StartRow < b.EndRow && b.StartRow < a.EndRow
}
