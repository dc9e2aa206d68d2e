package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/tms-calendar-api/internal/models"
)

var testGrid = GridOptions{DayStartHour: 6, DayEndHour: 22, SlotMinutes: 30}

func dayAt(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func timedEvent(id string, start, end time.Time) models.Event {
	return models.Event{
		ID:         id,
		Title:      id,
		StartAt:    start,
		EndAt:      end,
		Status:     models.EventStatusBooked,
		Priority:   models.EventPriorityMedium,
		ClientID:   "client-1",
		ClientName: "Acme Haulage",
	}
}

func TestPackColumnThreeWayOverlap(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []models.Event{
		timedEvent("a", dayAt(9, 0), dayAt(11, 0)),
		timedEvent("b", dayAt(9, 30), dayAt(10, 30)),
		timedEvent("c", dayAt(10, 0), dayAt(12, 0)),
	}

	packed := packColumn(day, 0, events, testGrid)
	require.Len(t, packed, 3)

	byID := map[string]models.PositionedEvent{}
	for _, p := range packed {
		byID[p.Event.ID] = p
	}

	assert.Equal(t, 0, byID["a"].Offset)
	assert.Equal(t, 1, byID["b"].Offset)
	assert.Equal(t, 2, byID["c"].Offset)
	for _, p := range packed {
		assert.InDelta(t, 1.0/3.0, p.Width, 1e-9)
		assert.Equal(t, 0, p.Column)
	}
}

func TestPackColumnNoLaneCollisions(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []models.Event{
		timedEvent("a", dayAt(8, 0), dayAt(10, 0)),
		timedEvent("b", dayAt(8, 0), dayAt(9, 0)),
		timedEvent("c", dayAt(9, 0), dayAt(11, 0)),
		timedEvent("d", dayAt(10, 30), dayAt(12, 0)),
		timedEvent("e", dayAt(11, 0), dayAt(13, 0)),
	}

	packed := packColumn(day, 2, events, testGrid)
	require.Len(t, packed, 5)

	for i := 0; i < len(packed); i++ {
		for j := i + 1; j < len(packed); j++ {
			a, b := packed[i], packed[j]
			if a.StartRow < b.EndRow && b.StartRow < a.EndRow {
				assert.NotEqual(t, a.Offset, b.Offset,
					"%s and %s overlap but share lane %d", a.Event.ID, b.Event.ID, a.Offset)
			}
		}
	}
}

func TestPackColumnSeparateClustersKeepFullWidth(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []models.Event{
		timedEvent("morning-1", dayAt(8, 0), dayAt(9, 0)),
		timedEvent("morning-2", dayAt(8, 30), dayAt(9, 30)),
		timedEvent("evening", dayAt(18, 0), dayAt(19, 0)),
	}

	packed := packColumn(day, 0, events, testGrid)
	byID := map[string]models.PositionedEvent{}
	for _, p := range packed {
		byID[p.Event.ID] = p
	}

	assert.InDelta(t, 0.5, byID["morning-1"].Width, 1e-9)
	assert.InDelta(t, 0.5, byID["morning-2"].Width, 1e-9)
	assert.InDelta(t, 1.0, byID["evening"].Width, 1e-9)
	assert.Equal(t, 0, byID["evening"].Offset)
}

func TestPackColumnLaterEventShrinksEarlierClusterMembers(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	// The third event only overlaps the second, but all three are one
	// transitive cluster, so every width must be reconciled to 1/2 or 1/3
	// depending on the lane count the cluster actually needs.
	events := []models.Event{
		timedEvent("a", dayAt(9, 0), dayAt(10, 0)),
		timedEvent("b", dayAt(9, 30), dayAt(11, 0)),
		timedEvent("c", dayAt(10, 0), dayAt(12, 0)),
	}

	packed := packColumn(day, 0, events, testGrid)
	byID := map[string]models.PositionedEvent{}
	for _, p := range packed {
		byID[p.Event.ID] = p
	}

	// c reuses lane 0 after a closes, so the cluster needs two lanes and
	// every member renders at half width.
	assert.Equal(t, 0, byID["a"].Offset)
	assert.Equal(t, 1, byID["b"].Offset)
	assert.Equal(t, 0, byID["c"].Offset)
	for _, p := range packed {
		assert.InDelta(t, 0.5, p.Width, 1e-9)
	}
}

func TestPackColumnClipsOutsideVisibleHours(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []models.Event{
		timedEvent("early", dayAt(4, 0), dayAt(7, 0)),
		timedEvent("late", dayAt(21, 0), dayAt(23, 30)),
		timedEvent("before-grid", dayAt(3, 0), dayAt(5, 0)),
	}

	packed := packColumn(day, 0, events, testGrid)
	require.Len(t, packed, 3, "clipped events must never be discarded")

	rows := testGrid.RowCount()
	byID := map[string]models.PositionedEvent{}
	for _, p := range packed {
		byID[p.Event.ID] = p
		assert.GreaterOrEqual(t, p.StartRow, 0)
		assert.LessOrEqual(t, p.EndRow, rows)
		assert.Less(t, p.StartRow, p.EndRow)
	}
	assert.True(t, byID["early"].Clipped)
	assert.True(t, byID["late"].Clipped)
	assert.True(t, byID["before-grid"].Clipped)
	assert.Equal(t, 0, byID["early"].StartRow)
	assert.Equal(t, rows, byID["late"].EndRow)
}

func TestPackColumnAllDaySpansGrid(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ev := timedEvent("all-day", day, day.AddDate(0, 0, 1))
	ev.AllDay = true

	packed := packColumn(day, 0, []models.Event{ev}, testGrid)
	require.Len(t, packed, 1)
	assert.Equal(t, 0, packed[0].StartRow)
	assert.Equal(t, testGrid.RowCount(), packed[0].EndRow)
	assert.False(t, packed[0].Clipped)
}
