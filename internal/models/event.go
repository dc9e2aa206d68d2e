package models

import "time"

// EventStatus tracks where a job sits in the dispatch lifecycle.
type EventStatus string

const (
	EventStatusBooked     EventStatus = "booked"
	EventStatusAllocated  EventStatus = "allocated"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusIssues     EventStatus = "issues"
	EventStatusCompleted  EventStatus = "completed"
)

// Valid reports whether the status is one of the known lifecycle values.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusBooked, EventStatusAllocated, EventStatusInProgress, EventStatusIssues, EventStatusCompleted:
		return true
	default:
		return false
	}
}

// EventPriority orders events within a day cell.
type EventPriority string

const (
	EventPriorityLow    EventPriority = "low"
	EventPriorityMedium EventPriority = "medium"
	EventPriorityHigh   EventPriority = "high"
)

// Valid reports whether the priority is a known value.
func (p EventPriority) Valid() bool {
	switch p {
	case EventPriorityLow, EventPriorityMedium, EventPriorityHigh:
		return true
	default:
		return false
	}
}

// Rank maps priority to a sortable weight, highest first.
func (p EventPriority) Rank() int {
	switch p {
	case EventPriorityHigh:
		return 3
	case EventPriorityMedium:
		return 2
	case EventPriorityLow:
		return 1
	default:
		return 0
	}
}

// Event represents a scheduled job occurrence on the dispatch calendar.
type Event struct {
	ID       string        `db:"id" json:"id"`
	Title    string        `db:"title" json:"title"`
	StartAt  time.Time     `db:"start_at" json:"start_at"`
	EndAt    time.Time     `db:"end_at" json:"end_at"`
	AllDay   bool          `db:"all_day" json:"all_day"`
	Status   EventStatus   `db:"status" json:"status"`
	Priority EventPriority `db:"priority" json:"priority"`

	ClientID    string  `db:"client_id" json:"client_id"`
	ClientName  string  `db:"client_name" json:"client_name"`
	VehicleID   *string `db:"vehicle_id" json:"vehicle_id,omitempty"`
	VehicleName *string `db:"vehicle_name" json:"vehicle_name,omitempty"`
	DriverID    *string `db:"driver_id" json:"driver_id,omitempty"`
	DriverName  *string `db:"driver_name" json:"driver_name,omitempty"`

	Color            *string  `db:"color" json:"color,omitempty"`
	PickupLocation   *string  `db:"pickup_location" json:"pickup_location,omitempty"`
	PickupLat        *float64 `db:"pickup_lat" json:"pickup_lat,omitempty"`
	PickupLng        *float64 `db:"pickup_lng" json:"pickup_lng,omitempty"`
	DeliveryLocation *string  `db:"delivery_location" json:"delivery_location,omitempty"`
	DeliveryLat      *float64 `db:"delivery_lat" json:"delivery_lat,omitempty"`
	DeliveryLng      *float64 `db:"delivery_lng" json:"delivery_lng,omitempty"`

	// RRule, when set, expands the event into occurrences at query time. The
	// stored row is the series base; occurrences are never persisted.
	RRule *string `db:"rrule" json:"rrule,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the scheduled length of the event.
func (e Event) Duration() time.Duration {
	return e.EndAt.Sub(e.StartAt)
}

// EventFilter narrows down event queries.
type EventFilter struct {
	From       *time.Time
	To         *time.Time
	ClientIDs  []string
	DriverIDs  []string
	VehicleIDs []string
	Statuses   []EventStatus
}

// Pagination describes list paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
