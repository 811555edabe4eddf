package models

import "time"

type TripState string

const (
	TripRequested TripState = "requested"
	TripAssigned  TripState = "assigned"
	TripEnRoute   TripState = "en_route"
	TripCompleted TripState = "completed"
	TripCancelled TripState = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s TripState) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

type Trip struct {
	ID            string        `json:"id"`
	RequesterID   string        `json:"requester_id"`
	RequesterKind RequesterKind `json:"requester_kind"`
	Pickup        Location      `json:"pickup"`
	Dropoff       Location      `json:"dropoff"`
	DriverID      string        `json:"driver_id,omitempty"`
	State         TripState     `json:"state"`
	History       []TripState   `json:"history"`
	CancelReason  string        `json:"cancel_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// Seq is the creation order, used when retrying pending trips.
	Seq uint64 `json:"-"`
}

// Version grows by one with every transition, so a newer snapshot of the same
// trip always has a higher version.
func (t Trip) Version() int { return len(t.History) }

// Clone returns a copy that shares no memory with t.
func (t Trip) Clone() Trip {
	t.History = append([]TripState(nil), t.History...)
	return t
}
