package models

// RequesterKind tags what asked for a trip.
type RequesterKind string

const (
	RequesterRider    RequesterKind = "rider"
	RequesterDelivery RequesterKind = "delivery"
)

// Requester is anything that can be carried from a pickup to a dropoff.
type Requester interface {
	RequesterID() string
	Kind() RequesterKind
	PickupLocation() Location
	DropoffLocation() Location
}
