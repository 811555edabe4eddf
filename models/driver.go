package models

import "fmt"

type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverOnTrip    DriverStatus = "on_trip"
	DriverOffline   DriverStatus = "offline"
)

func ParseDriverStatus(s string) (DriverStatus, error) {
	switch DriverStatus(s) {
	case DriverAvailable, DriverOnTrip, DriverOffline:
		return DriverStatus(s), nil
	}
	return "", fmt.Errorf("driver status %q: %w", s, ErrInvalidRequest)
}

type Driver struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Location Location     `json:"location"`
	Status   DriverStatus `json:"status"`
	TripID   string       `json:"trip_id,omitempty"`
	// Seq is the registration order, used as the matching tie-break.
	Seq uint64 `json:"-"`
}
