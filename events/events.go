package events

import (
	"context"
	"fmt"
	"time"

	"rider-dispatch-system/config"
	"rider-dispatch-system/models"
)

const (
	TypeTripRequested = "trip.requested"
	TypeTripStatus    = "trip.status"
)

// Event is the wire form of a trip lifecycle change.
type Event struct {
	Type        string           `json:"type"`
	TripID      string           `json:"trip_id"`
	DriverID    string           `json:"driver_id,omitempty"`
	RequesterID string           `json:"requester_id"`
	State       models.TripState `json:"state"`
	Version     int              `json:"version"`
	At          time.Time        `json:"at"`
}

// FromTrip builds the status event for the trip's current state.
func FromTrip(t models.Trip, at time.Time) Event {
	typ := TypeTripStatus
	if t.State == models.TripRequested {
		typ = TypeTripRequested
	}
	return Event{
		Type:        typ,
		TripID:      t.ID,
		DriverID:    t.DriverID,
		RequesterID: t.RequesterID,
		State:       t.State,
		Version:     t.Version(),
		At:          at,
	}
}

// RoutingKey is the topic key, e.g. "trip.status.en_route".
func (e Event) RoutingKey() string {
	return fmt.Sprintf("trip.status.%s", e.State)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type noop struct{}

func (noop) Publish(context.Context, Event) error { return nil }
func (noop) Close() error { return nil }

// Noop drops every event.
func Noop() Publisher { return noop{} }

// New builds the publisher selected by cfg.Driver.
func New(ctx context.Context, cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return Noop(), nil
	case "rabbitmq":
		p, err := NewRabbitPublisher(ctx, cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}
}
