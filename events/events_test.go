package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rider-dispatch-system/config"
	"rider-dispatch-system/models"
)

func TestFromTrip(t *testing.T) {
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	requested := FromTrip(models.Trip{ID: "t1", RequesterID: "r1", State: models.TripRequested}, at)
	if requested.Type != TypeTripRequested {
		t.Errorf("type = %s, want %s", requested.Type, TypeTripRequested)
	}

	enRoute := FromTrip(models.Trip{ID: "t1", RequesterID: "r1", DriverID: "d1", State: models.TripEnRoute}, at)
	if enRoute.Type != TypeTripStatus || enRoute.RoutingKey() != "trip.status.en_route" {
		t.Errorf("event = %+v, key %s", enRoute, enRoute.RoutingKey())
	}

	body, err := json.Marshal(enRoute)
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]any
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["driver_id"] != "d1" || wire["state"] != "en_route" {
		t.Errorf("wire = %v", wire)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	p, err := New(context.Background(), config.EventsConfig{Driver: "none"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("noop publish: %v", err)
	}

	k, err := New(context.Background(), config.EventsConfig{Driver: "kafka", KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "trip-events"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := k.(*KafkaPublisher); !ok {
		t.Fatalf("got %T, want *KafkaPublisher", k)
	}
	k.Close()

	if _, err := New(context.Background(), config.EventsConfig{Driver: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
