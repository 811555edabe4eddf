package trips

import (
	"fmt"
	"time"

	"rider-dispatch-system/models"
)

// Store is the atomic update primitive the runner needs from the registry.
type Store interface {
	UpdateTrip(tripID, driverID string, fn func(t *models.Trip, d *models.Driver) error) (models.Trip, models.Driver, error)
}

// Runner drives a trip through Requested -> Assigned -> EnRoute -> Completed,
// or to Cancelled from any non-terminal state. Each call changes the trip and
// its driver together or not at all.
type Runner struct {
	store Store
	now   func() time.Time
}

func NewRunner(store Store) *Runner {
	return &Runner{store: store, now: time.Now}
}

// WithClock replaces the time source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Assign binds driverID to a Requested trip and marks the driver OnTrip.
func (r *Runner) Assign(tripID, driverID string) (models.Trip, models.Driver, error) {
	if driverID == "" {
		return models.Trip{}, models.Driver{}, fmt.Errorf("assign %s: empty driver id: %w", tripID, models.ErrInvalidRequest)
	}
	return r.store.UpdateTrip(tripID, driverID, func(t *models.Trip, d *models.Driver) error {
		if t.State != models.TripRequested {
			return transitionError("assign", t, models.TripAssigned)
		}
		if d.Status != models.DriverAvailable {
			return fmt.Errorf("assign %s: driver %s is %s: %w", t.ID, d.ID, d.Status, models.ErrDriverNoLongerAvailable)
		}
		now := r.now()
		t.DriverID = d.ID
		t.AssignedAt = &now
		advance(t, models.TripAssigned)
		d.Status = models.DriverOnTrip
		d.TripID = t.ID
		return nil
	})
}

// Start moves an Assigned trip to EnRoute.
func (r *Runner) Start(tripID string) (models.Trip, error) {
	trip, _, err := r.store.UpdateTrip(tripID, "", func(t *models.Trip, _ *models.Driver) error {
		if t.State != models.TripAssigned {
			return transitionError("start", t, models.TripEnRoute)
		}
		now := r.now()
		t.StartedAt = &now
		advance(t, models.TripEnRoute)
		return nil
	})
	return trip, err
}

// Complete finishes an EnRoute trip and releases its driver.
func (r *Runner) Complete(tripID string) (models.Trip, models.Driver, error) {
	return r.store.UpdateTrip(tripID, "", func(t *models.Trip, d *models.Driver) error {
		if t.State != models.TripEnRoute {
			return transitionError("complete", t, models.TripCompleted)
		}
		now := r.now()
		t.CompletedAt = &now
		advance(t, models.TripCompleted)
		release(d, t.ID)
		return nil
	})
}

// Cancel ends a non-terminal trip and releases the driver if one was assigned.
func (r *Runner) Cancel(tripID, reason string) (models.Trip, models.Driver, error) {
	return r.store.UpdateTrip(tripID, "", func(t *models.Trip, d *models.Driver) error {
		if t.State.Terminal() {
			return transitionError("cancel", t, models.TripCancelled)
		}
		now := r.now()
		t.CancelledAt = &now
		t.CancelReason = reason
		advance(t, models.TripCancelled)
		release(d, t.ID)
		return nil
	})
}

func advance(t *models.Trip, next models.TripState) {
	t.State = next
	t.History = append(t.History, next)
}

func release(d *models.Driver, tripID string) {
	if d == nil || d.TripID != tripID {
		return
	}
	d.Status = models.DriverAvailable
	d.TripID = ""
}

func transitionError(op string, t *models.Trip, to models.TripState) error {
	return fmt.Errorf("%s %s: %s -> %s: %w", op, t.ID, t.State, to, models.ErrInvalidTransition)
}
