package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rider-dispatch-system/events"
	"rider-dispatch-system/geohash"
	"rider-dispatch-system/logging"
	"rider-dispatch-system/matching"
	"rider-dispatch-system/models"
	"rider-dispatch-system/registry"
	"rider-dispatch-system/trips"
)

// Recorder persists entities after the core has committed a change.
type Recorder interface {
	SaveRequester(ctx context.Context, req models.Requester) error
	SaveDriver(ctx context.Context, d models.Driver) error
	SaveTrip(ctx context.Context, t models.Trip) error
}

// AvailabilityCache mirrors driver availability for lookups outside the core.
type AvailabilityCache interface {
	SyncDriver(ctx context.Context, d models.Driver) error
	NearbyDrivers(ctx context.Context, loc models.Location) ([]string, error)
}

// DriverLoader reads previously persisted drivers.
type DriverLoader interface {
	ListDrivers(ctx context.Context) ([]models.Driver, error)
}

// RequesterLoader reads previously persisted riders and deliveries.
type RequesterLoader interface {
	ListRequesters(ctx context.Context) ([]models.Requester, error)
}

// Service is the entry point: it registers requesters, opens trips, matches them
// and runs them. External collaborators are only called from here, after the
// in-memory change is committed; their failures are logged, not returned.
type Service struct {
	registry    *registry.Registry
	matcher     *matching.Matcher
	runner      *trips.Runner
	recorder    Recorder
	cache       AvailabilityCache
	publisher   events.Publisher
	log         *slog.Logger
	maxAttempts int
	now         func() time.Time
}

type Option func(*Service)

func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

func WithCache(c AvailabilityCache) Option { return func(s *Service) { s.cache = c } }

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l.With("component", "dispatch") }
}

// WithMaxAttempts bounds how many times one request is re-matched after losing
// a driver to a concurrent assignment.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(reg *registry.Registry, matcher *matching.Matcher, runner *trips.Runner, opts ...Option) *Service {
	s := &Service{
		registry:    reg,
		matcher:     matcher,
		runner:      runner,
		publisher:   events.Noop(),
		log:         logging.Discard(),
		maxAttempts: 3,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestTrip opens a trip for req and tries to match it right away. When no
// driver is available the trip stays Requested and its id is still returned.
func (s *Service) RequestTrip(ctx context.Context, req models.Requester) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request trip: nil requester: %w", models.ErrInvalidRequest)
	}
	if err := s.ensureRegistered(ctx, req); err != nil {
		return "", fmt.Errorf("request trip: %w", err)
	}

	trip, err := s.registry.CreateTrip(req)
	if err != nil {
		return "", fmt.Errorf("request trip: %w", err)
	}
	s.afterTripChange(ctx, trip.ID)

	if _, err := s.dispatch(ctx, trip); err != nil {
		return trip.ID, fmt.Errorf("request trip %s: %w", trip.ID, err)
	}
	return trip.ID, nil
}

type outcome int

const (
	// pending: no driver could be secured, the trip stays Requested.
	pending outcome = iota
	matched
	// skipped: the trip left Requested through another path (cancelled or matched elsewhere).
	skipped
)

// dispatch matches, assigns and starts one Requested trip. Matching uses the
// pickup recorded on the trip, not the requester's current one.
func (s *Service) dispatch(ctx context.Context, pendingTrip models.Trip) (outcome, error) {
	tripID := pendingTrip.ID
	log := s.log.With("trip_id", tripID, "requester_id", pendingTrip.RequesterID)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		candidate, err := s.matcher.MatchPickup(pendingTrip.RequesterID, pendingTrip.Pickup)
		if errors.Is(err, models.ErrNoDriverAvailable) {
			log.Info("no driver available, trip left pending")
			return pending, nil
		}
		if err != nil {
			return pending, err
		}

		trip, driver, err := s.runner.Assign(tripID, candidate.ID)
		switch {
		case errors.Is(err, models.ErrDriverNoLongerAvailable):
			log.Debug("driver taken before assignment, rematching", "driver_id", candidate.ID, "attempt", attempt)
			continue
		case errors.Is(err, models.ErrInvalidTransition):
			log.Debug("trip no longer requested", "err", err)
			return skipped, nil
		case err != nil:
			return pending, err
		}
		s.afterTripChange(ctx, trip.ID)
		s.afterDriverChange(ctx, driver.ID)

		trip, err = s.runner.Start(tripID)
		if errors.Is(err, models.ErrInvalidTransition) {
			log.Info("trip cancelled before start", "driver_id", driver.ID)
			return skipped, nil
		}
		if err != nil {
			return matched, err
		}
		s.afterTripChange(ctx, trip.ID)
		log.Info("trip dispatched", "driver_id", driver.ID)
		return matched, nil
	}

	log.Warn("gave up matching after repeated races, trip left pending", "attempts", s.maxAttempts)
	return pending, nil
}

// ensureRegistered registers req unless a requester with its id already exists.
func (s *Service) ensureRegistered(ctx context.Context, req models.Requester) error {
	id := req.RequesterID()
	if id != "" {
		if _, err := s.registry.Requester(id); err == nil {
			return nil
		}
	}
	err := s.registerRequester(ctx, req)
	if errors.Is(err, models.ErrAlreadyExists) {
		// A concurrent request registered the same requester first.
		if _, lookupErr := s.registry.Requester(id); lookupErr == nil {
			return nil
		}
	}
	return err
}

func (s *Service) registerRequester(ctx context.Context, req models.Requester) error {
	if _, err := s.registry.Register(req); err != nil {
		return err
	}
	if s.recorder != nil {
		if err := s.recorder.SaveRequester(ctx, req); err != nil {
			s.log.Warn("persist requester failed", "requester_id", req.RequesterID(), "err", err)
		}
	}
	return nil
}

// RetryPending re-matches Requested trips, oldest first, and returns how many
// got a driver.
func (s *Service) RetryPending(ctx context.Context) (int, error) {
	count := 0
	for _, trip := range s.registry.ListTrips(models.TripRequested) {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		result, err := s.dispatch(ctx, trip)
		if err != nil {
			return count, fmt.Errorf("retry pending %s: %w", trip.ID, err)
		}
		switch result {
		case matched:
			count++
		case pending:
			// Later trips would not find a driver either.
			return count, nil
		}
	}
	return count, nil
}

// RunRetryLoop calls RetryPending every interval until ctx is done.
func (s *Service) RunRetryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.RetryPending(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("retry pending trips failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("pending trips matched", "count", n)
			}
		}
	}
}

func (s *Service) CompleteTrip(ctx context.Context, tripID string) (models.Trip, error) {
	trip, driver, err := s.runner.Complete(tripID)
	if err != nil {
		return models.Trip{}, err
	}
	s.afterTripChange(ctx, trip.ID)
	s.afterDriverChange(ctx, driver.ID)
	return trip, nil
}

func (s *Service) CancelTrip(ctx context.Context, tripID, reason string) (models.Trip, error) {
	trip, driver, err := s.runner.Cancel(tripID, reason)
	if err != nil {
		return models.Trip{}, err
	}
	s.afterTripChange(ctx, trip.ID)
	if driver.ID != "" {
		s.afterDriverChange(ctx, driver.ID)
	}
	return trip, nil
}

func (s *Service) RegisterRider(ctx context.Context, r *models.Rider) (string, error) {
	if r == nil || r.Name == "" {
		return "", fmt.Errorf("register rider: name is required: %w", models.ErrInvalidRequest)
	}
	if err := s.registerRequester(ctx, r); err != nil {
		return "", fmt.Errorf("register rider: %w", err)
	}
	return r.ID, nil
}

func (s *Service) RegisterDelivery(ctx context.Context, d *models.Delivery) (string, error) {
	if d == nil {
		return "", fmt.Errorf("register delivery: %w", models.ErrInvalidRequest)
	}
	if err := s.registerRequester(ctx, d); err != nil {
		return "", fmt.Errorf("register delivery: %w", err)
	}
	return d.ID, nil
}

func (s *Service) RegisterDriver(ctx context.Context, d *models.Driver) (string, error) {
	if d == nil {
		return "", fmt.Errorf("register driver: %w", models.ErrInvalidRequest)
	}
	id, err := s.registry.Register(d)
	if err != nil {
		return "", err
	}
	s.afterDriverChange(ctx, id)
	return id, nil
}

func (s *Service) UpdateDriverLocation(ctx context.Context, driverID string, loc models.Location) (models.Driver, error) {
	d, err := s.registry.UpdateDriver(driverID, func(d *models.Driver) error {
		d.Location = loc
		return nil
	})
	if err != nil {
		return models.Driver{}, err
	}
	s.afterDriverChange(ctx, d.ID)
	return d, nil
}

// SetDriverOnline toggles between Available and Offline. A driver on a trip can
// only be released by finishing or cancelling the trip.
func (s *Service) SetDriverOnline(ctx context.Context, driverID string, online bool) (models.Driver, error) {
	d, err := s.registry.UpdateDriver(driverID, func(d *models.Driver) error {
		if d.Status == models.DriverOnTrip {
			return fmt.Errorf("set driver %s online=%t: driver is on trip %s: %w", d.ID, online, d.TripID, models.ErrInvalidTransition)
		}
		if online {
			d.Status = models.DriverAvailable
		} else {
			d.Status = models.DriverOffline
		}
		return nil
	})
	if err != nil {
		return models.Driver{}, err
	}
	s.afterDriverChange(ctx, d.ID)
	return d, nil
}

func (s *Service) Trip(tripID string) (models.Trip, error) { return s.registry.Trip(tripID) }

func (s *Service) Driver(driverID string) (models.Driver, error) { return s.registry.Driver(driverID) }

func (s *Service) Requester(id string) (models.Requester, error) { return s.registry.Requester(id) }

// NearbyDrivers lists Available drivers in the geohash cell around loc and its
// neighbors. The Redis mirror is used when configured.
func (s *Service) NearbyDrivers(ctx context.Context, loc models.Location) ([]models.Driver, error) {
	if s.cache != nil {
		ids, err := s.cache.NearbyDrivers(ctx, loc)
		if err != nil {
			return nil, err
		}
		drivers := make([]models.Driver, 0, len(ids))
		for _, id := range ids {
			d, err := s.registry.Driver(id)
			if err != nil || d.Status != models.DriverAvailable {
				continue
			}
			drivers = append(drivers, d)
		}
		return drivers, nil
	}

	cells := make(map[string]struct{})
	for _, c := range geohash.Cells(loc.Latitude, loc.Longitude, geohash.CellPrecision) {
		cells[c] = struct{}{}
	}
	var drivers []models.Driver
	for _, d := range s.registry.ListAvailableDrivers() {
		cell := geohash.Encode(d.Location.Latitude, d.Location.Longitude, geohash.CellPrecision)
		if _, ok := cells[cell]; ok {
			drivers = append(drivers, d)
		}
	}
	return drivers, nil
}

// RestoreRequesters re-registers persisted riders and deliveries so trips can
// be requested by id after a restart.
func (s *Service) RestoreRequesters(ctx context.Context, loader RequesterLoader) (int, error) {
	stored, err := loader.ListRequesters(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore requesters: %w", err)
	}
	restored := 0
	for _, req := range stored {
		if _, err := s.registry.Register(req); err != nil {
			if errors.Is(err, models.ErrAlreadyExists) {
				continue
			}
			return restored, fmt.Errorf("restore requesters: %w", err)
		}
		restored++
	}
	return restored, nil
}

// RestoreDrivers re-registers persisted drivers. Trips are not persisted across
// restarts, so drivers stored as on_trip come back Offline.
func (s *Service) RestoreDrivers(ctx context.Context, loader DriverLoader) (int, error) {
	stored, err := loader.ListDrivers(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore drivers: %w", err)
	}
	restored := 0
	for _, d := range stored {
		if d.Status == models.DriverOnTrip {
			d.Status = models.DriverOffline
		}
		d.TripID = ""
		if _, err := s.registry.Register(&d); err != nil {
			if errors.Is(err, models.ErrAlreadyExists) {
				continue
			}
			return restored, fmt.Errorf("restore drivers: %w", err)
		}
		s.afterDriverChange(ctx, d.ID)
		restored++
	}
	return restored, nil
}

// afterTripChange re-reads the trip so collaborators get its latest state. Writes
// for one trip can still arrive out of order, so they carry the trip's version.
func (s *Service) afterTripChange(ctx context.Context, tripID string) {
	trip, err := s.registry.Trip(tripID)
	if err != nil {
		return
	}
	if s.recorder != nil {
		if err := s.recorder.SaveTrip(ctx, trip); err != nil {
			s.log.Warn("persist trip failed", "trip_id", trip.ID, "err", err)
		}
	}
	if err := s.publisher.Publish(ctx, events.FromTrip(trip, s.now())); err != nil {
		s.log.Warn("publish trip event failed", "trip_id", trip.ID, "state", trip.State, "err", err)
	}
}

// afterDriverChange re-reads the driver so collaborators see its latest state
// even when notifications for the same driver interleave.
func (s *Service) afterDriverChange(ctx context.Context, driverID string) {
	d, err := s.registry.Driver(driverID)
	if err != nil {
		return
	}
	if s.recorder != nil {
		if err := s.recorder.SaveDriver(ctx, d); err != nil {
			s.log.Warn("persist driver failed", "driver_id", d.ID, "err", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.SyncDriver(ctx, d); err != nil {
			s.log.Warn("sync driver cache failed", "driver_id", d.ID, "err", err)
		}
	}
}
