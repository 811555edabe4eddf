package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"rider-dispatch-system/models"

	"github.com/google/uuid"
)

type driverEntry struct {
	mu     sync.Mutex
	driver models.Driver
}

type tripEntry struct {
	mu   sync.Mutex
	trip models.Trip
}

// Registry is the in-memory store of riders, deliveries, drivers and trips.
// The map itself is guarded by mu; each driver and trip carries its own lock.
type Registry struct {
	mu         sync.RWMutex
	riders     map[string]*models.Rider
	deliveries map[string]*models.Delivery
	drivers    map[string]*driverEntry
	trips      map[string]*tripEntry
	seq        uint64
	now        func() time.Time
}

func New() *Registry {
	return &Registry{
		riders:     make(map[string]*models.Rider),
		deliveries: make(map[string]*models.Delivery),
		drivers:    make(map[string]*driverEntry),
		trips:      make(map[string]*tripEntry),
		now:        time.Now,
	}
}

// Register stores a *models.Rider, *models.Delivery or *models.Driver and returns its id.
// An id is generated when the entity has none.
func (r *Registry) Register(entity any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := entity.(type) {
	case *models.Rider:
		id, err := r.claimID(e.ID)
		if err != nil {
			return "", err
		}
		e.ID = id
		stored := *e
		r.riders[id] = &stored
		return id, nil
	case *models.Delivery:
		id, err := r.claimID(e.ID)
		if err != nil {
			return "", err
		}
		e.ID = id
		stored := *e
		r.deliveries[id] = &stored
		return id, nil
	case *models.Driver:
		status := e.Status
		if status == "" {
			status = models.DriverAvailable
		}
		if _, err := models.ParseDriverStatus(string(status)); err != nil {
			return "", fmt.Errorf("register driver %s: %w", e.ID, err)
		}
		if status == models.DriverOnTrip {
			return "", fmt.Errorf("register driver %s: cannot register on_trip: %w", e.ID, models.ErrInvalidRequest)
		}
		id, err := r.claimID(e.ID)
		if err != nil {
			return "", err
		}
		r.seq++
		e.ID, e.Status, e.Seq, e.TripID = id, status, r.seq, ""
		r.drivers[id] = &driverEntry{driver: *e}
		return id, nil
	default:
		return "", fmt.Errorf("register %T: %w", entity, models.ErrInvalidRequest)
	}
}

// claimID must be called with mu held.
func (r *Registry) claimID(id string) (string, error) {
	if id == "" {
		return uuid.NewString(), nil
	}
	if r.exists(id) {
		return "", fmt.Errorf("register %s: %w", id, models.ErrAlreadyExists)
	}
	return id, nil
}

func (r *Registry) exists(id string) bool {
	if _, ok := r.riders[id]; ok {
		return true
	}
	if _, ok := r.deliveries[id]; ok {
		return true
	}
	if _, ok := r.drivers[id]; ok {
		return true
	}
	_, ok := r.trips[id]
	return ok
}

// Lookup returns a copy of the entity with the given id, whatever its kind.
func (r *Registry) Lookup(id string) (any, error) {
	if rider, err := r.Rider(id); err == nil {
		return rider, nil
	}
	if delivery, err := r.Delivery(id); err == nil {
		return delivery, nil
	}
	if driver, err := r.Driver(id); err == nil {
		return driver, nil
	}
	if trip, err := r.Trip(id); err == nil {
		return trip, nil
	}
	return nil, fmt.Errorf("lookup %s: %w", id, models.ErrNotFound)
}

func (r *Registry) Rider(id string) (*models.Rider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rider, ok := r.riders[id]
	if !ok {
		return nil, fmt.Errorf("rider %s: %w", id, models.ErrNotFound)
	}
	c := *rider
	return &c, nil
}

func (r *Registry) Delivery(id string) (*models.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	delivery, ok := r.deliveries[id]
	if !ok {
		return nil, fmt.Errorf("delivery %s: %w", id, models.ErrNotFound)
	}
	c := *delivery
	return &c, nil
}

// Requester resolves a rider or delivery id.
func (r *Registry) Requester(id string) (models.Requester, error) {
	if rider, err := r.Rider(id); err == nil {
		return rider, nil
	}
	if delivery, err := r.Delivery(id); err == nil {
		return delivery, nil
	}
	return nil, fmt.Errorf("requester %s: %w", id, models.ErrNotFound)
}

func (r *Registry) Driver(id string) (models.Driver, error) {
	e, err := r.driverEntry(id)
	if err != nil {
		return models.Driver{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.driver, nil
}

func (r *Registry) Trip(id string) (models.Trip, error) {
	e, err := r.tripEntry(id)
	if err != nil {
		return models.Trip{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trip.Clone(), nil
}

func (r *Registry) driverEntry(id string) (*driverEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.drivers[id]
	if !ok {
		return nil, fmt.Errorf("driver %s: %w", id, models.ErrNotFound)
	}
	return e, nil
}

func (r *Registry) tripEntry(id string) (*tripEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.trips[id]
	if !ok {
		return nil, fmt.Errorf("trip %s: %w", id, models.ErrNotFound)
	}
	return e, nil
}

// ListDrivers returns every driver in registration order.
func (r *Registry) ListDrivers() []models.Driver {
	r.mu.RLock()
	entries := make([]*driverEntry, 0, len(r.drivers))
	for _, e := range r.drivers {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	drivers := make([]models.Driver, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		drivers = append(drivers, e.driver)
		e.mu.Unlock()
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].Seq < drivers[j].Seq })
	return drivers
}

// ListAvailableDrivers returns a snapshot of Available drivers in registration order.
func (r *Registry) ListAvailableDrivers() []models.Driver {
	all := r.ListDrivers()
	available := all[:0]
	for _, d := range all {
		if d.Status == models.DriverAvailable {
			available = append(available, d)
		}
	}
	return available
}

// CreateTrip stores a new trip in the Requested state.
func (r *Registry) CreateTrip(req models.Requester) (models.Trip, error) {
	if req.RequesterID() == "" {
		return models.Trip{}, fmt.Errorf("create trip: requester has no id: %w", models.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	trip := models.Trip{
		ID:            uuid.NewString(),
		RequesterID:   req.RequesterID(),
		RequesterKind: req.Kind(),
		Pickup:        req.PickupLocation(),
		Dropoff:       req.DropoffLocation(),
		State:         models.TripRequested,
		History:       []models.TripState{models.TripRequested},
		CreatedAt:     r.now(),
		Seq:           r.seq,
	}
	r.trips[trip.ID] = &tripEntry{trip: trip}
	return trip.Clone(), nil
}

// ListTrips returns trips in creation order. An empty state matches every trip.
func (r *Registry) ListTrips(state models.TripState) []models.Trip {
	r.mu.RLock()
	entries := make([]*tripEntry, 0, len(r.trips))
	for _, e := range r.trips {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	trips := make([]models.Trip, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if state == "" || e.trip.State == state {
			trips = append(trips, e.trip.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].Seq < trips[j].Seq })
	return trips
}

// UpdateTrip locks the trip and then the driver, and runs fn against copies of both.
// The copies are written back only when fn returns nil. When driverID is empty the
// driver currently assigned to the trip is used; d is nil if there is none.
func (r *Registry) UpdateTrip(tripID, driverID string, fn func(t *models.Trip, d *models.Driver) error) (models.Trip, models.Driver, error) {
	te, err := r.tripEntry(tripID)
	if err != nil {
		return models.Trip{}, models.Driver{}, err
	}
	te.mu.Lock()
	defer te.mu.Unlock()

	if driverID == "" {
		driverID = te.trip.DriverID
	}

	var de *driverEntry
	if driverID != "" {
		if de, err = r.driverEntry(driverID); err != nil {
			return models.Trip{}, models.Driver{}, err
		}
		de.mu.Lock()
		defer de.mu.Unlock()
	}

	trip := te.trip.Clone()
	var driver *models.Driver
	if de != nil {
		d := de.driver
		driver = &d
	}

	if err := fn(&trip, driver); err != nil {
		return models.Trip{}, models.Driver{}, err
	}

	te.trip = trip
	if de != nil {
		de.driver = *driver
		return trip.Clone(), *driver, nil
	}
	return trip.Clone(), models.Driver{}, nil
}

// UpdateDriver runs fn against a copy of the driver and stores it when fn returns nil.
func (r *Registry) UpdateDriver(driverID string, fn func(d *models.Driver) error) (models.Driver, error) {
	de, err := r.driverEntry(driverID)
	if err != nil {
		return models.Driver{}, err
	}
	de.mu.Lock()
	defer de.mu.Unlock()

	d := de.driver
	if err := fn(&d); err != nil {
		return models.Driver{}, err
	}
	d.ID, d.Seq = de.driver.ID, de.driver.Seq
	de.driver = d
	return d, nil
}
