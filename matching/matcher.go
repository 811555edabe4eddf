package matching

import (
	"fmt"

	"rider-dispatch-system/geohash"
	"rider-dispatch-system/models"
)

// DriverSource supplies the availability snapshot a match is computed from.
type DriverSource interface {
	ListAvailableDrivers() []models.Driver
}

// Matcher pairs a request with the nearest available driver. Ties go to the
// driver registered first.
type Matcher struct {
	drivers   DriverSource
	technique geohash.GeoIndexingTechnique
}

func NewMatcher(drivers DriverSource, technique geohash.GeoIndexingTechnique) *Matcher {
	return &Matcher{drivers: drivers, technique: technique}
}

// Match selects a driver for req from a fresh snapshot. The driver may be taken by
// someone else before it is assigned, so callers must re-validate.
func (m *Matcher) Match(req models.Requester) (models.Driver, error) {
	return m.MatchPickup(req.RequesterID(), req.PickupLocation())
}

// MatchPickup is Match for a pickup location that is not read from a requester,
// such as the one recorded on a pending trip.
func (m *Matcher) MatchPickup(requesterID string, pickup models.Location) (models.Driver, error) {
	snapshot := m.drivers.ListAvailableDrivers()
	if len(snapshot) == 0 {
		return models.Driver{}, fmt.Errorf("match %s: %w", requesterID, models.ErrNoDriverAvailable)
	}
	return FindNearestDriver(pickup, snapshot, m.technique)
}

// FindNearestDriver picks the available driver closest to pickup.
func FindNearestDriver(pickup models.Location, drivers []models.Driver, technique geohash.GeoIndexingTechnique) (models.Driver, error) {
	byID := make(map[string]models.Driver, len(drivers))
	points := make([]geohash.Point, 0, len(drivers))
	for _, d := range drivers {
		if d.Status != models.DriverAvailable {
			continue
		}
		byID[d.ID] = d
		points = append(points, geohash.Point{ID: d.ID, X: d.Location.Latitude, Y: d.Location.Longitude})
	}
	if len(points) == 0 {
		return models.Driver{}, models.ErrNoDriverAvailable
	}

	idx, err := geohash.Build(technique, points)
	if err != nil {
		return models.Driver{}, fmt.Errorf("find nearest driver: %w", err)
	}

	var (
		best     models.Driver
		bestDist float64
		found    bool
	)
	for _, p := range idx.Nearest(geohash.Point{X: pickup.Latitude, Y: pickup.Longitude}) {
		d := byID[p.ID]
		dist := d.Location.Distance(pickup)
		if !found || dist < bestDist || (dist == bestDist && d.Seq < best.Seq) {
			best, bestDist, found = d, dist, true
		}
	}
	if !found {
		return models.Driver{}, models.ErrNoDriverAvailable
	}
	return best, nil
}
