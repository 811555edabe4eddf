package registry

import (
	"errors"
	"sync"
	"testing"

	"rider-dispatch-system/models"
)

func TestRegisterAndLookup(t *testing.T) {
	reg := New()

	rider := models.NewRider("Jaylo", models.Location{Address: "Manhattan"}, models.Location{Address: "Madison Square"})
	riderID, err := reg.Register(rider)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if riderID == "" || rider.ID != riderID {
		t.Fatalf("rider id = %q, returned %q", rider.ID, riderID)
	}

	delivery := models.NewDelivery(models.Location{Address: "123 Sesame Street"}, models.Location{Address: "Burger King"})
	deliveryID, err := reg.Register(delivery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := reg.Lookup(riderID)
	if err != nil {
		t.Fatalf("lookup rider: %v", err)
	}
	if r, ok := got.(*models.Rider); !ok || r.Name != "Jaylo" {
		t.Fatalf("lookup rider = %#v", got)
	}

	got, err = reg.Lookup(deliveryID)
	if err != nil {
		t.Fatalf("lookup delivery: %v", err)
	}
	if d, ok := got.(*models.Delivery); !ok || d.Dropoff.Address != "Burger King" {
		t.Fatalf("lookup delivery = %#v", got)
	}

	if _, err := reg.Lookup("missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("lookup missing err = %v, want ErrNotFound", err)
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	reg := New()
	if _, err := reg.Register(&models.Driver{ID: "d1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := reg.Register(&models.Rider{ID: "d1"}); !errors.Is(err, models.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestRegisterUnsupported(t *testing.T) {
	reg := New()
	if _, err := reg.Register("driver"); !errors.Is(err, models.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestRegisterDriverRejectsUnknownStatus(t *testing.T) {
	reg := New()
	for _, status := range []models.DriverStatus{"sleeping", models.DriverOnTrip} {
		d := &models.Driver{Name: "Sam", Status: status}
		if _, err := reg.Register(d); !errors.Is(err, models.ErrInvalidRequest) {
			t.Fatalf("status %q: err = %v, want ErrInvalidRequest", status, err)
		}
		if d.ID != "" || d.Status != status || d.Seq != 0 {
			t.Fatalf("status %q: rejected driver was modified: %+v", status, d)
		}
	}
	if got := len(reg.ListDrivers()); got != 0 {
		t.Fatalf("got %d drivers, want 0", got)
	}
}

func TestListAvailableDriversOrder(t *testing.T) {
	reg := New()
	for _, d := range []*models.Driver{
		{ID: "a"},
		{ID: "b", Status: models.DriverOffline},
		{ID: "c"},
		{ID: "d"},
	} {
		if _, err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.ID, err)
		}
	}

	available := reg.ListAvailableDrivers()
	want := []string{"a", "c", "d"}
	if len(available) != len(want) {
		t.Fatalf("got %d drivers, want %d", len(available), len(want))
	}
	for i, d := range available {
		if d.ID != want[i] {
			t.Errorf("available[%d] = %s, want %s", i, d.ID, want[i])
		}
	}
}

func TestUpdateTripRollsBackOnError(t *testing.T) {
	reg := New()
	rider := &models.Rider{Name: "Jaylo"}
	if _, err := reg.Register(rider); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	driverID, err := reg.Register(&models.Driver{Name: "Sam"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trip, err := reg.CreateTrip(rider)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("boom")
	_, _, err = reg.UpdateTrip(trip.ID, driverID, func(tr *models.Trip, d *models.Driver) error {
		tr.State = models.TripAssigned
		d.Status = models.DriverOnTrip
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	gotTrip, _ := reg.Trip(trip.ID)
	if gotTrip.State != models.TripRequested {
		t.Errorf("trip state = %s, want requested", gotTrip.State)
	}
	gotDriver, _ := reg.Driver(driverID)
	if gotDriver.Status != models.DriverAvailable {
		t.Errorf("driver status = %s, want available", gotDriver.Status)
	}
}

func TestListTripsByState(t *testing.T) {
	reg := New()
	rider := &models.Rider{Name: "Jaylo"}
	if _, err := reg.Register(rider); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := reg.CreateTrip(rider)
	second, _ := reg.CreateTrip(rider)

	trips := reg.ListTrips(models.TripRequested)
	if len(trips) != 2 || trips[0].ID != first.ID || trips[1].ID != second.ID {
		t.Fatalf("trips not in creation order: %+v", trips)
	}
	if got := reg.ListTrips(models.TripCompleted); len(got) != 0 {
		t.Fatalf("expected no completed trips, got %d", len(got))
	}
}

func TestConcurrentRegister(t *testing.T) {
	reg := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Register(&models.Driver{}); err != nil {
				t.Errorf("register: %v", err)
			}
		}()
	}
	wg.Wait()

	drivers := reg.ListDrivers()
	if len(drivers) != 50 {
		t.Fatalf("got %d drivers, want 50", len(drivers))
	}
	for i := 1; i < len(drivers); i++ {
		if drivers[i-1].Seq >= drivers[i].Seq {
			t.Fatalf("registration order not strictly increasing at %d", i)
		}
	}
}
