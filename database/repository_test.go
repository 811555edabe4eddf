package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rider-dispatch-system/geohash"
	"rider-dispatch-system/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestSaveRider(t *testing.T) {
	repo, mock := newMockRepo(t)
	rider := &models.Rider{
		ID:          "r1",
		Name:        "Jaylo",
		Pickup:      models.Location{Address: "Manhattan", Latitude: 1, Longitude: 2},
		Destination: models.Location{Address: "Madison Square", Latitude: 3, Longitude: 4},
	}

	mock.ExpectExec(upsertRiderSQL).
		WithArgs("r1", "Jaylo", "Manhattan", 1.0, 2.0, "Madison Square", 3.0, 4.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveRequester(context.Background(), rider); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveDelivery(t *testing.T) {
	repo, mock := newMockRepo(t)
	delivery := &models.Delivery{
		ID:      "p1",
		Pickup:  models.Location{Address: "123 Sesame Street"},
		Dropoff: models.Location{Address: "Burger King"},
	}

	mock.ExpectExec(upsertDeliverySQL).
		WithArgs("p1", "123 Sesame Street", 0.0, 0.0, "Burger King", 0.0, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveRequester(context.Background(), delivery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveDriver(t *testing.T) {
	repo, mock := newMockRepo(t)
	d := models.Driver{
		ID:       "d1",
		Name:     "Sam",
		Location: models.Location{Address: "Times Square", Latitude: 40.758, Longitude: -73.9855},
		Status:   models.DriverAvailable,
		Seq:      4,
	}

	mock.ExpectExec(upsertDriverSQL).
		WithArgs("d1", "Sam", "Times Square", 40.758, -73.9855,
			geohash.Encode(40.758, -73.9855, geohash.CellPrecision), "available", nil, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveDriver(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveTripWrapsError(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")
	trip := models.Trip{
		ID:            "t1",
		RequesterID:   "r1",
		RequesterKind: models.RequesterRider,
		DriverID:      "d1",
		State:         models.TripAssigned,
		CreatedAt:     time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(upsertTripSQL).
		WithArgs("t1", "r1", "rider", "d1", "assigned",
			"", 0.0, 0.0, "", 0.0, 0.0, "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(0)).
		WillReturnError(boom)

	err := repo.SaveTrip(context.Background(), trip)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListDrivers(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows([]string{"id", "name", "address", "latitude", "longitude", "status"}).
		AddRow("d1", "Sam", "Times Square", 40.758, -73.9855, "available").
		AddRow("d2", "Ana", "Battery Park", 40.7033, -74.017, "offline")
	mock.ExpectQuery(listDriversSQL).WillReturnRows(rows)

	drivers, err := repo.ListDrivers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drivers) != 2 {
		t.Fatalf("got %d drivers, want 2", len(drivers))
	}
	if drivers[0].ID != "d1" || drivers[0].Status != models.DriverAvailable {
		t.Errorf("drivers[0] = %+v", drivers[0])
	}
	if drivers[1].Location.Address != "Battery Park" || drivers[1].Status != models.DriverOffline {
		t.Errorf("drivers[1] = %+v", drivers[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveTripStaleVersionIsIgnored(t *testing.T) {
	repo, mock := newMockRepo(t)
	trip := models.Trip{
		ID:            "t1",
		RequesterID:   "r1",
		RequesterKind: models.RequesterRider,
		DriverID:      "d1",
		State:         models.TripEnRoute,
		History:       []models.TripState{models.TripRequested, models.TripAssigned, models.TripEnRoute},
	}

	// The stored row is already cancelled at version 4, so the guarded update touches nothing.
	mock.ExpectExec(upsertTripSQL).
		WithArgs("t1", "r1", "rider", "d1", "en_route",
			"", 0.0, 0.0, "", 0.0, 0.0, "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SaveTrip(context.Background(), trip); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(upsertTripSQL, "WHERE trips.version < EXCLUDED.version") {
		t.Fatalf("trip upsert has no version guard:\n%s", upsertTripSQL)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsertDriverRefreshesSeq(t *testing.T) {
	update := upsertDriverSQL[strings.Index(upsertDriverSQL, "DO UPDATE"):]
	if !strings.Contains(update, "seq = EXCLUDED.seq") {
		t.Fatalf("driver upsert does not refresh seq:\n%s", update)
	}
}

func TestListRequesters(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(listRidersSQL).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "pickup_address", "pickup_latitude", "pickup_longitude",
			"dropoff_address", "dropoff_latitude", "dropoff_longitude"}).
			AddRow("r1", "Jaylo", "Manhattan", 1.0, 2.0, "Madison Square", 3.0, 4.0))
	mock.ExpectQuery(listDeliveriesSQL).WillReturnRows(
		sqlmock.NewRows([]string{"id", "pickup_address", "pickup_latitude", "pickup_longitude",
			"dropoff_address", "dropoff_latitude", "dropoff_longitude"}).
			AddRow("p1", "123 Sesame Street", 0.0, 0.0, "Burger King", 0.0, 0.0))

	requesters, err := repo.ListRequesters(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requesters) != 2 {
		t.Fatalf("got %d requesters, want 2", len(requesters))
	}
	rider, ok := requesters[0].(*models.Rider)
	if !ok || rider.Name != "Jaylo" || rider.Destination.Address != "Madison Square" {
		t.Errorf("requesters[0] = %#v", requesters[0])
	}
	delivery, ok := requesters[1].(*models.Delivery)
	if !ok || delivery.Dropoff.Address != "Burger King" {
		t.Errorf("requesters[1] = %#v", requesters[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
