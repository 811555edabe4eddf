package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"rider-dispatch-system/dispatch"
	"rider-dispatch-system/models"

	"github.com/gorilla/mux"
)

// Handler exposes the dispatch service over HTTP.
type Handler struct {
	svc *dispatch.Service
	log *slog.Logger
}

func NewHandler(svc *dispatch.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("component", "api")}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAlreadyExists),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrNoDriverAvailable),
		errors.Is(err, models.ErrDriverNoLongerAvailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	h.writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	h.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": msg})
}

// CreateRider handles registering a new rider
func (h *Handler) CreateRider(w http.ResponseWriter, r *http.Request) {
	var rider models.Rider
	if err := json.NewDecoder(r.Body).Decode(&rider); err != nil {
		h.badRequest(w, r, "Invalid request payload")
		return
	}
	if _, err := h.svc.RegisterRider(r.Context(), &rider); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, rider)
}

// CreateDelivery handles registering a new package delivery
func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var delivery models.Delivery
	if err := json.NewDecoder(r.Body).Decode(&delivery); err != nil {
		h.badRequest(w, r, "Invalid request payload")
		return
	}
	if _, err := h.svc.RegisterDelivery(r.Context(), &delivery); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, delivery)
}

// CreateDriver handles registering a new driver
func (h *Handler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var driver models.Driver
	if err := json.NewDecoder(r.Body).Decode(&driver); err != nil {
		h.badRequest(w, r, "Invalid request payload")
		return
	}
	id, err := h.svc.RegisterDriver(r.Context(), &driver)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stored, err := h.svc.Driver(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, stored)
}

// GetDriver handles fetching driver details by ID
func (h *Handler) GetDriver(w http.ResponseWriter, r *http.Request) {
	driver, err := h.svc.Driver(mux.Vars(r)["driver_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, driver)
}

// UpdateDriverLocation handles updates to driver's location
func (h *Handler) UpdateDriverLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		h.badRequest(w, r, "Invalid request payload")
		return
	}
	driver, err := h.svc.UpdateDriverLocation(r.Context(), mux.Vars(r)["driver_id"], loc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, driver)
}

// DriverStatusUpdate lets a driver go online ("available") or offline ("offline").
func (h *Handler) DriverStatusUpdate(w http.ResponseWriter, r *http.Request) {
	var statusUpdate struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&statusUpdate); err != nil {
		h.badRequest(w, r, "Invalid request payload")
		return
	}
	status, err := models.ParseDriverStatus(statusUpdate.Status)
	if err != nil || status == models.DriverOnTrip {
		h.badRequest(w, r, `status must be "available" or "offline"`)
		return
	}

	driver, err := h.svc.SetDriverOnline(r.Context(), mux.Vars(r)["driver_id"], status == models.DriverAvailable)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, driver)
}

// NearbyDrivers lists available drivers around ?lat=&lon=
func (h *Handler) NearbyDrivers(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		h.badRequest(w, r, "lat and lon query parameters are required")
		return
	}
	drivers, err := h.svc.NearbyDrivers(r.Context(), models.Location{Latitude: lat, Longitude: lon})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if drivers == nil {
		drivers = []models.Driver{}
	}
	h.writeJSON(w, r, http.StatusOK, drivers)
}

type tripRequest struct {
	RiderID    string           `json:"rider_id"`
	DeliveryID string           `json:"delivery_id"`
	Rider      *models.Rider    `json:"rider"`
	Delivery   *models.Delivery `json:"delivery"`
}

func (h *Handler) requester(req tripRequest) (models.Requester, error) {
	switch {
	case req.RiderID != "":
		return h.svc.Requester(req.RiderID)
	case req.DeliveryID != "":
		return h.svc.Requester(req.DeliveryID)
	case req.Rider != nil:
		return req.Rider, nil
	case req.Delivery != nil:
		return req.Delivery, nil
	default:
		return nil, models.ErrInvalidRequest
	}
}

// RequestTrip handles trip requests from riders and deliveries
func (h *Handler) RequestTrip(w http.ResponseWriter, r *http.Request) {
	var body tripRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.badRequest(w, r, "Invalid request payload")
		return
	}
	requester, err := h.requester(body)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.writeError(w, r, err)
			return
		}
		h.badRequest(w, r, "one of rider_id, delivery_id, rider or delivery is required")
		return
	}

	tripID, err := h.svc.RequestTrip(r.Context(), requester)
	if err != nil && tripID == "" {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		h.log.Warn("trip created but dispatch failed", "trip_id", tripID, "err", err)
	}

	trip, err := h.svc.Trip(tripID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	message := "Driver assigned"
	if trip.DriverID == "" {
		message = "Waiting for a driver"
	}
	h.writeJSON(w, r, http.StatusCreated, map[string]any{
		"message": message,
		"trip_id": trip.ID,
		"trip":    trip,
	})
}

// GetTrip handles fetching trip details by ID
func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.svc.Trip(mux.Vars(r)["trip_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, trip)
}

// CompleteTrip handles marking a trip as completed
func (h *Handler) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.svc.CompleteTrip(r.Context(), mux.Vars(r)["trip_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, trip)
}

// CancelTrip handles cancelling a trip; the body may carry a reason.
func (h *Handler) CancelTrip(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(w, r, "Invalid request payload")
		return
	}
	trip, err := h.svc.CancelTrip(r.Context(), mux.Vars(r)["trip_id"], body.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, trip)
}

// RetryPending re-runs matching for trips still waiting for a driver
func (h *Handler) RetryPending(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.RetryPending(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]int{"matched": n})
}
