package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func RegisterRoutes(h *Handler) http.Handler {
	router := mux.NewRouter()

	// Rider and delivery endpoints
	router.HandleFunc("/riders", h.CreateRider).Methods("POST")
	router.HandleFunc("/deliveries", h.CreateDelivery).Methods("POST")

	// Driver endpoints; /drivers/nearby must precede /drivers/{driver_id}
	router.HandleFunc("/drivers", h.CreateDriver).Methods("POST")
	router.HandleFunc("/drivers/nearby", h.NearbyDrivers).Methods("GET")
	router.HandleFunc("/drivers/{driver_id}", h.GetDriver).Methods("GET")
	router.HandleFunc("/drivers/{driver_id}/status", h.DriverStatusUpdate).Methods("PUT")
	router.HandleFunc("/drivers/{driver_id}/location", h.UpdateDriverLocation).Methods("PUT")

	// Trip endpoints
	router.HandleFunc("/trips", h.RequestTrip).Methods("POST")
	router.HandleFunc("/trips/retry", h.RetryPending).Methods("POST")
	router.HandleFunc("/trips/{trip_id}", h.GetTrip).Methods("GET")
	router.HandleFunc("/trips/{trip_id}/complete", h.CompleteTrip).Methods("PUT")
	router.HandleFunc("/trips/{trip_id}/cancel", h.CancelTrip).Methods("PUT")

	router.Use(loggingMiddleware(h.log))

	// Add CORS support
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	return handlers.RecoveryHandler()(cors(router))
}

// statusWriter captures the final HTTP status code and number of bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func loggingMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			log.Info("request",
				"method", r.Method,
				"path", r.URL.RequestURI(),
				"status", sw.status,
				"bytes", sw.bytes,
				"dur_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
