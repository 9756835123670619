package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agodwin12/wegoBackend-sub002/internal/dispatch"
	"github.com/agodwin12/wegoBackend-sub002/internal/geo"
	"github.com/agodwin12/wegoBackend-sub002/internal/ingest"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
)

type Server struct {
	Dispatch *dispatch.Service
	DriverWS *notify.WSRegistry
	UserWS   *notify.WSRegistry
	Locator  geo.Locator
	Kafka    *ingest.LocationProducer // optional

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(svc *dispatch.Service, driverWS, userWS *notify.WSRegistry, locator geo.Locator, kafka *ingest.LocationProducer, logger *slog.Logger) *Server {
	s := &Server{
		Dispatch: svc,
		DriverWS: driverWS,
		UserWS:   userWS,
		Locator:  locator,
		Kafka:    kafka,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/trips", s.handleCreateTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}", s.handleGetTrip).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/broadcast", s.handleBroadcast).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/accept", s.handleAccept).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/cancel", s.handleCancel).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/status", s.handleTransition).Methods("POST")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/driver/{driver_id}", s.handleDriverWS)
	s.mux.HandleFunc("/ws/user/{user_id}", s.handleUserWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
