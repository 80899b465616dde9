package server

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mutenix-org/mutenixd/internal/logs"
	"github.com/mutenix-org/mutenixd/internal/server/api"
	"github.com/mutenix-org/mutenixd/internal/server/status"
)

type Device interface {
	status.Device
	api.Device
}

type Meeting interface {
	status.Meeting
	api.Meeting
}

type serverPrivate struct {
	*http.Server
}

type Server struct {
	serverPrivate

	log    *logrus.Entry
	access *io.PipeWriter
}

func New(
	address string,
	device Device,
	meeting Meeting,
	memory *logs.MemoryWriter,
	version string,
	log *logrus.Entry,
) *Server {
	https := &http.Server{
		Addr: address,
	}
	s := &Server{
		serverPrivate: serverPrivate{
			Server: https,
		},
		log:    log,
		access: log.WriterLevel(logrus.DebugLevel),
	}

	r := mux.NewRouter()
	statusRouter := r.PathPrefix("/status").Subrouter()
	apiRouter := r.PathPrefix("/api").Subrouter()
	redirectRouter := r.Methods("GET").Path("/").Subrouter()
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())

	status.ServeStatus(statusRouter, device, meeting, address, version, memory, log)
	api.ServeAPI(apiRouter, device, meeting, log)
	status.ServeStatusRedirect(redirectRouter, address)

	var h http.Handler = r

	// Log after the request is done, in the Apache format.
	h = handlers.LoggingHandler(s.access, h)
	// Log when the request is received.
	h = s.logRequest(h)

	https.Handler = h
	return s
}

func (s *Server) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Tracef("%s %s", r.Method, r.URL)
		handler.ServeHTTP(w, r)
	})
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.log.WithField("address", s.Addr).Info("status server listening")
	err := s.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer s.access.Close()
	return s.Server.Shutdown(ctx)
}
