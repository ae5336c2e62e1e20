// Package status serves read-only acquisition state over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/itohio/gobridge/pkg/acquire"
	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/itohio/gobridge/pkg/log"
	"github.com/itohio/gobridge/pkg/sample"
	"github.com/itohio/gobridge/pkg/sink"
)

const (
	// DefaultMaxPoints is returned by /samples when max is not given.
	DefaultMaxPoints = 500
	shutdownTimeout  = time.Second
)

// Info describes the acquisition being served.
type Info struct {
	Converter ads1263.Config
	Channel   ads1263.Channel
	Output    string
}

// Point is one sample on the wire.
type Point struct {
	Timestamp string  `json:"t"`
	Voltage   float64 `json:"v"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	acquire.Stats
	Converter ads1263.Config `json:"converter"`
	Channel   string         `json:"channel"`
	Output    string         `json:"output"`
	Latest    *Point         `json:"latest,omitempty"`
}

// SamplesResponse is the body of GET /samples.
type SamplesResponse struct {
	Window  string  `json:"window"`
	Count   int     `json:"count"`
	Samples []Point `json:"samples"`
}

// Server serves snapshots of the loop counters and the recent sample window.
type Server struct {
	*mux.Router
	addr   string
	info   Info
	stats  func() acquire.Stats
	window *sample.Window
	span   time.Duration
}

// New creates a server. stats is called per request and must be safe for
// concurrent use.
func New(addr string, info Info, stats func() acquire.Stats, window *sample.Window, span time.Duration) *Server {
	s := &Server{
		addr:   addr,
		info:   info,
		stats:  stats,
		window: window,
		span:   span,
	}
	s.configureRouter()
	return s
}

func (s *Server) configureRouter() {
	s.Router = mux.NewRouter()
	s.Router.HandleFunc("/status", s.handleStatus()).Methods("GET")
	s.Router.HandleFunc("/samples", s.handleSamples()).Methods("GET")
}

// Handler wraps the router with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return handlers.RecoveryHandler()(handlers.LoggingHandler(log.Writer(), s.Router))
}

// Run serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Handler: s.Handler(),
		Addr:    s.addr,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("Status server listening on %s", s.addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Stats:     s.stats(),
			Converter: s.info.Converter,
			Channel:   s.info.Channel.String(),
			Output:    s.info.Output,
		}
		if latest, ok := s.window.Latest(); ok {
			p := toPoint(latest)
			resp.Latest = &p
		}
		writeJSON(w, resp)
	}
}

func (s *Server) handleSamples() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxPoints := DefaultMaxPoints
		if v := r.URL.Query().Get("max"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "max must be a non-negative integer", http.StatusBadRequest)
				return
			}
			maxPoints = n
		}

		samples := s.window.Snapshot(nil, maxPoints)
		resp := SamplesResponse{
			Window:  s.span.String(),
			Count:   len(samples),
			Samples: make([]Point, len(samples)),
		}
		for i, smp := range samples {
			resp.Samples[i] = toPoint(smp)
		}
		writeJSON(w, resp)
	}
}

func toPoint(s sample.Sample) Point {
	return Point{Timestamp: sink.FormatTimestamp(s.Timestamp), Voltage: s.Voltage}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response: %v", err)
	}
}
