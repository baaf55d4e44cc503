package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/julienschmidt/httprouter"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"

	"transit-dashboard/internal/logging"
	"transit-dashboard/internal/metrics"
)

// syncer is the synchronizer as the HTTP layer sees it.
type syncer interface {
	Status() SyncStatus
	Refresh(ctx context.Context) SyncStatus
}

type server struct {
	poll      syncer
	dash      *Dashboard
	hub       *liveHub
	metrics   *metrics.Metrics
	logger    *slog.Logger
	limiter   *rate.Limiter
	staticDir string
}

// apiError is the JSON body of every error response.
type apiError struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

// Handler returns the complete HTTP surface. The websocket endpoint stays
// outside compression since it hijacks the connection.
func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/data.json", s.hub)
	mux.Handle("/", gzhttp.GzipHandler(s.router()))
	return requestIDMiddleware(mux)
}

func (s *server) router() *httprouter.Router {
	r := httprouter.New()
	s.handle(r, http.MethodGet, "/api/health", s.handleHealth)
	s.handle(r, http.MethodGet, "/api/vehicles", s.handleVehicles)
	s.handle(r, http.MethodGet, "/api/view", s.handleView)
	s.handle(r, http.MethodGet, "/api/routes", s.handleRoutes)
	s.handle(r, http.MethodGet, "/api/markers", s.handleMarkers)
	s.handle(r, http.MethodPut, "/api/selection", s.handleSelection)
	s.handle(r, http.MethodPost, "/api/refresh", s.handleRefresh)
	s.handle(r, http.MethodGet, "/debug/snapshot", s.handleDebugSnapshot)
	if s.metrics != nil {
		r.Handler(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.NotFound = instrument(s.logger, s.metrics, "static", http.FileServer(http.Dir(s.staticDir)))
	return r
}

func (s *server) handle(r *httprouter.Router, method, path string, h http.HandlerFunc) {
	r.Handler(method, path, instrument(s.logger, s.metrics, path, h))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleVehicles re-serves the latest snapshot in the backend format.
func (s *server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	st := s.poll.Status()
	if st.Snapshot == nil {
		text := "no snapshot available yet"
		if st.Error != "" {
			text = st.Error
		}
		writeError(w, r, http.StatusServiceUnavailable, text)
		return
	}
	writeJSON(w, r, http.StatusOK, st.Snapshot)
}

func (s *server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.dash.CurrentView())
}

func (s *server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes := []string{}
	if st := s.poll.Status(); st.Snapshot != nil {
		routes = RouteOptions(st.Snapshot.Vehicles)
	}
	writeJSON(w, r, http.StatusOK, routes)
}

func (s *server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	set := s.dash.Markers()
	raw := r.URL.Query().Get("bbox")
	if raw == "" {
		writeJSON(w, r, http.StatusOK, set)
		return
	}
	b, err := parseBounds(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, MarkerSet{Center: set.Center, Markers: set.Within(b)})
}

func (s *server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInboundSize))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid selection body")
		return
	}
	if req.ViewMode != nil {
		if _, err := s.dash.SetViewMode(*req.ViewMode); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Route != nil {
		s.dash.SelectRoute(*req.Route)
	}
	if req.Route != nil || req.ViewMode != nil {
		s.hub.Broadcast()
	}
	writeJSON(w, r, http.StatusOK, s.dash.Selection())
}

// handleRefresh runs one fetch now. Broadcasting happens through the
// synchronizer's update hook like any scheduled poll.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, r, http.StatusTooManyRequests, "refresh rate exceeded")
		return
	}
	// the fetch outlives a disconnecting client; the poller's timeout bounds it
	s.poll.Refresh(context.WithoutCancel(r.Context()))
	writeJSON(w, r, http.StatusOK, s.dash.CurrentView())
}

func (s *server) handleDebugSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(spew.Sdump(s.poll.Status())))
}

// parseBounds reads "minLat,minLon,maxLat,maxLon".
func parseBounds(raw string) (Bounds, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return Bounds{}, errors.New("bbox must be minLat,minLon,maxLat,maxLon")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("bbox value %q is not a number", p)
		}
		v[i] = f
	}
	b := Bounds{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
	if !b.Valid() {
		return Bounds{}, errors.New("bbox is empty or inverted")
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, text string) {
	writeJSON(w, r, status, apiError{Code: status, Text: text})
}
