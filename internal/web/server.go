// Package web provides the HTTP status server.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sweeney/vacuum-controller/internal/history"
	"github.com/sweeney/vacuum-controller/internal/status"
)

// DefaultHistoryLimit is how many readings /history.json returns without ?n=.
const DefaultHistoryLimit = 120

// maxHistoryLimit caps ?n= so one request cannot pull the whole table.
const maxHistoryLimit = 10000

// HistorySource supplies logged readings. *history.Store satisfies it.
type HistorySource interface {
	Recent(n int) ([]history.Reading, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	history    HistorySource
}

// New creates a Server that reads state from tracker. hist may be nil, in
// which case /history.json returns an empty list.
func New(addr string, tracker *status.Tracker, hist HistorySource) *Server {
	s := &Server{tracker: tracker, history: hist}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	r.Get("/history.json", s.handleHistory)
	return r
}

// Serve accepts connections on ln. It blocks until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := DefaultHistoryLimit
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = min(v, maxHistoryLimit)
	}

	var readings []history.Reading
	if s.history != nil {
		var err error
		if readings, err = s.history.Recent(n); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, formatHistory(readings))
}
