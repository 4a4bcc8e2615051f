// Package api exposes the diary over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/moodlog/emotion-diary/internal/diary"
	"github.com/moodlog/emotion-diary/internal/journal"
	"github.com/moodlog/emotion-diary/internal/session"
	"github.com/sirupsen/logrus"
)

// SessionCookie names the cookie carrying the session ID.
const SessionCookie = "diary_session"

const maxBodyBytes = 1 << 20

// ReportRunner builds and sends the periodic report on demand
type ReportRunner interface {
	RunReport(ctx context.Context) error
}

// Server routes HTTP requests to the journal service
type Server struct {
	journal  *journal.Service
	sessions *session.Store
	reports  ReportRunner
	loc      *time.Location
	router   *mux.Router
}

// NewServer creates the HTTP API. reports may be nil to disable manual report triggers.
func NewServer(j *journal.Service, sessions *session.Store, reports ReportRunner, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		journal:  j,
		sessions: sessions,
		reports:  reports,
		loc:      loc,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	// Health check endpoint
	s.router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Metrics endpoint
	s.router.HandleFunc("/metrics", s.metricsHandler).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/entries", s.listEntries).Methods("GET")
	api.HandleFunc("/entries/{date}", s.getEntry).Methods("GET")
	api.HandleFunc("/entries/{date}", s.putEntry).Methods("PUT")
	api.HandleFunc("/entries/{date}", s.deleteEntry).Methods("DELETE")
	api.HandleFunc("/entries/{date}/cancel-delete", s.cancelDelete).Methods("POST")
	api.HandleFunc("/stats", s.stats).Methods("GET")
	api.HandleFunc("/trends", s.trends).Methods("GET")
	api.HandleFunc("/advice", s.advice).Methods("POST")
	api.HandleFunc("/session", s.getSession).Methods("GET")
	api.HandleFunc("/session", s.putSession).Methods("PUT")
	api.HandleFunc("/session", s.deleteSession).Methods("DELETE")

	// Manual trigger endpoint
	api.HandleFunc("/report", s.triggerReport).Methods("POST")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.journal.GetMetrics()))
}

// session loads the caller's session, starting a new one (and setting the cookie) when
// the cookie is missing or the session expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) session.State {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if st, err := s.sessions.Get(c.Value); err == nil {
			return st
		}
	}

	st := s.sessions.Create(time.Now().In(s.loc).Format("2006-01-02"))
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    st.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return st
}

func (s *Server) saveSession(st session.State) {
	if err := s.sessions.Save(st); err != nil {
		logrus.WithField("session", st.ID).Warnf("Failed to save session: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, journal.ErrEmptyContent), errors.Is(err, journal.ErrInvalidDate):
		status = http.StatusBadRequest
	case errors.Is(err, journal.ErrConfirmationRequired):
		status = http.StatusConflict
	case errors.Is(err, diary.ErrBackend):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logrus.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}
