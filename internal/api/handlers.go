package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/moodlog/emotion-diary/internal/diary"
	"github.com/moodlog/emotion-diary/internal/journal"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/moodlog/emotion-diary/internal/score"
	"github.com/sirupsen/logrus"
)

type entryResponse struct {
	models.DiaryEntry
	Tier  score.Tier `json:"tier"`
	Emoji string     `json:"emoji"`
}

func newEntryResponse(e models.DiaryEntry) entryResponse {
	tier := score.TierFor(e.TotalScore)
	return entryResponse{DiaryEntry: e, Tier: tier, Emoji: tier.Emoji()}
}

type putEntryRequest struct {
	Content string `json:"content"`
}

type sessionRequest struct {
	SelectedDate *string `json:"selected_date"`
	PendingText  *string `json:"pending_text"`
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.journal.Recent(r.Context())
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		entries = diary.Last(entries, limit)
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	entry, ok, err := s.journal.Entry(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no entry for %s", date)})
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(entry))
}

func (s *Server) putEntry(w http.ResponseWriter, r *http.Request) {
	var req putEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	st := s.session(w, r)
	entry, err := s.journal.Save(r.Context(), &st, mux.Vars(r)["date"], req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	s.saveSession(st)
	writeJSON(w, http.StatusOK, newEntryResponse(entry))
}

// deleteEntry implements the two-step delete: the first call arms the confirmation and
// answers 409, a second call for the same date deletes.
func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	st := s.session(w, r)

	if st.ConfirmDelete != date {
		if err := s.journal.RequestDelete(&st, date); err != nil {
			writeError(w, err)
			return
		}
		s.saveSession(st)
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": journal.ErrConfirmationRequired.Error(),
			"date":  date,
		})
		return
	}

	deleted, err := s.journal.ConfirmDelete(r.Context(), &st, date)
	if err != nil {
		writeError(w, err)
		return
	}
	s.saveSession(st)
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "deleted": deleted})
}

func (s *Server) cancelDelete(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	s.journal.CancelDelete(&st)
	s.saveSession(st)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.journal.Stats(r.Context()))
}

func (s *Server) trends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.journal.Trends(r.Context()))
}

func (s *Server) advice(w http.ResponseWriter, r *http.Request) {
	advice, err := s.journal.Advice(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advice)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session(w, r))
}

func (s *Server) putSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	st := s.session(w, r)
	if req.SelectedDate != nil && *req.SelectedDate != st.SelectedDate {
		if !diary.ValidDate(*req.SelectedDate) {
			writeError(w, fmt.Errorf("%q: %w", *req.SelectedDate, journal.ErrInvalidDate))
			return
		}
		st.SelectedDate = *req.SelectedDate
		// A pending confirmation never carries over to another day.
		st.ConfirmDelete = ""
	}
	if req.PendingText != nil {
		st.PendingText = *req.PendingText
	}
	s.saveSession(st)
	writeJSON(w, http.StatusOK, st)
}

// deleteSession drops the caller's session, discarding its draft and any pending
// delete confirmation. The next request starts a fresh session.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.sessions.Delete(c.Value)
		logrus.WithField("session", c.Value).Info("Session reset")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) triggerReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reports are not configured"})
		return
	}
	if err := s.reports.RunReport(r.Context()); err != nil {
		logrus.Errorf("Manual report trigger failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Report sent successfully"})
}
