// Package httpapi exposes the study engine to external views over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/p-n-ai/pai-study/internal/achievement"
	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/mastery"
	"github.com/p-n-ai/pai-study/internal/report"
	"github.com/p-n-ai/pai-study/internal/state"
)

const (
	readyTimeout = 2 * time.Second
	maxBodyBytes = 4 << 20
)

// HealthChecker is a dependency checked by /readyz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators the API serves from.
type Deps struct {
	Store   *state.Store
	Catalog *curriculum.Catalog
	// Content supplies per-topic content; may be nil.
	Content mastery.ContentSource
	// Events serves /ws; nil disables it.
	Events http.Handler
	// Checks are run by /readyz, keyed by name.
	Checks map[string]HealthChecker
}

// Server routes API requests to the store.
type Server struct {
	store     *state.Store
	catalog   *curriculum.Catalog
	content   mastery.ContentSource
	evaluator *achievement.Evaluator
	reports   *report.Builder
	events    http.Handler
	checks    map[string]HealthChecker
}

// New creates a Server.
func New(d Deps) *Server {
	catalog := d.Catalog
	if catalog == nil {
		catalog = curriculum.DefaultCatalog()
	}
	var content mastery.ContentSource
	if d.Content != nil {
		content = cachedContent{store: d.Store, src: d.Content}
	}
	return &Server{
		store:     d.Store,
		catalog:   catalog,
		content:   content,
		evaluator: achievement.NewEvaluator(d.Store, catalog),
		reports:   report.NewBuilder(catalog, content),
		events:    d.Events,
		checks:    d.Checks,
	}
}

// cachedContent serves topic content from the store's in-memory cache,
// filling it from src on a miss.
type cachedContent struct {
	store *state.Store
	src   mastery.ContentSource
}

func (c cachedContent) Content(topicID string) (*curriculum.Content, bool) {
	if content, ok := c.store.TopicContent(topicID); ok {
		return content, true
	}
	content, ok := c.src.Content(topicID)
	if ok {
		c.store.CacheTopicContent(content)
	}
	return content, ok
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/topics", s.handleTopics)
	mux.HandleFunc("GET /api/topics/{id}/mastery", s.handleTopicMastery)
	mux.HandleFunc("POST /api/topics/{id}/complete", s.handleTopicComplete)
	mux.HandleFunc("DELETE /api/topics/{id}/complete", s.handleTopicIncomplete)
	mux.HandleFunc("POST /api/topics/{id}/sections/{section}/read", s.handleSectionRead)
	mux.HandleFunc("POST /api/topics/{id}/sections/{section}/bookmark", s.handleAddBookmark)
	mux.HandleFunc("DELETE /api/topics/{id}/sections/{section}/bookmark", s.handleRemoveBookmark)
	mux.HandleFunc("PUT /api/topics/{id}/sections/{section}/note", s.handleSaveNote)
	mux.HandleFunc("DELETE /api/topics/{id}/sections/{section}/note", s.handleDeleteNote)
	mux.HandleFunc("POST /api/topics/{id}/time", s.handleTopicTime)
	mux.HandleFunc("PUT /api/topics/{id}/objectives/{n}/confidence", s.handleConfidence)
	mux.HandleFunc("PUT /api/homework/{id}", s.handleHomework)
	mux.HandleFunc("POST /api/quiz", s.handleQuizAnswer)
	mux.HandleFunc("POST /api/exams", s.handleExamScore)
	mux.HandleFunc("PUT /api/theme", s.handleTheme)

	mux.HandleFunc("POST /api/flashcards", s.handleAddFlashcard)
	mux.HandleFunc("DELETE /api/flashcards/{id}", s.handleRemoveFlashcard)
	mux.HandleFunc("POST /api/flashcards/{id}/review", s.handleReview)
	mux.HandleFunc("GET /api/flashcards/due", s.handleDue)

	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/achievements", s.handleAchievements)
	mux.HandleFunc("POST /api/achievements/evaluate", s.handleEvaluate)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/report.xlsx", s.handleReport)

	if s.events != nil {
		mux.Handle("GET /ws", s.events)
	}
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "failed": name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
