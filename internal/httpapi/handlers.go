package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/pai-study/internal/achievement"
	"github.com/p-n-ai/pai-study/internal/activity"
	"github.com/p-n-ai/pai-study/internal/backup"
	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/mastery"
	"github.com/p-n-ai/pai-study/internal/report"
	"github.com/p-n-ai/pai-study/internal/srs"
	"github.com/p-n-ai/pai-study/internal/state"
)

const (
	defaultActivityDays = 30
	maxActivityDays     = 366
)

type topicView struct {
	curriculum.Topic
	Complete bool `json:"complete"`
	Mastery  int  `json:"mastery"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	results := mastery.All(s.store, s.catalog, s.content)
	topics := make([]topicView, 0, len(results))
	for i, t := range s.catalog.Topics() {
		topics = append(topics, topicView{
			Topic:    t,
			Complete: s.store.IsTopicComplete(t.ID),
			Mastery:  results[i].Mastery,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topics":  topics,
		"overall": mastery.Overall(results),
	})
}

// topic resolves the {id} path value, writing 404 when it is unknown.
func (s *Server) topic(w http.ResponseWriter, r *http.Request) (curriculum.Topic, bool) {
	id := r.PathValue("id")
	t, ok := s.catalog.Topic(id)
	if !ok {
		writeError(w, http.StatusNotFound, curriculum.ErrUnknownTopic.Error()+": "+id)
	}
	return t, ok
}

func (s *Server) contentFor(topicID string) *curriculum.Content {
	if s.content == nil {
		return nil
	}
	c, _ := s.content.Content(topicID)
	return c
}

func (s *Server) handleTopicMastery(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mastery.ForTopic(s.store, s.catalog, t.ID, s.contentFor(t.ID)))
}

func (s *Server) handleTopicComplete(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	s.store.MarkTopicComplete(t.ID)
	writeJSON(w, http.StatusOK, map[string]any{"id": t.ID, "complete": true})
}

func (s *Server) handleTopicIncomplete(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	s.store.MarkTopicIncomplete(t.ID)
	writeJSON(w, http.StatusOK, map[string]any{"id": t.ID, "complete": false})
}

func (s *Server) handleSectionRead(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	section := r.PathValue("section")
	s.store.MarkSectionRead(t.ID, section)
	writeJSON(w, http.StatusOK, map[string]any{"id": t.ID, "section": section, "read": true})
}

type timeRequest struct {
	Seconds int `json:"seconds"`
}

func (s *Server) handleTopicTime(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	var req timeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, "seconds must be positive")
		return
	}
	s.store.AddTopicTime(t.ID, req.Seconds)
	writeJSON(w, http.StatusOK, map[string]any{"id": t.ID, "seconds": s.store.TopicTime()[t.ID]})
}

type confidenceRequest struct {
	Rating int `json:"rating"`
}

func (s *Server) handleConfidence(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "objective must be a non-negative integer")
		return
	}
	var req confidenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.store.SaveConfidenceRating(t.ID, n, req.Rating); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Confidence()[t.ID][n])
}

type bookmarkRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	var req bookmarkRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	section := r.PathValue("section")
	s.store.AddBookmark(t.ID, section, req.Title)
	writeJSON(w, http.StatusOK, map[string]any{"id": t.ID, "section": section, "bookmarked": true})
}

func (s *Server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	section := r.PathValue("section")
	s.store.RemoveBookmark(t.ID, section)
	writeJSON(w, http.StatusOK, map[string]any{"id": t.ID, "section": section, "bookmarked": false})
}

type noteRequest struct {
	Text string `json:"text"`
}

// handleSaveNote stores a section note. Blank text deletes it.
func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	section := r.PathValue("section")
	s.store.SaveNote(t.ID, section, req.Text)
	note, ok := s.store.Notes()[t.ID][section]
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	t, ok := s.topic(w, r)
	if !ok {
		return
	}
	s.store.DeleteNote(t.ID, r.PathValue("section"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHomework(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	checked := s.store.ToggleHomeworkCheck(id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "checked": checked})
}

type quizRequest struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
}

func (s *Server) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.QuestionID) == "" {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}
	s.store.RecordQuizAnswer(req.QuestionID, req.Correct)
	w.WriteHeader(http.StatusNoContent)
}

type examRequest struct {
	Score   int      `json:"score"`
	Total   int      `json:"total"`
	Elapsed int      `json:"elapsed"` // seconds
	Topics  []string `json:"topics"`
}

func (s *Server) handleExamScore(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Total <= 0 || req.Score < 0 || req.Score > req.Total {
		writeError(w, http.StatusBadRequest, "score must be between 0 and a positive total")
		return
	}
	exam := s.store.RecordExamScore(req.Score, req.Total, time.Duration(req.Elapsed)*time.Second, req.Topics)
	writeJSON(w, http.StatusCreated, exam)
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.store.SetTheme(req.Theme); err != nil {
		if errors.Is(err, state.ErrInvalidTheme) {
			writeError(w, http.StatusBadRequest, "theme must be light or dark")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, themeRequest{Theme: s.store.Theme()})
}

func (s *Server) handleAddFlashcard(w http.ResponseWriter, r *http.Request) {
	var card state.Card
	if !decodeJSON(w, r, &card) {
		return
	}
	added, err := s.store.AddFlashcard(card)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleRemoveFlashcard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.RemoveFlashcard(id) {
		writeError(w, http.StatusNotFound, "unknown flashcard: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewRequest struct {
	Quality int `json:"quality"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := s.store.SaveFlashcardReview(r.PathValue("id"), srs.Quality(req.Quality))
	if errors.Is(err, srs.ErrInvalidQuality) {
		writeError(w, http.StatusBadRequest, "quality must be one of 1, 3, 4, 5")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// cardIDs lists every reviewable card: catalog vocabulary first, then
// custom cards.
func (s *Server) cardIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range s.catalog.IDs() {
		for _, cid := range s.contentFor(id).VocabularyCardIDs() {
			add(cid)
		}
	}
	for _, c := range s.store.Flashcards().Cards {
		add(c.ID)
	}
	return ids
}

func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	now := s.store.Now()
	reviews := s.store.Flashcards().Reviews
	due := srs.DueCards(s.cardIDs(), reviews, now)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"due":   due,
		"stats": srs.Summarize(reviews, now),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultActivityDays)
	if err != nil || days < 1 || days > maxActivityDays {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 366")
		return
	}
	log := s.store.ActivityLog()
	now := s.store.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"currentStreak": activity.CurrentStreak(log, now),
		"longestStreak": activity.LongestStreak(log),
		"activeDays":    activity.ActiveDays(log),
		"total":         activity.Total(log),
		"days":          activity.LastNDays(log, now, days),
		"feed":          s.store.ActivityFeed(),
	})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"achievements": s.evaluator.Progress(),
		"stats":        s.evaluator.Stats(),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	earned := s.evaluator.Evaluate()
	if earned == nil {
		earned = []achievement.Earned{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"earned": earned})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := backup.Export(s.store)
	if err != nil {
		slog.Error("export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	name := "pai-study-" + activity.DateKey(s.store.Now()) + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	res, err := backup.Import(s.store, data)
	switch {
	case errors.Is(err, backup.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, backup.ErrNothingToImport):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "skipped": res.Skipped})
	case err != nil:
		slog.Error("import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "import failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// handleReset deletes all persisted progress.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	slog.Info("study progress reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	f, err := s.reports.Build(s.store)
	if err != nil {
		slog.Error("report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "report failed")
		return
	}
	defer f.Close()

	name := "pai-study-report-" + activity.DateKey(s.store.Now()) + ".xlsx"
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := f.WriteTo(w); err != nil {
		slog.Warn("failed to write report", "error", err)
	}
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
