package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/httpapi"
	"github.com/p-n-ai/pai-study/internal/state"
	"github.com/p-n-ai/pai-study/internal/storage"
)

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type contentMap map[string]*curriculum.Content

func (m contentMap) Content(id string) (*curriculum.Content, bool) {
	c, ok := m[id]
	return c, ok
}

type checkFunc func(context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func newServer(t *testing.T, d httpapi.Deps) (http.Handler, *state.Store) {
	t.Helper()
	if d.Store == nil {
		d.Store = state.New(storage.NewMemoryBackend(), state.WithClock(func() time.Time { return t0 }))
	}
	if d.Content == nil {
		d.Content = contentMap{
			"storage": {
				TopicID:    "storage",
				Sections:   []curriculum.Section{{ID: "s1"}, {ID: "s2"}},
				Vocabulary: []curriculum.Term{{Term: "LSM"}, {Term: "B-tree"}},
			},
		}
	}
	return httpapi.New(d).Handler(), d.Store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newServer(t, httpapi.Deps{
		Checks: map[string]httpapi.HealthChecker{
			"database": checkFunc(func(context.Context) error { return nil }),
		},
	})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthz returns 200", "/healthz", http.StatusOK, `{"status":"ok"}`},
		{"readyz returns 200", "/readyz", http.StatusOK, `{"status":"ready"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	h, _ := newServer(t, httpapi.Deps{
		Checks: map[string]httpapi.HealthChecker{
			"cache": checkFunc(func(context.Context) error { return errors.New("connection refused") }),
		},
	})

	rec := do(t, h, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["failed"] != "cache" {
		t.Errorf("body = %v, want failed cache", got)
	}
}

func TestTopics(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})
	s.MarkSectionRead("storage", "s1")
	s.MarkTopicComplete("storage")

	rec := do(t, h, http.MethodGet, "/api/topics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Topics []struct {
			ID       string `json:"id"`
			Complete bool   `json:"complete"`
			Mastery  int    `json:"mastery"`
		} `json:"topics"`
	}](t, rec)

	if len(body.Topics) != len(curriculum.DefaultTopics) {
		t.Fatalf("got %d topics, want %d", len(body.Topics), len(curriculum.DefaultTopics))
	}
	for _, tp := range body.Topics {
		if tp.ID != "storage" {
			continue
		}
		// One of two sections read: 0.4 * 0.5.
		if !tp.Complete || tp.Mastery != 20 {
			t.Errorf("storage = %+v, want complete with mastery 20", tp)
		}
	}
	if _, ok := s.TopicContent("storage"); !ok {
		t.Error("loaded content should be cached in the store")
	}
}

func TestTopicMastery(t *testing.T) {
	h, _ := newServer(t, httpapi.Deps{})

	if rec := do(t, h, http.MethodGet, "/api/topics/storage/mastery", ""); rec.Code != http.StatusOK {
		t.Errorf("known topic status = %d, want 200", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/topics/alchemy/mastery", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown topic status = %d, want 404", rec.Code)
	}
}

func TestTopicCompletion(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})

	if rec := do(t, h, http.MethodPost, "/api/topics/consensus/complete", ""); rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d", rec.Code)
	}
	if !s.IsTopicComplete("consensus") {
		t.Error("topic not marked complete")
	}
	if rec := do(t, h, http.MethodDelete, "/api/topics/consensus/complete", ""); rec.Code != http.StatusOK {
		t.Fatalf("incomplete status = %d", rec.Code)
	}
	if s.IsTopicComplete("consensus") {
		t.Error("topic still complete")
	}
	if rec := do(t, h, http.MethodPost, "/api/topics/alchemy/complete", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown topic status = %d, want 404", rec.Code)
	}
}

func TestQuizAnswer(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"questionId":"storage-q1","correct":true}`, http.StatusNoContent},
		{"missing id", `{"correct":true}`, http.StatusBadRequest},
		{"unknown field", `{"questionId":"x","bogus":1}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/api/quiz", tt.body); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
	if got := s.QuizAnswers(); len(got) != 1 || !got["storage-q1"] {
		t.Errorf("QuizAnswers() = %v", got)
	}
}

func TestExamAndTheme(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})

	rec := do(t, h, http.MethodPost, "/api/exams", `{"score":3,"total":4,"elapsed":120,"topics":["storage"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("exam status = %d", rec.Code)
	}
	if got := decode[state.ExamScore](t, rec); got.Percentage != 75 {
		t.Errorf("Percentage = %d, want 75", got.Percentage)
	}
	if rec := do(t, h, http.MethodPost, "/api/exams", `{"score":5,"total":4}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid exam status = %d, want 400", rec.Code)
	}

	if rec := do(t, h, http.MethodPut, "/api/theme", `{"theme":"dark"}`); rec.Code != http.StatusOK {
		t.Fatalf("theme status = %d", rec.Code)
	}
	if s.Theme() != state.ThemeDark {
		t.Errorf("Theme() = %q, want dark", s.Theme())
	}
	for _, body := range []string{`{"theme":"sepia"}`, `{"theme":""}`, `{}`} {
		if rec := do(t, h, http.MethodPut, "/api/theme", body); rec.Code != http.StatusBadRequest {
			t.Errorf("theme %s status = %d, want 400", body, rec.Code)
		}
	}
	if s.Theme() != state.ThemeDark {
		t.Errorf("Theme() = %q after invalid requests, want dark", s.Theme())
	}
}

func TestTopicTime(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"valid", "/api/topics/storage/time", `{"seconds":90}`, http.StatusOK},
		{"again", "/api/topics/storage/time", `{"seconds":30}`, http.StatusOK},
		{"zero", "/api/topics/storage/time", `{"seconds":0}`, http.StatusBadRequest},
		{"unknown topic", "/api/topics/alchemy/time", `{"seconds":5}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, tt.path, tt.body); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
	if got := s.TopicTime()["storage"]; got != 120 {
		t.Errorf("TopicTime()[storage] = %d, want 120", got)
	}
}

func TestHomework(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})

	for _, want := range []bool{true, false} {
		rec := do(t, h, http.MethodPut, "/api/homework/storage-hw-1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		got := decode[struct {
			Checked bool `json:"checked"`
		}](t, rec)
		if got.Checked != want || s.Homework()["storage-hw-1"] != want {
			t.Errorf("checked = %v, store = %v, want %v", got.Checked, s.Homework()["storage-hw-1"], want)
		}
	}
}

func TestConfidence(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"valid", "/api/topics/storage/objectives/1/confidence", `{"rating":4}`, http.StatusOK},
		{"rating too high", "/api/topics/storage/objectives/1/confidence", `{"rating":6}`, http.StatusBadRequest},
		{"rating zero", "/api/topics/storage/objectives/0/confidence", `{"rating":0}`, http.StatusBadRequest},
		{"bad index", "/api/topics/storage/objectives/x/confidence", `{"rating":3}`, http.StatusBadRequest},
		{"negative index", "/api/topics/storage/objectives/-1/confidence", `{"rating":3}`, http.StatusBadRequest},
		{"unknown topic", "/api/topics/alchemy/objectives/0/confidence", `{"rating":3}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPut, tt.path, tt.body); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
	got := s.Confidence()["storage"]
	if len(got) != 1 || got[1].Rating != 4 {
		t.Errorf("Confidence()[storage] = %v, want objective 1 rated 4", got)
	}
}

func TestBookmarksAndNotes(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})
	const base = "/api/topics/storage/sections/s1"

	if rec := do(t, h, http.MethodPost, base+"/bookmark", `{"title":"Write path"}`); rec.Code != http.StatusOK {
		t.Fatalf("bookmark status = %d: %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodPost, "/api/topics/storage/sections/s2/bookmark", ""); rec.Code != http.StatusOK {
		t.Fatalf("bookmark without body status = %d: %s", rec.Code, rec.Body)
	}
	marks := s.Bookmarks()
	if len(marks) != 2 || marks[0].SectionTitle != "Write path" {
		t.Errorf("Bookmarks() = %+v, want two with s1 titled", marks)
	}
	if rec := do(t, h, http.MethodDelete, base+"/bookmark", ""); rec.Code != http.StatusOK {
		t.Fatalf("remove bookmark status = %d", rec.Code)
	}
	if s.IsBookmarked("storage", "s1") || !s.IsBookmarked("storage", "s2") {
		t.Errorf("Bookmarks() = %+v, want only s2", s.Bookmarks())
	}

	rec := do(t, h, http.MethodPut, base+"/note", `{"text":"memtable flushes to SSTables"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("note status = %d: %s", rec.Code, rec.Body)
	}
	if got := decode[state.Note](t, rec); got.Text != "memtable flushes to SSTables" {
		t.Errorf("note = %+v", got)
	}
	if rec := do(t, h, http.MethodPut, base+"/note", `{"text":"  "}`); rec.Code != http.StatusNoContent {
		t.Errorf("blank note status = %d, want 204", rec.Code)
	}
	if _, ok := s.Notes()["storage"]["s1"]; ok {
		t.Error("blank note should delete the note")
	}
	_ = do(t, h, http.MethodPut, base+"/note", `{"text":"again"}`)
	if rec := do(t, h, http.MethodDelete, base+"/note", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete note status = %d, want 204", rec.Code)
	}
	if len(s.Notes()["storage"]) != 0 {
		t.Errorf("Notes() = %v, want none", s.Notes())
	}
	if rec := do(t, h, http.MethodPut, "/api/topics/alchemy/sections/s1/note", `{"text":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown topic status = %d, want 404", rec.Code)
	}
}

func TestReset(t *testing.T) {
	backend := storage.NewMemoryBackend()
	store := state.New(backend)
	h, _ := newServer(t, httpapi.Deps{Store: store})
	store.MarkTopicComplete("storage")
	store.RecordQuizAnswer("storage-q1", true)

	if rec := do(t, h, http.MethodPost, "/api/reset", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if store.IsTopicComplete("storage") || len(store.QuizAnswers()) != 0 {
		t.Error("reset should clear progress")
	}
	if keys := backend.Keys(); len(keys) != 0 {
		t.Errorf("backend keys = %v, want none", keys)
	}
}

func TestFlashcards(t *testing.T) {
	h, _ := newServer(t, httpapi.Deps{})

	rec := do(t, h, http.MethodPost, "/api/flashcards", `{"front":"Raft","back":"Leader-based consensus","topicId":"consensus"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body)
	}
	card := decode[state.Card](t, rec)
	if !strings.HasPrefix(card.ID, "card-") {
		t.Errorf("card id = %q, want generated", card.ID)
	}

	rec = do(t, h, http.MethodGet, "/api/flashcards/due", "")
	due := decode[struct {
		Due []string `json:"due"`
	}](t, rec)
	want := []string{"storage-vocab-0", "storage-vocab-1", card.ID}
	if strings.Join(due.Due, ",") != strings.Join(want, ",") {
		t.Errorf("due = %v, want %v", due.Due, want)
	}

	rec = do(t, h, http.MethodPost, "/api/flashcards/storage-vocab-0/review", `{"quality":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("review status = %d: %s", rec.Code, rec.Body)
	}
	if got := decode[struct {
		Interval int `json:"interval"`
	}](t, rec); got.Interval != 1 {
		t.Errorf("interval = %d, want 1", got.Interval)
	}

	if rec := do(t, h, http.MethodPost, "/api/flashcards/storage-vocab-1/review", `{"quality":2}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid quality status = %d, want 400", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/flashcards/due?limit=1", "")
	due = decode[struct {
		Due []string `json:"due"`
	}](t, rec)
	if len(due.Due) != 1 || due.Due[0] != "storage-vocab-1" {
		t.Errorf("due = %v, want [storage-vocab-1]", due.Due)
	}
	if rec := do(t, h, http.MethodGet, "/api/flashcards/due?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/api/flashcards/"+card.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/flashcards/"+card.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestActivity(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})
	s.MarkTopicComplete("storage")

	rec := do(t, h, http.MethodGet, "/api/activity?days=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		CurrentStreak int   `json:"currentStreak"`
		Total         int   `json:"total"`
		Days          []any `json:"days"`
		Feed          []any `json:"feed"`
	}](t, rec)
	if body.CurrentStreak != 1 || body.Total != 1 || len(body.Days) != 7 || len(body.Feed) != 1 {
		t.Errorf("activity = %+v", body)
	}

	if rec := do(t, h, http.MethodGet, "/api/activity?days=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("days=0 status = %d, want 400", rec.Code)
	}
}

func TestAchievements(t *testing.T) {
	h, s := newServer(t, httpapi.Deps{})
	s.RecordQuizAnswer("storage-q1", true)

	type earnedBody struct {
		Earned []struct {
			ID string `json:"id"`
		} `json:"earned"`
	}

	rec := do(t, h, http.MethodPost, "/api/achievements/evaluate", "")
	first := decode[earnedBody](t, rec)
	if len(first.Earned) != 1 || first.Earned[0].ID != "first-quiz" {
		t.Errorf("first evaluate = %+v, want first-quiz", first)
	}

	rec = do(t, h, http.MethodPost, "/api/achievements/evaluate", "")
	if !strings.Contains(rec.Body.String(), `"earned":[]`) {
		t.Errorf("second evaluate body = %s, want empty list", rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/api/achievements", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"first-quiz"`) {
		t.Errorf("achievements = %d %s", rec.Code, rec.Body)
	}
}

func TestExportImport(t *testing.T) {
	src, s := newServer(t, httpapi.Deps{})
	s.MarkTopicComplete("replication")
	if err := s.SetTheme(state.ThemeDark); err != nil {
		t.Fatal(err)
	}

	rec := do(t, src, http.MethodGet, "/api/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "pai-study-2026-06-01.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	dst, d := newServer(t, httpapi.Deps{})
	rec = do(t, dst, http.MethodPost, "/api/import", rec.Body.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}
	if !d.IsTopicComplete("replication") || d.Theme() != state.ThemeDark {
		t.Error("imported store does not match exported one")
	}

	if rec := do(t, dst, http.MethodPost, "/api/import", `{"hello":"world"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unrecognised document status = %d, want 400", rec.Code)
	}
	if rec := do(t, dst, http.MethodPost, "/api/import", `{"_version":"pai-study/1","study-quiz":"x"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no valid keys status = %d, want 422", rec.Code)
	}
}

func TestReport(t *testing.T) {
	h, _ := newServer(t, httpapi.Deps{})

	rec := do(t, h, http.MethodGet, "/api/report.xlsx", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("body is not a zip container")
	}
}

func TestEventsRoute(t *testing.T) {
	h, _ := newServer(t, httpapi.Deps{})
	if rec := do(t, h, http.MethodGet, "/ws", ""); rec.Code != http.StatusNotFound {
		t.Errorf("/ws without events status = %d, want 404", rec.Code)
	}

	called := false
	h, _ = newServer(t, httpapi.Deps{Events: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})})
	do(t, h, http.MethodGet, "/ws", "")
	if !called {
		t.Error("/ws did not reach the events handler")
	}
}
