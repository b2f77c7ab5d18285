package state

import (
	"maps"
	"slices"
	"time"

	"github.com/p-n-ai/pai-study/internal/activity"
	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/srs"
)

// getAs returns a copy of a slot's value as T.
func getAs[T any](s *Store, key Key) T {
	v, _ := s.Get(key).(T)
	return v
}

// peekAs returns a slot's value without copying it. Callers must not
// modify or retain the result.
func peekAs[T any](s *Store, key Key) T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := s.values[key].(T)
	return v
}

// Theme returns the UI theme preference.
func (s *Store) Theme() string { return getAs[string](s, KeyTheme) }

// Route returns the current view route.
func (s *Store) Route() string { return getAs[string](s, KeyRoute) }

// SidebarOpen reports the sidebar UI flag.
func (s *Store) SidebarOpen() bool { return getAs[bool](s, KeySidebarOpen) }

// Progress returns topic id → complete.
func (s *Store) Progress() map[string]bool { return getAs[map[string]bool](s, KeyProgress) }

// QuizAnswers returns question id → answered correctly on the latest attempt.
func (s *Store) QuizAnswers() map[string]bool { return getAs[map[string]bool](s, KeyQuiz) }

// Homework returns check id → checked.
func (s *Store) Homework() map[string]bool { return getAs[map[string]bool](s, KeyHomework) }

// Flashcards returns user cards and every review record.
func (s *Store) Flashcards() Flashcards { return getAs[Flashcards](s, KeyFlashcards) }

// Review returns the review record of a card, if it has been reviewed.
func (s *Store) Review(cardID string) (srs.Record, bool) {
	rec, ok := peekAs[Flashcards](s, KeyFlashcards).Reviews[cardID]
	return rec, ok
}

// ActivityLog returns date → tracked action count.
func (s *Store) ActivityLog() activity.Log { return getAs[activity.Log](s, KeyActivityLog) }

// ActivityFeed returns the recent-activity feed, newest first.
func (s *Store) ActivityFeed() []activity.Entry { return getAs[[]activity.Entry](s, KeyActivityFeed) }

// ExamScores returns the exam history, oldest first.
func (s *Store) ExamScores() []ExamScore { return getAs[[]ExamScore](s, KeyExamScores) }

// Bookmarks returns every bookmark in the order added.
func (s *Store) Bookmarks() []Bookmark { return getAs[[]Bookmark](s, KeyBookmarks) }

// SectionsRead returns topic id → ids of sections read.
func (s *Store) SectionsRead() map[string][]string {
	return getAs[map[string][]string](s, KeySectionsRead)
}

// Notes returns topic id → section id → note.
func (s *Store) Notes() map[string]map[string]Note {
	return getAs[map[string]map[string]Note](s, KeyNotes)
}

// Confidence returns topic id → objective index → rating.
func (s *Store) Confidence() map[string]map[int]ConfidenceRating {
	return getAs[map[string]map[int]ConfidenceRating](s, KeyConfidence)
}

// Achievements returns achievement id → first-earned time.
func (s *Store) Achievements() map[string]time.Time {
	return getAs[map[string]time.Time](s, KeyAchievements)
}

// TopicTime returns topic id → seconds spent.
func (s *Store) TopicTime() map[string]int { return getAs[map[string]int](s, KeyTopicTime) }

// TopicContent returns content cached by CacheTopicContent. The content is
// shared and must be treated as read-only.
func (s *Store) TopicContent(topicID string) (*curriculum.Content, bool) {
	c, ok := peekAs[map[string]*curriculum.Content](s, KeyTopicContent)[topicID]
	return c, ok && c != nil
}

// IsTopicComplete reports whether topicID is marked complete.
func (s *Store) IsTopicComplete(topicID string) bool {
	return peekAs[map[string]bool](s, KeyProgress)[topicID]
}

// IsBookmarked reports whether a section is bookmarked.
func (s *Store) IsBookmarked(topicID, sectionID string) bool {
	for _, b := range peekAs[[]Bookmark](s, KeyBookmarks) {
		if b.TopicID == topicID && b.SectionID == sectionID {
			return true
		}
	}
	return false
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	maps.Copy(out, m)
	return out
}

func cloneNested[V any](m map[string]V, cloneInner func(V) V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = cloneInner(v)
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	return append(make([]T, 0, len(s)), s...)
}

func cloneExamScores(scores []ExamScore) []ExamScore {
	out := cloneSlice(scores)
	for i := range out {
		out[i].Topics = slices.Clone(out[i].Topics)
	}
	return out
}

func cloneFlashcards(f Flashcards) Flashcards {
	return Flashcards{
		Cards:   cloneSlice(f.Cards),
		Reviews: cloneMap(f.Reviews),
	}
}
