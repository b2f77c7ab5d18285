package state

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-study/internal/activity"
	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/srs"
)

func txGet[T any](tx *txn, key Key) T {
	v, _ := tx.get(key).(T)
	return v
}

// track bumps today's activity counter and prepends a feed entry.
func (tx *txn) track(kind, detail string) {
	now := tx.s.now()

	log := txGet[activity.Log](tx, KeyActivityLog)
	tx.set(KeyActivityLog, activity.Increment(log, activity.DateKey(now)))

	feed := txGet[[]activity.Entry](tx, KeyActivityFeed)
	tx.set(KeyActivityFeed, activity.Prepend(feed, activity.Entry{
		Kind:      kind,
		Detail:    detail,
		Timestamp: now,
	}, activity.FeedLimit))
}

// RecordActivity logs one tracked action for today.
func (s *Store) RecordActivity(kind, detail string) {
	s.apply(func(tx *txn) {
		tx.track(kind, detail)
	})
}

// MarkTopicComplete marks topicID complete. Marking an already complete
// topic is a no-op.
func (s *Store) MarkTopicComplete(topicID string) {
	s.apply(func(tx *txn) {
		progress := txGet[map[string]bool](tx, KeyProgress)
		if progress[topicID] {
			return
		}
		next := cloneMap(progress)
		next[topicID] = true
		tx.set(KeyProgress, next)
		tx.track(activity.KindTopicComplete, topicID)
	})
}

// MarkTopicIncomplete removes topicID from progress. Quiz answers, reviews
// and other records for the topic are kept.
func (s *Store) MarkTopicIncomplete(topicID string) {
	s.apply(func(tx *txn) {
		progress := txGet[map[string]bool](tx, KeyProgress)
		if _, ok := progress[topicID]; !ok {
			return
		}
		next := cloneMap(progress)
		delete(next, topicID)
		tx.set(KeyProgress, next)
	})
}

// RecordQuizAnswer stores the outcome of the latest attempt at questionID,
// replacing any earlier attempt.
func (s *Store) RecordQuizAnswer(questionID string, correct bool) {
	s.apply(func(tx *txn) {
		next := cloneMap(txGet[map[string]bool](tx, KeyQuiz))
		next[questionID] = correct
		tx.set(KeyQuiz, next)
		tx.track(activity.KindQuizAnswer, questionID)
	})
}

// ToggleHomeworkCheck flips a homework check and returns its new state.
// Only checking (not unchecking) counts as activity.
func (s *Store) ToggleHomeworkCheck(checkID string) bool {
	var checked bool
	s.apply(func(tx *txn) {
		next := cloneMap(txGet[map[string]bool](tx, KeyHomework))
		checked = !next[checkID]
		if checked {
			next[checkID] = true
		} else {
			delete(next, checkID)
		}
		tx.set(KeyHomework, next)
		if checked {
			tx.track(activity.KindHomework, checkID)
		}
	})
	return checked
}

// SaveFlashcardReview schedules cardID after a review of quality q and
// returns the updated record.
func (s *Store) SaveFlashcardReview(cardID string, q srs.Quality) (srs.Record, error) {
	var (
		rec srs.Record
		err error
	)
	s.apply(func(tx *txn) {
		cards := txGet[Flashcards](tx, KeyFlashcards)

		var existing *srs.Record
		if prev, ok := cards.Reviews[cardID]; ok {
			existing = &prev
		}
		rec, err = srs.ReviewCard(existing, q, tx.s.now())
		if err != nil {
			return
		}

		next := cloneFlashcards(cards)
		next.Reviews[cardID] = rec
		tx.set(KeyFlashcards, next)
		tx.track(activity.KindFlashcard, cardID)
	})
	return rec, err
}

// AddFlashcard stores a user-authored card. An empty ID is generated.
func (s *Store) AddFlashcard(card Card) (Card, error) {
	if strings.TrimSpace(card.Front) == "" || strings.TrimSpace(card.Back) == "" {
		return Card{}, fmt.Errorf("card front and back are required")
	}
	if card.ID == "" {
		card.ID = "card-" + uuid.NewString()
	}
	if card.Created.IsZero() {
		card.Created = s.now()
	}

	var dup bool
	s.apply(func(tx *txn) {
		cards := txGet[Flashcards](tx, KeyFlashcards)
		if slices.ContainsFunc(cards.Cards, func(c Card) bool { return c.ID == card.ID }) {
			dup = true
			return
		}
		next := cloneFlashcards(cards)
		next.Cards = append(next.Cards, card)
		tx.set(KeyFlashcards, next)
	})
	if dup {
		return Card{}, fmt.Errorf("card already exists: %s", card.ID)
	}
	return card, nil
}

// RemoveFlashcard deletes a user-authored card. Its review record stays.
func (s *Store) RemoveFlashcard(cardID string) bool {
	var removed bool
	s.apply(func(tx *txn) {
		cards := txGet[Flashcards](tx, KeyFlashcards)
		i := slices.IndexFunc(cards.Cards, func(c Card) bool { return c.ID == cardID })
		if i < 0 {
			return
		}
		next := cloneFlashcards(cards)
		next.Cards = slices.Delete(next.Cards, i, i+1)
		tx.set(KeyFlashcards, next)
		removed = true
	})
	return removed
}

// SaveConfidenceRating records a 1–5 self-assessment for one objective.
func (s *Store) SaveConfidenceRating(topicID string, objectiveIndex, rating int) error {
	if rating < MinConfidence || rating > MaxConfidence {
		return fmt.Errorf("confidence rating must be %d-%d, got %d", MinConfidence, MaxConfidence, rating)
	}
	if objectiveIndex < 0 {
		return fmt.Errorf("objective index must be non-negative, got %d", objectiveIndex)
	}

	s.apply(func(tx *txn) {
		next := cloneNested(txGet[map[string]map[int]ConfidenceRating](tx, KeyConfidence), cloneMap[int, ConfidenceRating])
		if next[topicID] == nil {
			next[topicID] = map[int]ConfidenceRating{}
		}
		next[topicID][objectiveIndex] = ConfidenceRating{Rating: rating, Updated: tx.s.now()}
		tx.set(KeyConfidence, next)
		tx.track(activity.KindConfidence, fmt.Sprintf("%s#%d", topicID, objectiveIndex))
	})
	return nil
}

// AddBookmark bookmarks a section. Bookmarking an already bookmarked section
// is a no-op.
func (s *Store) AddBookmark(topicID, sectionID, sectionTitle string) {
	s.apply(func(tx *txn) {
		marks := txGet[[]Bookmark](tx, KeyBookmarks)
		for _, b := range marks {
			if b.TopicID == topicID && b.SectionID == sectionID {
				return
			}
		}
		next := append(slices.Clone(marks), Bookmark{
			TopicID:      topicID,
			SectionID:    sectionID,
			SectionTitle: sectionTitle,
			Date:         tx.s.now(),
		})
		tx.set(KeyBookmarks, next)
		tx.track(activity.KindBookmark, topicID+"/"+sectionID)
	})
}

// RemoveBookmark removes a section bookmark if present.
func (s *Store) RemoveBookmark(topicID, sectionID string) {
	s.apply(func(tx *txn) {
		marks := txGet[[]Bookmark](tx, KeyBookmarks)
		next := slices.DeleteFunc(slices.Clone(marks), func(b Bookmark) bool {
			return b.TopicID == topicID && b.SectionID == sectionID
		})
		if len(next) != len(marks) {
			tx.set(KeyBookmarks, next)
		}
	})
}

// SaveNote stores a note for a section. Blank text deletes the note.
func (s *Store) SaveNote(topicID, sectionID, text string) {
	if strings.TrimSpace(text) == "" {
		s.DeleteNote(topicID, sectionID)
		return
	}

	s.apply(func(tx *txn) {
		next := cloneNested(txGet[map[string]map[string]Note](tx, KeyNotes), cloneMap[string, Note])
		if next[topicID] == nil {
			next[topicID] = map[string]Note{}
		}
		next[topicID][sectionID] = Note{Text: text, Updated: tx.s.now()}
		tx.set(KeyNotes, next)
		tx.track(activity.KindNote, topicID+"/"+sectionID)
	})
}

// DeleteNote removes a section note if present.
func (s *Store) DeleteNote(topicID, sectionID string) {
	s.apply(func(tx *txn) {
		notes := txGet[map[string]map[string]Note](tx, KeyNotes)
		if _, ok := notes[topicID][sectionID]; !ok {
			return
		}
		next := cloneNested(notes, cloneMap[string, Note])
		delete(next[topicID], sectionID)
		if len(next[topicID]) == 0 {
			delete(next, topicID)
		}
		tx.set(KeyNotes, next)
	})
}

// MarkSectionRead records that a section was read. Re-reading is a no-op.
func (s *Store) MarkSectionRead(topicID, sectionID string) {
	s.apply(func(tx *txn) {
		read := txGet[map[string][]string](tx, KeySectionsRead)
		if slices.Contains(read[topicID], sectionID) {
			return
		}
		next := cloneNested(read, slices.Clone[[]string, string])
		next[topicID] = append(next[topicID], sectionID)
		tx.set(KeySectionsRead, next)
		tx.track(activity.KindSectionRead, topicID+"/"+sectionID)
	})
}

// AddTopicTime adds seconds of study time to a topic. Non-positive values
// are ignored.
func (s *Store) AddTopicTime(topicID string, seconds int) {
	if seconds <= 0 {
		return
	}
	s.apply(func(tx *txn) {
		next := cloneMap(txGet[map[string]int](tx, KeyTopicTime))
		next[topicID] += seconds
		tx.set(KeyTopicTime, next)
	})
}

// RecordExamScore appends a finished exam to the history, evicting the
// oldest entries beyond ExamHistoryLimit.
func (s *Store) RecordExamScore(score, total int, elapsed time.Duration, topics []string) ExamScore {
	entry := ExamScore{
		Score:   score,
		Total:   total,
		Elapsed: int(elapsed.Seconds()),
		Topics:  slices.Clone(topics),
	}
	if total > 0 {
		entry.Percentage = int(math.Round(100 * float64(score) / float64(total)))
	}

	s.apply(func(tx *txn) {
		entry.Date = tx.s.now()
		next := append(slices.Clone(txGet[[]ExamScore](tx, KeyExamScores)), entry)
		if len(next) > ExamHistoryLimit {
			next = next[len(next)-ExamHistoryLimit:]
		}
		tx.set(KeyExamScores, next)
		tx.track(activity.KindExamCompleted, fmt.Sprintf("%d/%d", score, total))
	})
	return entry
}

// RecordAchievements stores first-earned times for the given ids and
// returns the ids that were not already recorded. Recorded ids are never
// overwritten.
func (s *Store) RecordAchievements(earned map[string]time.Time) []string {
	var added []string
	s.apply(func(tx *txn) {
		current := txGet[map[string]time.Time](tx, KeyAchievements)
		next := cloneMap(current)
		for id, at := range earned {
			if _, ok := current[id]; ok {
				continue
			}
			next[id] = at
			added = append(added, id)
		}
		if len(added) > 0 {
			tx.set(KeyAchievements, next)
		}
	})
	slices.Sort(added)
	return added
}

// SetTheme sets the UI theme preference to ThemeLight or ThemeDark.
func (s *Store) SetTheme(theme string) error {
	if !IsTheme(theme) {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	return s.Set(KeyTheme, theme)
}

// ToggleTheme switches between light and dark and returns the new theme.
func (s *Store) ToggleTheme() string {
	var theme string
	s.apply(func(tx *txn) {
		theme = ThemeDark
		if txGet[string](tx, KeyTheme) == ThemeDark {
			theme = ThemeLight
		}
		tx.set(KeyTheme, theme)
	})
	return theme
}

// SetRoute records the current view route.
func (s *Store) SetRoute(route string) {
	_ = s.Set(KeyRoute, route)
}

// SetSidebarOpen sets the sidebar UI flag.
func (s *Store) SetSidebarOpen(open bool) {
	_ = s.Set(KeySidebarOpen, open)
}

// CacheTopicContent keeps loaded topic content in memory for the session.
func (s *Store) CacheTopicContent(content *curriculum.Content) {
	if content == nil || content.TopicID == "" {
		return
	}
	s.apply(func(tx *txn) {
		next := cloneMap(txGet[map[string]*curriculum.Content](tx, KeyTopicContent))
		next[content.TopicID] = content
		tx.set(KeyTopicContent, next)
	})
}
