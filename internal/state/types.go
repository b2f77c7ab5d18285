package state

import (
	"time"

	"github.com/p-n-ai/pai-study/internal/srs"
)

// ExamHistoryLimit caps the stored exam history; the oldest entries are
// evicted first.
const ExamHistoryLimit = 20

// Flashcards holds user-authored cards and the review state of every card,
// including vocabulary cards that are defined by topic content.
type Flashcards struct {
	Cards   []Card                `json:"cards"`
	Reviews map[string]srs.Record `json:"reviews"`
}

// Card is a user-authored flashcard.
type Card struct {
	ID      string    `json:"id"`
	TopicID string    `json:"topicId"`
	Front   string    `json:"front"`
	Back    string    `json:"back"`
	Created time.Time `json:"created"`
}

// ExamScore is one completed practice exam.
type ExamScore struct {
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Percentage int       `json:"pct"`
	Elapsed    int       `json:"elapsed"` // seconds
	Topics     []string  `json:"topics"`
	Date       time.Time `json:"date"`
}

// Bookmark marks a section of a topic.
type Bookmark struct {
	TopicID      string    `json:"topicId"`
	SectionID    string    `json:"sectionId"`
	SectionTitle string    `json:"sectionTitle"`
	Date         time.Time `json:"date"`
}

// Note is a personal note attached to a topic section.
type Note struct {
	Text    string    `json:"text"`
	Updated time.Time `json:"updated"`
}

// ConfidenceRating is the learner's self-assessment for one learning
// objective, from 1 (not confident) to 5 (very confident).
type ConfidenceRating struct {
	Rating  int       `json:"rating"`
	Updated time.Time `json:"updated"`
}

// Rating bounds for ConfidenceRating.
const (
	MinConfidence = 1
	MaxConfidence = 5
)

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)
