package achievement

import (
	"math"

	"github.com/p-n-ai/pai-study/internal/activity"
	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/srs"
	"github.com/p-n-ai/pai-study/internal/state"
)

// PerfectTopicMinAnswers is the number of answered questions a topic needs
// before an all-correct record counts as perfect.
const PerfectTopicMinAnswers = 5

// Stats aggregates the store state that achievements are judged on.
type Stats struct {
	TopicsTotal       int `json:"topicsTotal"`
	TopicsCompleted   int `json:"topicsCompleted"`
	SectionsRead      int `json:"sectionsRead"`
	QuizAnswered      int `json:"quizAnswered"`
	QuizCorrect       int `json:"quizCorrect"`
	QuizAccuracy      int `json:"quizAccuracy"` // percent
	PerfectTopics     int `json:"perfectTopics"`
	FlashcardReviews  int `json:"flashcardReviews"`
	CardsReviewed     int `json:"cardsReviewed"`
	MatureCards       int `json:"matureCards"`
	ExamsTaken        int `json:"examsTaken"`
	BestExamPct       int `json:"bestExamPct"`
	Bookmarks         int `json:"bookmarks"`
	Notes             int `json:"notes"`
	ConfidenceRatings int `json:"confidenceRatings"`
	HomeworkChecked   int `json:"homeworkChecked"`
	LongestStreak     int `json:"longestStreak"`
	ActiveDays        int `json:"activeDays"`
}

// Collect reads Stats from the store. Only catalog topics count towards
// topic completion.
func Collect(s *state.Store, catalog *curriculum.Catalog) Stats {
	var st Stats

	progress := s.Progress()
	st.TopicsTotal = catalog.Len()
	for _, id := range catalog.IDs() {
		if progress[id] {
			st.TopicsCompleted++
		}
	}

	for _, sections := range s.SectionsRead() {
		st.SectionsRead += len(sections)
	}

	answers := s.QuizAnswers()
	for _, correct := range answers {
		st.QuizAnswered++
		if correct {
			st.QuizCorrect++
		}
	}
	if st.QuizAnswered > 0 {
		st.QuizAccuracy = int(math.Round(100 * float64(st.QuizCorrect) / float64(st.QuizAnswered)))
	}
	st.PerfectTopics = perfectTopics(answers, catalog)

	for _, rec := range s.Flashcards().Reviews {
		st.CardsReviewed++
		st.FlashcardReviews += rec.ReviewCount
		if srs.MaturityOf(&rec) == srs.Mature {
			st.MatureCards++
		}
	}

	exams := s.ExamScores()
	st.ExamsTaken = len(exams)
	for _, e := range exams {
		st.BestExamPct = max(st.BestExamPct, e.Percentage)
	}

	st.Bookmarks = len(s.Bookmarks())
	for _, notes := range s.Notes() {
		st.Notes += len(notes)
	}
	for _, ratings := range s.Confidence() {
		st.ConfidenceRatings += len(ratings)
	}
	for _, checked := range s.Homework() {
		if checked {
			st.HomeworkChecked++
		}
	}

	log := s.ActivityLog()
	st.LongestStreak = activity.LongestStreak(log)
	st.ActiveDays = activity.ActiveDays(log)
	return st
}

// perfectTopics counts the topics with at least PerfectTopicMinAnswers
// answered questions, all correct. Each answer counts toward the topic
// TopicForItem resolves it to.
func perfectTopics(answers map[string]bool, catalog *curriculum.Catalog) int {
	type tally struct {
		answered   int
		allCorrect bool
	}
	byTopic := make(map[string]*tally)
	for qid, correct := range answers {
		id, ok := catalog.TopicForItem(qid)
		if !ok {
			continue
		}
		t := byTopic[id]
		if t == nil {
			t = &tally{allCorrect: true}
			byTopic[id] = t
		}
		t.answered++
		t.allCorrect = t.allCorrect && correct
	}

	n := 0
	for _, t := range byTopic {
		if t.answered >= PerfectTopicMinAnswers && t.allCorrect {
			n++
		}
	}
	return n
}
