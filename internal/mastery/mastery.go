// Package mastery scores how well a learner knows a topic on a 0–100 scale.
package mastery

import (
	"math"
	"strings"

	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/srs"
	"github.com/p-n-ai/pai-study/internal/state"
)

// Component weights; they sum to 1.
const (
	SectionWeight   = 0.4
	QuizWeight      = 0.3
	FlashcardWeight = 0.2
	TimeWeight      = 0.1
)

// FullTimeSeconds is the time on topic that earns full time credit.
const FullTimeSeconds = 1200

// Flashcard credit per vocabulary card.
const (
	MatureCredit   = 1.0
	LearningCredit = 0.3
)

// Input is everything the score depends on for one topic.
type Input struct {
	SectionsRead  int
	TotalSections int
	QuizCorrect   int
	QuizAnswered  int
	// Vocabulary holds the review record of each vocabulary card; nil for
	// cards never reviewed.
	Vocabulary []*srs.Record
	Seconds    int
}

// Result is a mastery score and its components, each in [0, 1].
type Result struct {
	TopicID      string  `json:"topicId,omitempty"`
	Mastery      int     `json:"mastery"`
	SectionPct   float64 `json:"sectionPct"`
	QuizPct      float64 `json:"quizPct"`
	FlashcardPct float64 `json:"flashcardPct"`
	TimePct      float64 `json:"timePct"`
}

// Compute scores in.
func Compute(in Input) Result {
	var r Result

	if in.TotalSections > 0 {
		r.SectionPct = ratio(float64(in.SectionsRead), float64(in.TotalSections))
	}
	if in.QuizAnswered > 0 {
		r.QuizPct = ratio(float64(in.QuizCorrect), float64(in.QuizAnswered))
	}
	if len(in.Vocabulary) > 0 {
		var credit float64
		for _, rec := range in.Vocabulary {
			credit += cardCredit(rec)
		}
		r.FlashcardPct = ratio(credit, float64(len(in.Vocabulary)))
	}
	r.TimePct = ratio(float64(in.Seconds), FullTimeSeconds)

	score := 100 * (SectionWeight*r.SectionPct +
		QuizWeight*r.QuizPct +
		FlashcardWeight*r.FlashcardPct +
		TimeWeight*r.TimePct)
	r.Mastery = int(math.Round(score))
	r.Mastery = min(max(r.Mastery, 0), 100)
	return r
}

func cardCredit(rec *srs.Record) float64 {
	switch srs.MaturityOf(rec) {
	case srs.Mature:
		return MatureCredit
	case srs.Learning:
		return LearningCredit
	}
	return 0
}

func ratio(n, d float64) float64 {
	if d <= 0 || n <= 0 {
		return 0
	}
	return math.Min(1, n/d)
}

// InputFor gathers the mastery input of topicID from the store. content may
// be nil when the topic's content could not be loaded: the section total
// then comes from the catalog's default table and vocabulary counts as
// empty.
func InputFor(s *state.Store, catalog *curriculum.Catalog, topicID string, content *curriculum.Content) Input {
	in := Input{
		SectionsRead: len(s.SectionsRead()[topicID]),
		Seconds:      s.TopicTime()[topicID],
	}

	if content != nil && len(content.Sections) > 0 {
		in.TotalSections = len(content.Sections)
	} else if catalog != nil {
		in.TotalSections = catalog.DefaultSections(topicID)
	}

	for id, correct := range s.QuizAnswers() {
		if !belongsTo(catalog, topicID, id) {
			continue
		}
		in.QuizAnswered++
		if correct {
			in.QuizCorrect++
		}
	}

	reviews := s.Flashcards().Reviews
	for _, id := range content.VocabularyCardIDs() {
		if rec, ok := reviews[id]; ok {
			in.Vocabulary = append(in.Vocabulary, &rec)
		} else {
			in.Vocabulary = append(in.Vocabulary, nil)
		}
	}
	return in
}

// belongsTo reports whether quiz question qid counts toward topicID. A
// question whose id is also prefixed by a longer catalog topic id belongs to
// that topic instead.
func belongsTo(catalog *curriculum.Catalog, topicID, qid string) bool {
	if !strings.HasPrefix(qid, topicID+"-") {
		return false
	}
	if catalog == nil {
		return true
	}
	owner, ok := catalog.TopicForItem(qid)
	return !ok || owner == topicID
}

// ForTopic computes the mastery of topicID from the store.
func ForTopic(s *state.Store, catalog *curriculum.Catalog, topicID string, content *curriculum.Content) Result {
	r := Compute(InputFor(s, catalog, topicID, content))
	r.TopicID = topicID
	return r
}

// ContentSource supplies topic content; ok is false if it is unavailable.
type ContentSource interface {
	Content(topicID string) (*curriculum.Content, bool)
}

// All computes the mastery of every catalog topic in catalog order, taking
// content from src when available.
func All(s *state.Store, catalog *curriculum.Catalog, src ContentSource) []Result {
	results := make([]Result, 0, catalog.Len())
	for _, id := range catalog.IDs() {
		var content *curriculum.Content
		if src != nil {
			content, _ = src.Content(id)
		}
		results = append(results, ForTopic(s, catalog, id, content))
	}
	return results
}

// Overall averages the mastery of results, rounded; 0 for none.
func Overall(results []Result) int {
	if len(results) == 0 {
		return 0
	}
	sum := 0
	for _, r := range results {
		sum += r.Mastery
	}
	return int(math.Round(float64(sum) / float64(len(results))))
}
