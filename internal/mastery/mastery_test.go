package mastery_test

import (
	"math"
	"testing"
	"time"

	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/mastery"
	"github.com/p-n-ai/pai-study/internal/srs"
	"github.com/p-n-ai/pai-study/internal/state"
	"github.com/p-n-ai/pai-study/internal/storage"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestWeightsSumToOne(t *testing.T) {
	sum := mastery.SectionWeight + mastery.QuizWeight + mastery.FlashcardWeight + mastery.TimeWeight
	if !approx(sum, 1) {
		t.Errorf("weights sum to %v, want 1", sum)
	}
	if mastery.FullTimeSeconds != 1200 {
		t.Errorf("FullTimeSeconds = %d, want 1200", mastery.FullTimeSeconds)
	}
}

func TestCompute(t *testing.T) {
	mature := &srs.Record{Interval: 30, ReviewCount: 6}
	learning := &srs.Record{Interval: 6, ReviewCount: 2}

	tests := []struct {
		name string
		in   mastery.Input
		want mastery.Result
	}{
		{
			name: "nothing done",
			in:   mastery.Input{TotalSections: 6, Vocabulary: []*srs.Record{nil, nil}},
			want: mastery.Result{},
		},
		{
			name: "unknown content",
			in:   mastery.Input{SectionsRead: 3},
			want: mastery.Result{},
		},
		{
			name: "everything complete",
			in: mastery.Input{
				SectionsRead: 6, TotalSections: 6,
				QuizCorrect: 4, QuizAnswered: 4,
				Vocabulary: []*srs.Record{mature},
				Seconds:    5000,
			},
			want: mastery.Result{Mastery: 100, SectionPct: 1, QuizPct: 1, FlashcardPct: 1, TimePct: 1},
		},
		{
			name: "partial",
			in: mastery.Input{
				SectionsRead: 3, TotalSections: 6,
				QuizCorrect: 1, QuizAnswered: 4,
				Vocabulary: []*srs.Record{mature, learning, nil, nil},
				Seconds:    600,
			},
			// 0.4*0.5 + 0.3*0.25 + 0.2*0.325 + 0.1*0.5 = 0.39
			want: mastery.Result{Mastery: 39, SectionPct: 0.5, QuizPct: 0.25, FlashcardPct: 0.325, TimePct: 0.5},
		},
		{
			name: "more sections read than known",
			in:   mastery.Input{SectionsRead: 9, TotalSections: 6},
			want: mastery.Result{Mastery: 40, SectionPct: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mastery.Compute(tt.in)
			if got.Mastery != tt.want.Mastery {
				t.Errorf("Mastery = %d, want %d", got.Mastery, tt.want.Mastery)
			}
			if !approx(got.SectionPct, tt.want.SectionPct) || !approx(got.QuizPct, tt.want.QuizPct) ||
				!approx(got.FlashcardPct, tt.want.FlashcardPct) || !approx(got.TimePct, tt.want.TimePct) {
				t.Errorf("Compute() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompute_AlwaysInRange(t *testing.T) {
	for read := 0; read <= 10; read += 5 {
		for correct := 0; correct <= 3; correct++ {
			for secs := -100; secs <= 3000; secs += 1550 {
				r := mastery.Compute(mastery.Input{
					SectionsRead: read, TotalSections: 5,
					QuizCorrect: correct, QuizAnswered: 3,
					Seconds: secs,
				})
				if r.Mastery < 0 || r.Mastery > 100 {
					t.Fatalf("Mastery = %d out of range", r.Mastery)
				}
			}
		}
	}
}

func newStore(t *testing.T) *state.Store {
	t.Helper()
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	return state.New(storage.NewMemoryBackend(), state.WithClock(func() time.Time { return now }))
}

func TestForTopic_FreshStoreIsZero(t *testing.T) {
	s := newStore(t)
	for _, r := range mastery.All(s, curriculum.DefaultCatalog(), nil) {
		if r.Mastery != 0 {
			t.Errorf("%s mastery = %d, want 0", r.TopicID, r.Mastery)
		}
	}
}

func TestForTopic_ReadsStore(t *testing.T) {
	s := newStore(t)
	cat := curriculum.DefaultCatalog()

	content := &curriculum.Content{
		TopicID:    "consensus",
		Sections:   []curriculum.Section{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Vocabulary: []curriculum.Term{{Term: "Quorum"}, {Term: "Term"}},
	}

	s.MarkSectionRead("consensus", "a")
	s.MarkSectionRead("consensus", "b")
	s.MarkSectionRead("consensus-extra", "z") // different topic id
	s.RecordQuizAnswer("consensus-quiz-0", true)
	s.RecordQuizAnswer("consensus-quiz-1", false)
	s.RecordQuizAnswer("consensusx-quiz-0", true) // prefix must include the separator
	s.AddTopicTime("consensus", 1200)
	if _, err := s.SaveFlashcardReview("consensus-vocab-0", srs.Good); err != nil {
		t.Fatal(err)
	}

	r := mastery.ForTopic(s, cat, "consensus", content)

	// 0.4*0.5 + 0.3*0.5 + 0.2*0.15 + 0.1*1 = 0.48
	if r.Mastery != 48 {
		t.Errorf("Mastery = %d, want 48 (%+v)", r.Mastery, r)
	}
	if !approx(r.FlashcardPct, 0.15) {
		t.Errorf("FlashcardPct = %v, want 0.15", r.FlashcardPct)
	}
	if r.TopicID != "consensus" {
		t.Errorf("TopicID = %q", r.TopicID)
	}
}

func TestForTopic_NestedTopicIDs(t *testing.T) {
	s := newStore(t)
	cat := curriculum.NewCatalog([]curriculum.Topic{
		{ID: "storage", Sections: 4},
		{ID: "storage-engines", Sections: 4},
	})

	s.RecordQuizAnswer("storage-q1", true)
	s.RecordQuizAnswer("storage-engines-q1", false)
	s.RecordQuizAnswer("storage-engines-q2", false)

	tests := []struct {
		topic             string
		answered, correct int
	}{
		{"storage", 1, 1},
		{"storage-engines", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			in := mastery.InputFor(s, cat, tt.topic, nil)
			if in.QuizAnswered != tt.answered || in.QuizCorrect != tt.correct {
				t.Errorf("InputFor(%s) quiz = %d/%d, want %d/%d",
					tt.topic, in.QuizCorrect, in.QuizAnswered, tt.correct, tt.answered)
			}
		})
	}

	if in := mastery.InputFor(s, nil, "storage", nil); in.QuizAnswered != 3 {
		t.Errorf("InputFor() without catalog answered = %d, want plain prefix match 3", in.QuizAnswered)
	}
}

func TestForTopic_UnknownContentUsesDefaultTable(t *testing.T) {
	s := newStore(t)
	cat := curriculum.DefaultCatalog()

	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		s.MarkSectionRead("storage", id)
	}

	r := mastery.ForTopic(s, cat, "storage", nil)
	if !approx(r.SectionPct, 0.5) {
		t.Errorf("SectionPct = %v, want 0.5 (4 of default 8)", r.SectionPct)
	}
	if r.FlashcardPct != 0 {
		t.Errorf("FlashcardPct = %v, want 0 without content", r.FlashcardPct)
	}

	unknown := mastery.ForTopic(s, cat, "not-in-catalog", nil)
	if unknown.Mastery != 0 {
		t.Errorf("unknown topic mastery = %d, want 0", unknown.Mastery)
	}
}

func TestOverall(t *testing.T) {
	if got := mastery.Overall(nil); got != 0 {
		t.Errorf("Overall(nil) = %d, want 0", got)
	}
	got := mastery.Overall([]mastery.Result{{Mastery: 50}, {Mastery: 25}})
	if got != 38 {
		t.Errorf("Overall() = %d, want 38", got)
	}
}
