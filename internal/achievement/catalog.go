// Package achievement evaluates the fixed catalog of study milestones
// against the store and records the ones newly earned.
package achievement

// Category groups related achievements for display.
type Category string

const (
	CategoryOnboarding Category = "onboarding"
	CategoryTopics     Category = "topics"
	CategoryQuiz       Category = "quiz"
	CategoryFlashcards Category = "flashcards"
	CategoryExams      Category = "exams"
	CategoryHabits     Category = "habits"
	CategoryNotes      Category = "notes"
)

// Definition is one achievement. Check must be a pure function of Stats.
type Definition struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Icon        string              `json:"icon"`
	Category    Category            `json:"category"`
	Check       func(st Stats) bool `json:"-"`
}

// Catalog is the ordered list of every achievement.
var Catalog = []Definition{
	{
		ID: "first-steps", Title: "First Steps", Icon: "👣", Category: CategoryOnboarding,
		Description: "Read your first section.",
		Check:       func(st Stats) bool { return st.SectionsRead >= 1 },
	},
	{
		ID: "first-quiz", Title: "Test the Waters", Icon: "❓", Category: CategoryOnboarding,
		Description: "Answer your first quiz question.",
		Check:       func(st Stats) bool { return st.QuizAnswered >= 1 },
	},
	{
		ID: "first-flashcard", Title: "Flip It", Icon: "🃏", Category: CategoryOnboarding,
		Description: "Review your first flashcard.",
		Check:       func(st Stats) bool { return st.FlashcardReviews >= 1 },
	},
	{
		ID: "topic-1", Title: "Topic Conquered", Icon: "✅", Category: CategoryTopics,
		Description: "Complete a topic.",
		Check:       func(st Stats) bool { return st.TopicsCompleted >= 1 },
	},
	{
		ID: "topic-half", Title: "Halfway There", Icon: "🌓", Category: CategoryTopics,
		Description: "Complete half of the topics.",
		Check: func(st Stats) bool {
			return st.TopicsTotal > 0 && 2*st.TopicsCompleted >= st.TopicsTotal
		},
	},
	{
		ID: "topic-all", Title: "Course Complete", Icon: "🎓", Category: CategoryTopics,
		Description: "Complete every topic.",
		Check: func(st Stats) bool {
			return st.TopicsTotal > 0 && st.TopicsCompleted >= st.TopicsTotal
		},
	},
	{
		ID: "quiz-10", Title: "Quick Study", Icon: "💡", Category: CategoryQuiz,
		Description: "Answer 10 quiz questions correctly.",
		Check:       func(st Stats) bool { return st.QuizCorrect >= 10 },
	},
	{
		ID: "quiz-sharpshooter", Title: "Sharpshooter", Icon: "🎯", Category: CategoryQuiz,
		Description: "Keep 90% accuracy over at least 20 questions.",
		Check:       func(st Stats) bool { return st.QuizAnswered >= 20 && st.QuizAccuracy >= 90 },
	},
	{
		ID: "quiz-perfect-topic", Title: "Flawless", Icon: "💯", Category: CategoryQuiz,
		Description: "Answer every question of a topic correctly.",
		Check:       func(st Stats) bool { return st.PerfectTopics >= 1 },
	},
	{
		ID: "cards-50", Title: "Card Shark", Icon: "🗂️", Category: CategoryFlashcards,
		Description: "Complete 50 flashcard reviews.",
		Check:       func(st Stats) bool { return st.FlashcardReviews >= 50 },
	},
	{
		ID: "cards-250", Title: "Memory Palace", Icon: "🏛️", Category: CategoryFlashcards,
		Description: "Complete 250 flashcard reviews.",
		Check:       func(st Stats) bool { return st.FlashcardReviews >= 250 },
	},
	{
		ID: "mature-10", Title: "Long-Term Memory", Icon: "🌳", Category: CategoryFlashcards,
		Description: "Grow 10 flashcards to maturity.",
		Check:       func(st Stats) bool { return st.MatureCards >= 10 },
	},
	{
		ID: "exam-first", Title: "Exam Ready", Icon: "📝", Category: CategoryExams,
		Description: "Finish a practice exam.",
		Check:       func(st Stats) bool { return st.ExamsTaken >= 1 },
	},
	{
		ID: "exam-80", Title: "Honours", Icon: "🏅", Category: CategoryExams,
		Description: "Score 80% or more on a practice exam.",
		Check:       func(st Stats) bool { return st.BestExamPct >= 80 },
	},
	{
		ID: "exam-perfect", Title: "Top Marks", Icon: "🏆", Category: CategoryExams,
		Description: "Score 100% on a practice exam.",
		Check:       func(st Stats) bool { return st.BestExamPct >= 100 },
	},
	{
		ID: "streak-3", Title: "On a Roll", Icon: "🔥", Category: CategoryHabits,
		Description: "Study three days in a row.",
		Check:       func(st Stats) bool { return st.LongestStreak >= 3 },
	},
	{
		ID: "streak-7", Title: "Week Warrior", Icon: "📅", Category: CategoryHabits,
		Description: "Study seven days in a row.",
		Check:       func(st Stats) bool { return st.LongestStreak >= 7 },
	},
	{
		ID: "streak-30", Title: "Unstoppable", Icon: "🚀", Category: CategoryHabits,
		Description: "Study thirty days in a row.",
		Check:       func(st Stats) bool { return st.LongestStreak >= 30 },
	},
	{
		ID: "homework-10", Title: "Diligent", Icon: "📚", Category: CategoryHabits,
		Description: "Tick off 10 homework items.",
		Check:       func(st Stats) bool { return st.HomeworkChecked >= 10 },
	},
	{
		ID: "notes-5", Title: "Note Taker", Icon: "🗒️", Category: CategoryNotes,
		Description: "Write 5 notes.",
		Check:       func(st Stats) bool { return st.Notes >= 5 },
	},
	{
		ID: "bookmarks-5", Title: "Collector", Icon: "🔖", Category: CategoryNotes,
		Description: "Bookmark 5 sections.",
		Check:       func(st Stats) bool { return st.Bookmarks >= 5 },
	},
	{
		ID: "confidence-10", Title: "Self-Aware", Icon: "🪞", Category: CategoryNotes,
		Description: "Rate your confidence on 10 objectives.",
		Check:       func(st Stats) bool { return st.ConfidenceRatings >= 10 },
	},
}
