// Package activity keeps the date-bucketed study log and the recent-activity
// feed, and derives streaks from the log.
package activity

import (
	"sort"
	"time"
)

// DateLayout is the format of study log keys.
const DateLayout = "2006-01-02"

// FeedLimit caps the activity feed; older entries are dropped.
const FeedLimit = 50

// Log maps a calendar date (DateLayout) to the number of tracked actions
// recorded that day.
type Log map[string]int

// Entry is one item of the recent-activity feed.
type Entry struct {
	Kind      string    `json:"actionKind"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Action kinds recorded by the store.
const (
	KindTopicComplete = "topic_complete"
	KindQuizAnswer    = "quiz_answer"
	KindFlashcard     = "flashcard_review"
	KindHomework      = "homework_check"
	KindConfidence    = "confidence_rating"
	KindBookmark      = "bookmark_added"
	KindNote          = "note_saved"
	KindSectionRead   = "section_read"
	KindExamCompleted = "exam_completed"
)

// DateKey returns the log key for t in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// Increment returns a copy of log with date's counter raised by one.
func Increment(log Log, date string) Log {
	out := make(Log, len(log)+1)
	for k, v := range log {
		out[k] = v
	}
	out[date]++
	return out
}

// Prepend returns a new feed with e first, truncated to limit entries.
func Prepend(feed []Entry, e Entry, limit int) []Entry {
	n := len(feed) + 1
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]Entry, 0, n)
	out = append(out, e)
	for _, old := range feed {
		if len(out) == n {
			break
		}
		out = append(out, old)
	}
	return out
}

// activeDates returns the parseable dates with a non-zero count, ascending.
func activeDates(log Log) []time.Time {
	dates := make([]time.Time, 0, len(log))
	for k, v := range log {
		if v <= 0 {
			continue
		}
		d, err := time.Parse(DateLayout, k)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// daysBetween counts calendar days from a to b. Both are UTC midnights.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// LongestStreak returns the longest run of consecutive calendar days with at
// least one recorded action. An empty log yields 0.
func LongestStreak(log Log) int {
	dates := activeDates(log)
	if len(dates) == 0 {
		return 0
	}

	longest, current := 1, 1
	for i := 1; i < len(dates); i++ {
		if daysBetween(dates[i-1], dates[i]) == 1 {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 1
		}
	}
	return longest
}

// CurrentStreak returns the run of consecutive active days ending today or
// yesterday (relative to now); a streak is not broken until a full day is
// missed.
func CurrentStreak(log Log, now time.Time) int {
	today, _ := time.Parse(DateLayout, DateKey(now))
	start := today
	if log[DateKey(now)] <= 0 {
		start = today.AddDate(0, 0, -1)
		if log[start.Format(DateLayout)] <= 0 {
			return 0
		}
	}

	streak := 0
	for d := start; log[d.Format(DateLayout)] > 0; d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// ActiveDays counts dates with at least one action.
func ActiveDays(log Log) int {
	n := 0
	for _, v := range log {
		if v > 0 {
			n++
		}
	}
	return n
}

// Total sums every counter in log.
func Total(log Log) int {
	n := 0
	for _, v := range log {
		if v > 0 {
			n += v
		}
	}
	return n
}

// Day is one cell of a LastNDays series.
type Day struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// LastNDays returns the n days ending at now, oldest first, with zero counts
// filled in.
func LastNDays(log Log, now time.Time, n int) []Day {
	if n <= 0 {
		return nil
	}
	days := make([]Day, n)
	for i := 0; i < n; i++ {
		d := DateKey(now.AddDate(0, 0, i-n+1))
		days[i] = Day{Date: d, Count: log[d]}
	}
	return days
}
