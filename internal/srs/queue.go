package srs

import (
	"sort"
	"time"
)

// Maturity classifies how well a card has been learned.
type Maturity string

const (
	New      Maturity = "new"
	Learning Maturity = "learning"
	Mature   Maturity = "mature"
)

// MaturityOf classifies rec. A nil or never-reviewed record is New.
func MaturityOf(rec *Record) Maturity {
	if rec == nil || rec.ReviewCount == 0 {
		return New
	}
	if rec.Interval >= MatureIntervalDays {
		return Mature
	}
	return Learning
}

// IsDue reports whether a card should be reviewed at now: it was never
// reviewed, or its next review time has passed.
func IsDue(rec *Record, now time.Time) bool {
	if rec == nil || rec.NextReview == nil {
		return true
	}
	return !rec.NextReview.After(now)
}

// DueCards returns the ids among cardIDs that are due at now. Overdue cards
// come first, oldest due date first; never-reviewed cards follow in input
// order.
func DueCards(cardIDs []string, reviews map[string]Record, now time.Time) []string {
	var overdue, unseen []string
	for _, id := range cardIDs {
		rec, ok := reviews[id]
		if !ok || rec.NextReview == nil {
			unseen = append(unseen, id)
			continue
		}
		if IsDue(&rec, now) {
			overdue = append(overdue, id)
		}
	}

	sort.SliceStable(overdue, func(i, j int) bool {
		return reviews[overdue[i]].NextReview.Before(*reviews[overdue[j]].NextReview)
	})
	return append(overdue, unseen...)
}

// Stats summarises a set of review records.
type Stats struct {
	Cards           int     `json:"cards"`
	Reviews         int     `json:"reviews"`
	Due             int     `json:"due"`
	Learning        int     `json:"learning"`
	Mature          int     `json:"mature"`
	Lapses          int     `json:"lapses"`
	AverageEase     float64 `json:"averageEase"`
	AverageInterval float64 `json:"averageInterval"`
}

// Summarize aggregates reviews as of now.
func Summarize(reviews map[string]Record, now time.Time) Stats {
	var st Stats
	var easeSum float64
	var intervalSum int
	for _, rec := range reviews {
		st.Cards++
		st.Reviews += rec.ReviewCount
		st.Lapses += rec.Lapses
		easeSum += rec.EaseFactor
		intervalSum += rec.Interval
		if IsDue(&rec, now) {
			st.Due++
		}
		switch MaturityOf(&rec) {
		case Learning:
			st.Learning++
		case Mature:
			st.Mature++
		}
	}
	if st.Cards > 0 {
		st.AverageEase = easeSum / float64(st.Cards)
		st.AverageInterval = float64(intervalSum) / float64(st.Cards)
	}
	return st
}
