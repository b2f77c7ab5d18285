// Package srs schedules flashcard reviews with a variant of the SM-2
// spaced-repetition algorithm.
//
// Quality is rated on four levels only (1, 3, 4, 5); there is no level 2.
// Ratings of 3 and above count as a successful recall.
package srs

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Scheduling constants.
const (
	InitialEaseFactor  = 2.5
	MinEaseFactor      = 1.3
	FirstInterval      = 1
	SecondInterval     = 6
	MaxIntervalDays    = 365
	MatureIntervalDays = 21
	HardPenalty        = 0.85
	EasyBonus          = 1.3
)

// ErrInvalidQuality is returned for a quality outside {1, 3, 4, 5}.
var ErrInvalidQuality = errors.New("srs: invalid quality")

// Quality is the learner's self-assessed recall for one review.
type Quality int

const (
	Again Quality = 1 // Failed to recall.
	Hard  Quality = 3 // Recalled with significant effort.
	Good  Quality = 4 // Recalled after some hesitation.
	Easy  Quality = 5 // Recalled effortlessly.
)

// IsValid reports whether q is one of Again, Hard, Good or Easy.
func (q Quality) IsValid() bool {
	switch q {
	case Again, Hard, Good, Easy:
		return true
	}
	return false
}

func (q Quality) String() string {
	switch q {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// Record is the scheduling state of one flashcard.
type Record struct {
	EaseFactor  float64    `json:"easeFactor"`
	Interval    int        `json:"interval"`
	Repetitions int        `json:"repetitions"`
	LastReview  *time.Time `json:"lastReview"`
	NextReview  *time.Time `json:"nextReview"`
	ReviewCount int        `json:"reviewCount"`
	Lapses      int        `json:"lapses"`
}

// NewRecord returns the state of a card that has never been reviewed.
func NewRecord() Record {
	return Record{
		EaseFactor: InitialEaseFactor,
		Interval:   FirstInterval,
	}
}

// ReviewCard applies one review of quality q at time now to existing, which
// may be nil for a card's first review. The input record is not modified.
func ReviewCard(existing *Record, q Quality, now time.Time) (Record, error) {
	if !q.IsValid() {
		return Record{}, fmt.Errorf("%w: %d", ErrInvalidQuality, int(q))
	}

	rec := NewRecord()
	if existing != nil {
		rec = *existing
	}

	diff := float64(5 - q)
	rec.EaseFactor = math.Max(MinEaseFactor, rec.EaseFactor+(0.1-diff*(0.08+diff*0.02)))

	if q >= Hard {
		switch rec.Repetitions {
		case 0:
			rec.Interval = FirstInterval
		case 1:
			rec.Interval = SecondInterval
		default:
			rec.Interval = int(math.Round(float64(rec.Interval) * rec.EaseFactor))
		}
		rec.Repetitions++
	} else {
		rec.Repetitions = 0
		rec.Interval = FirstInterval
		rec.Lapses++
	}

	if q == Hard && rec.Repetitions > 1 {
		rec.Interval = int(math.Round(float64(rec.Interval) * HardPenalty))
	}
	if q == Easy && rec.Repetitions > 0 {
		rec.Interval = int(math.Round(float64(rec.Interval) * EasyBonus))
	}

	rec.Interval = clampInterval(rec.Interval)

	last := now
	next := now.AddDate(0, 0, rec.Interval)
	rec.LastReview = &last
	rec.NextReview = &next
	rec.ReviewCount++

	return rec, nil
}

func clampInterval(days int) int {
	if days < 1 {
		return 1
	}
	if days > MaxIntervalDays {
		return MaxIntervalDays
	}
	return days
}
