package state

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/p-n-ai/pai-study/internal/activity"
	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/srs"
)

// Key names a state slot.
type Key string

// Wildcard subscribes to every slot.
const Wildcard Key = "*"

// Persisted slots.
const (
	KeyTheme        Key = "theme"
	KeyProgress     Key = "progress"
	KeyQuiz         Key = "quiz"
	KeyFlashcards   Key = "flashcards"
	KeyHomework     Key = "homework"
	KeyActivityLog  Key = "activityLog"
	KeyActivityFeed Key = "activityFeed"
	KeyExamScores   Key = "examScores"
	KeyBookmarks    Key = "bookmarks"
	KeySectionsRead Key = "sectionsRead"
	KeyNotes        Key = "notes"
	KeyConfidence   Key = "confidence"
	KeyAchievements Key = "achievements"
	KeyTopicTime    Key = "topicTime"
)

// In-memory slots.
const (
	KeyRoute        Key = "route"
	KeyTopicContent Key = "topicContent"
	KeySidebarOpen  Key = "sidebarOpen"
)

type slot struct {
	key        Key
	storageKey string // empty for in-memory slots
	zero       func() any
	decode     func(text string) (any, error)
	encode     func(v any) (string, error)
	accepts    func(v any) bool
	clone      func(v any) any // nil for immutable values
}

func (sl slot) persisted() bool {
	return sl.storageKey != ""
}

// copy returns a value of the slot that shares no maps or slices with v.
func (sl slot) copy(v any) any {
	if sl.clone == nil || v == nil {
		return v
	}
	return sl.clone(v)
}

// withClone sets the deep-copy function of a slot holding a T.
func withClone[T any](sl slot, fn func(T) T) slot {
	sl.clone = func(v any) any {
		t, ok := v.(T)
		if !ok {
			return v
		}
		return fn(t)
	}
	return sl
}

// equal compares two values of the slot. Persisted values are compared by
// their encoding so that timestamps round-tripped through storage match.
func (sl slot) equal(a, b any) bool {
	if sl.persisted() {
		ea, errA := sl.encode(a)
		eb, errB := sl.encode(b)
		return errA == nil && errB == nil && ea == eb
	}
	return reflect.DeepEqual(a, b)
}

// jsonSlot describes a slot holding a T serialized as JSON. normalize, if
// set, repairs a decoded value (nil maps, out-of-range fields).
func jsonSlot[T any](key Key, storageKey string, def func() T, normalize func(T) T) slot {
	return slot{
		key:        key,
		storageKey: storageKey,
		zero:       func() any { return def() },
		decode: func(text string) (any, error) {
			var v T
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				return nil, err
			}
			if normalize != nil {
				v = normalize(v)
			}
			return v, nil
		},
		encode: func(v any) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
		accepts: func(v any) bool {
			_, ok := v.(T)
			return ok
		},
	}
}

func memorySlot[T any](key Key, def func() T) slot {
	return slot{
		key:  key,
		zero: func() any { return def() },
		accepts: func(v any) bool {
			_, ok := v.(T)
			return ok
		},
	}
}

// themeSlot stores the theme as bare text rather than JSON.
func themeSlot() slot {
	return slot{
		key:        KeyTheme,
		storageKey: "study-theme",
		zero:       func() any { return ThemeLight },
		decode: func(text string) (any, error) {
			text = strings.Trim(strings.TrimSpace(text), `"`)
			if !IsTheme(text) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidTheme, text)
			}
			return text, nil
		},
		encode: func(v any) (string, error) {
			return v.(string), nil
		},
		accepts: func(v any) bool {
			t, ok := v.(string)
			return ok && IsTheme(t)
		},
	}
}

// IsTheme reports whether t is a supported theme.
func IsTheme(t string) bool {
	return t == ThemeLight || t == ThemeDark
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}

func normalizeFlashcards(f Flashcards) Flashcards {
	if f.Cards == nil {
		f.Cards = []Card{}
	}
	reviews := make(map[string]srs.Record, len(f.Reviews))
	for id, rec := range f.Reviews {
		if rec.EaseFactor < srs.MinEaseFactor {
			rec.EaseFactor = srs.MinEaseFactor
		}
		rec.Interval = min(max(rec.Interval, 1), srs.MaxIntervalDays)
		rec.Repetitions = max(rec.Repetitions, 0)
		rec.ReviewCount = max(rec.ReviewCount, 0)
		rec.Lapses = max(rec.Lapses, 0)
		reviews[id] = rec
	}
	f.Reviews = reviews
	return f
}

func normalizeExamScores(scores []ExamScore) []ExamScore {
	if scores == nil {
		return []ExamScore{}
	}
	if len(scores) > ExamHistoryLimit {
		scores = scores[len(scores)-ExamHistoryLimit:]
	}
	return scores
}

func normalizeFeed(feed []activity.Entry) []activity.Entry {
	if feed == nil {
		return []activity.Entry{}
	}
	if len(feed) > activity.FeedLimit {
		feed = feed[:activity.FeedLimit]
	}
	return feed
}

func emptyBools() map[string]bool { return map[string]bool{} }

// slotList is the registry of every slot, persisted slots first, in the
// order they are hydrated and exported.
var slotList = []slot{
	themeSlot(),
	withClone(jsonSlot(KeyProgress, "study-progress", emptyBools, nonNilMap[string, bool]), cloneMap[string, bool]),
	withClone(jsonSlot(KeyQuiz, "study-quiz", emptyBools, nonNilMap[string, bool]), cloneMap[string, bool]),
	withClone(jsonSlot(KeyFlashcards, "study-flashcards",
		func() Flashcards { return Flashcards{Cards: []Card{}, Reviews: map[string]srs.Record{}} },
		normalizeFlashcards), cloneFlashcards),
	withClone(jsonSlot(KeyHomework, "study-homework", emptyBools, nonNilMap[string, bool]), cloneMap[string, bool]),
	withClone(jsonSlot(KeyActivityLog, "study-activity-log",
		func() activity.Log { return activity.Log{} },
		func(l activity.Log) activity.Log { return nonNilMap(l) }),
		func(l activity.Log) activity.Log { return cloneMap(l) }),
	withClone(jsonSlot(KeyActivityFeed, "study-activity-feed",
		func() []activity.Entry { return []activity.Entry{} },
		normalizeFeed), cloneSlice[activity.Entry]),
	withClone(jsonSlot(KeyExamScores, "study-exam-scores",
		func() []ExamScore { return []ExamScore{} },
		normalizeExamScores), cloneExamScores),
	withClone(jsonSlot(KeyBookmarks, "study-bookmarks",
		func() []Bookmark { return []Bookmark{} },
		func(b []Bookmark) []Bookmark {
			if b == nil {
				return []Bookmark{}
			}
			return b
		}), cloneSlice[Bookmark]),
	withClone(jsonSlot(KeySectionsRead, "study-sections-read",
		func() map[string][]string { return map[string][]string{} },
		nonNilMap[string, []string]),
		func(m map[string][]string) map[string][]string { return cloneNested(m, cloneSlice[string]) }),
	withClone(jsonSlot(KeyNotes, "study-notes",
		func() map[string]map[string]Note { return map[string]map[string]Note{} },
		nonNilMap[string, map[string]Note]),
		func(m map[string]map[string]Note) map[string]map[string]Note {
			return cloneNested(m, cloneMap[string, Note])
		}),
	withClone(jsonSlot(KeyConfidence, "study-confidence",
		func() map[string]map[int]ConfidenceRating { return map[string]map[int]ConfidenceRating{} },
		nonNilMap[string, map[int]ConfidenceRating]),
		func(m map[string]map[int]ConfidenceRating) map[string]map[int]ConfidenceRating {
			return cloneNested(m, cloneMap[int, ConfidenceRating])
		}),
	withClone(jsonSlot(KeyAchievements, "study-achievements",
		func() map[string]time.Time { return map[string]time.Time{} },
		nonNilMap[string, time.Time]), cloneMap[string, time.Time]),
	withClone(jsonSlot(KeyTopicTime, "study-topic-time",
		func() map[string]int { return map[string]int{} },
		nonNilMap[string, int]), cloneMap[string, int]),

	memorySlot(KeyRoute, func() string { return "" }),
	withClone(memorySlot(KeyTopicContent, func() map[string]*curriculum.Content { return map[string]*curriculum.Content{} }),
		cloneMap[string, *curriculum.Content]),
	memorySlot(KeySidebarOpen, func() bool { return false }),
}

var slotsByKey = func() map[Key]slot {
	m := make(map[Key]slot, len(slotList))
	for _, sl := range slotList {
		m[sl.key] = sl
	}
	return m
}()

var slotsByStorageKey = func() map[string]slot {
	m := make(map[string]slot)
	for _, sl := range slotList {
		if sl.persisted() {
			m[sl.storageKey] = sl
		}
	}
	return m
}()

// Keys returns every slot key in registry order.
func Keys() []Key {
	keys := make([]Key, len(slotList))
	for i, sl := range slotList {
		keys[i] = sl.key
	}
	return keys
}

// StorageKeys returns the durable key of every persisted slot.
func StorageKeys() []string {
	var keys []string
	for _, sl := range slotList {
		if sl.persisted() {
			keys = append(keys, sl.storageKey)
		}
	}
	return keys
}

// StorageKey returns the durable key of a slot, or "" for in-memory slots.
func StorageKey(k Key) string {
	return slotsByKey[k].storageKey
}

// ParseStored decodes the durable text of storageKey with that slot's
// decoder. It reports ErrUnknownKey for keys that belong to no slot.
func ParseStored(storageKey, text string) (any, error) {
	sl, ok := slotsByStorageKey[storageKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, storageKey)
	}
	v, err := sl.decode(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", storageKey, err)
	}
	return v, nil
}
