package achievement

import (
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/state"
)

// Earned is an achievement together with the time it was first earned.
type Earned struct {
	Definition
	EarnedAt time.Time `json:"earnedAt"`
}

// Status is the current state of one achievement.
type Status struct {
	Definition
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earnedAt,omitempty"`
}

// Evaluator checks the achievement catalog against a store.
type Evaluator struct {
	store   *state.Store
	catalog *curriculum.Catalog
	defs    []Definition
}

// NewEvaluator creates an evaluator over the package Catalog. A nil topic
// catalog means the built-in one.
func NewEvaluator(s *state.Store, topics *curriculum.Catalog) *Evaluator {
	return NewEvaluatorWith(s, topics, Catalog)
}

// NewEvaluatorWith creates an evaluator over a custom definition list.
func NewEvaluatorWith(s *state.Store, topics *curriculum.Catalog, defs []Definition) *Evaluator {
	if topics == nil {
		topics = curriculum.DefaultCatalog()
	}
	return &Evaluator{store: s, catalog: topics, defs: defs}
}

// Stats returns the aggregate the definitions are checked against.
func (e *Evaluator) Stats() Stats {
	return Collect(e.store, e.catalog)
}

// Evaluate checks every definition, records the ones that now hold and were
// not earned before, and returns them in catalog order. Earned achievements
// are never re-evaluated or revoked.
func (e *Evaluator) Evaluate() []Earned {
	st := e.Stats()
	have := e.store.Achievements()
	now := e.store.Now()

	candidates := make(map[string]time.Time)
	for _, d := range e.defs {
		if _, ok := have[d.ID]; ok {
			continue
		}
		if d.Check != nil && d.Check(st) {
			candidates[d.ID] = now
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	added := make(map[string]bool)
	for _, id := range e.store.RecordAchievements(candidates) {
		added[id] = true
	}

	var earned []Earned
	for _, d := range e.defs {
		if added[d.ID] {
			earned = append(earned, Earned{Definition: d, EarnedAt: now})
		}
	}
	if len(earned) > 0 {
		slog.Info("achievements earned", "count", len(earned))
	}
	return earned
}

// Progress returns the status of every definition in catalog order without
// evaluating anything.
func (e *Evaluator) Progress() []Status {
	have := e.store.Achievements()
	out := make([]Status, 0, len(e.defs))
	for _, d := range e.defs {
		st := Status{Definition: d}
		if at, ok := have[d.ID]; ok {
			st.Earned = true
			st.EarnedAt = &at
		}
		out = append(out, st)
	}
	return out
}
