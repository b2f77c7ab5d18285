// Package report renders a learner's progress as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/p-n-ai/pai-study/internal/achievement"
	"github.com/p-n-ai/pai-study/internal/activity"
	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/mastery"
	"github.com/p-n-ai/pai-study/internal/state"
)

// Sheet names, in workbook order.
const (
	SheetMastery      = "Mastery"
	SheetActivity     = "Activity"
	SheetExams        = "Exams"
	SheetAchievements = "Achievements"
)

// ActivityDays is how many trailing days the activity sheet covers.
const ActivityDays = 30

// ContentType is the MIME type of the rendered workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Builder renders workbooks for one catalog. It is safe for concurrent use.
type Builder struct {
	catalog *curriculum.Catalog
	content mastery.ContentSource
	lang    language.Tag
}

// render holds the per-workbook text formatters; a cases.Caser must not be
// shared between goroutines.
type render struct {
	*Builder
	title   cases.Caser
	printer *message.Printer
}

// NewBuilder creates a Builder. content may be nil.
func NewBuilder(catalog *curriculum.Catalog, content mastery.ContentSource) *Builder {
	if catalog == nil {
		catalog = curriculum.DefaultCatalog()
	}
	return &Builder{
		catalog: catalog,
		content: content,
		lang:    language.English,
	}
}

// Build renders the store's state into a new workbook. The caller must
// Close it.
func (b *Builder) Build(s *state.Store) (*excelize.File, error) {
	r := &render{
		Builder: b,
		title:   cases.Title(b.lang),
		printer: message.NewPrinter(b.lang),
	}
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	sheets := []struct {
		name  string
		write func(*sheet, *state.Store) error
	}{
		{SheetMastery, r.writeMastery},
		{SheetActivity, r.writeActivity},
		{SheetExams, r.writeExams},
		{SheetAchievements, r.writeAchievements},
	}
	for i, sh := range sheets {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), sh.name)
		} else {
			_, err = f.NewSheet(sh.name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("creating sheet %s: %w", sh.name, err)
		}
		w := &sheet{f: f, name: sh.name, header: header}
		if err := sh.write(w, s); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing sheet %s: %w", sh.name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write renders the workbook straight to w.
func (b *Builder) Write(w io.Writer, s *state.Store) error {
	f, err := b.Build(s)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func (r *render) writeMastery(w *sheet, s *state.Store) error {
	if err := w.headerRow("Topic", "Title", "Mastery %", "Sections %", "Quiz %", "Flashcards %", "Time %", "Complete"); err != nil {
		return err
	}
	results := mastery.All(s, r.catalog, r.content)
	for _, res := range results {
		t, _ := r.catalog.Topic(res.TopicID)
		if err := w.row(res.TopicID, t.Title, res.Mastery,
			pct(res.SectionPct), pct(res.QuizPct), pct(res.FlashcardPct), pct(res.TimePct),
			yesNo(s.IsTopicComplete(res.TopicID))); err != nil {
			return err
		}
	}
	w.next++
	return w.row("Overall", "", mastery.Overall(results))
}

func (r *render) writeActivity(w *sheet, s *state.Store) error {
	log := s.ActivityLog()
	now := s.Now()

	summary := [][2]any{
		{"Current streak (days)", activity.CurrentStreak(log, now)},
		{"Longest streak (days)", activity.LongestStreak(log)},
		{"Active days", activity.ActiveDays(log)},
		{"Total actions", r.printer.Sprintf("%d", activity.Total(log))},
	}
	for _, kv := range summary {
		if err := w.row(kv[0], kv[1]); err != nil {
			return err
		}
	}

	w.next++
	if err := w.headerRow("Date", "Actions"); err != nil {
		return err
	}
	for _, d := range activity.LastNDays(log, now, ActivityDays) {
		if err := w.row(d.Date, d.Count); err != nil {
			return err
		}
	}

	w.next++
	if err := w.headerRow("Time", "Action", "Detail"); err != nil {
		return err
	}
	for _, e := range s.ActivityFeed() {
		if err := w.row(e.Timestamp.Format(time.DateTime), r.actionLabel(e.Kind), e.Detail); err != nil {
			return err
		}
	}
	return nil
}

func (r *render) writeExams(w *sheet, s *state.Store) error {
	if err := w.headerRow("Date", "Score", "Total", "Percent", "Duration", "Topics"); err != nil {
		return err
	}
	for _, e := range s.ExamScores() {
		dur := (time.Duration(e.Elapsed) * time.Second).String()
		if err := w.row(e.Date.Format(time.DateOnly), e.Score, e.Total, e.Percentage, dur, strings.Join(e.Topics, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func (r *render) writeAchievements(w *sheet, s *state.Store) error {
	if err := w.headerRow("Achievement", "Category", "Description", "Earned", "Earned At"); err != nil {
		return err
	}
	progress := achievement.NewEvaluator(s, r.catalog).Progress()
	for _, st := range progress {
		at := ""
		if st.EarnedAt != nil {
			at = st.EarnedAt.Format(time.DateTime)
		}
		if err := w.row(st.Title, r.title.String(string(st.Category)), st.Description, yesNo(st.Earned), at); err != nil {
			return err
		}
	}
	return nil
}

// actionLabel turns an activity kind such as "quiz_answer" into "Quiz Answer".
func (r *render) actionLabel(kind string) string {
	return r.title.String(strings.ReplaceAll(kind, "_", " "))
}

// sheet appends rows to one worksheet.
type sheet struct {
	f      *excelize.File
	name   string
	header int
	next   int
}

func (w *sheet) row(values ...any) error {
	w.next++
	cell, err := excelize.CoordinatesToCellName(1, w.next)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(w.name, cell, &values)
}

func (w *sheet) headerRow(titles ...string) error {
	values := make([]any, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	if err := w.row(values...); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, w.next)
	last, _ := excelize.CoordinatesToCellName(len(titles), w.next)
	return w.f.SetCellStyle(w.name, first, last, w.header)
}

func pct(v float64) int {
	return int(v*100 + 0.5)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
