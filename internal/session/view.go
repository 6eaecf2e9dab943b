package session

import (
	"github.com/stemsi/exstem-candidate/internal/model"
)

// StateView is the snapshot the kiosk UI renders on every poll.
type StateView struct {
	Phase         Phase                   `json:"phase"`
	ExamType      model.ExamType          `json:"exam_type"`
	CurrentIndex  int                     `json:"current_index"`
	Total         int                     `json:"total"`
	Remaining     int                     `json:"remaining_seconds"`
	Clock         string                  `json:"clock"`
	Statuses      []Status                `json:"statuses"`
	Summary       model.SubmissionSummary `json:"summary"`
	Warnings      int                     `json:"background_warnings"`
	LastError     string                  `json:"last_error,omitempty"`
	LogoURL       string                  `json:"logo_url,omitempty"`
	Proctored     bool                    `json:"proctored"`
	ActivityWatch bool                    `json:"suspicious_activity_detection"`
}

// OptionView is an option rendered in one language.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is a question rendered in one language, with the
// candidate's current selection.
type QuestionView struct {
	Index      int          `json:"index"`
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Options    []OptionView `json:"options"`
	Marks      float64      `json:"marks"`
	Difficulty string       `json:"difficulty_level,omitempty"`
	Language   string       `json:"language"`
	RTL        bool         `json:"rtl"`
	Selected   string       `json:"selected,omitempty"`
	Status     Status       `json:"status"`
}

// State returns the current session snapshot.
func (s *Session) State() StateView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := StateView{
		Phase:         s.phase,
		ExamType:      s.params.ExamType,
		Remaining:     s.remaining,
		Clock:         FormatClock(s.remaining),
		Warnings:      s.warnings,
		LogoURL:       s.params.LogoURL,
		Proctored:     s.params.PhotosRequired || s.params.VideoRequired,
		ActivityWatch: s.params.SuspiciousActivityDetection,
		Statuses:      []Status{},
	}
	if s.lastErr != nil {
		v.LastError = s.lastErr.Error()
	}
	if s.ledger != nil {
		v.CurrentIndex = s.ledger.Current()
		v.Total = s.ledger.Len()
		v.Statuses = s.ledger.Statuses()
		v.Summary = s.ledger.Summary()
	}
	return v
}

// Question renders the question at index in lang. Unknown languages fall
// back to the base text.
func (s *Session) Question(index int, lang string) (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger == nil {
		return QuestionView{}, ErrNotRunning
	}
	q, err := s.ledger.Question(index)
	if err != nil {
		return QuestionView{}, err
	}
	if lang == "" {
		lang = model.BaseLanguage
	}

	entry, _ := s.ledger.Entry(q.ID)
	v := QuestionView{
		Index:      index,
		ID:         q.ID,
		Title:      q.Text(lang),
		Options:    make([]OptionView, 0, len(q.Options)),
		Marks:      q.Marks,
		Difficulty: q.DifficultyLevel,
		Language:   lang,
		RTL:        model.IsRTL(lang),
		Selected:   entry.AnswerID,
		Status:     entry.Status,
	}
	for _, o := range q.Options {
		v.Options = append(v.Options, OptionView{ID: o.ID, Text: o.Text(lang)})
	}
	return v, nil
}

// Languages lists the languages the loaded exam can be shown in.
func (s *Session) Languages() []model.Language {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger == nil {
		return []model.Language{{Code: model.BaseLanguage, Name: "English"}}
	}
	return model.AvailableLanguages(s.ledger.Questions())
}
