package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExamType enumerates the two kinds of assessment a candidate can sit.
type ExamType string

const (
	ExamTypeTheory    ExamType = "theory"
	ExamTypePractical ExamType = "practical"
)

// ParseExamType validates a raw exam type string.
func ParseExamType(raw string) (ExamType, error) {
	switch t := ExamType(strings.ToLower(strings.TrimSpace(raw))); t {
	case ExamTypeTheory, ExamTypePractical:
		return t, nil
	default:
		return "", fmt.Errorf("unknown exam type %q", raw)
	}
}

// FormField is the value sent in the multipart testType field.
func (t ExamType) FormField() string {
	return strings.ToUpper(string(t))
}

// ExamContent is one element of the exam-content response array.
type ExamContent struct {
	ID        string     `json:"_id"`
	Questions []Question `json:"questions"`
}

// Question is a single exam question as served by the exam-content API.
// Title and option text are HTML fragments rendered by the UI.
type Question struct {
	ID              string       `json:"_id"`
	Title           string       `json:"title"`
	Options         []Option     `json:"options"`
	Marks           float64      `json:"marks"`
	DifficultyLevel string       `json:"difficultyLevel"`
	Translations    Translations `json:"translations,omitempty"`
}

// Option is a selectable answer.
type Option struct {
	ID           string       `json:"_id"`
	Option       string       `json:"option"`
	Translations Translations `json:"translations,omitempty"`
}

// Text returns the question title in lang, falling back to the base text.
func (q Question) Text(lang string) string {
	return q.Translations.Lookup(lang, "title", q.Title)
}

// Text returns the option label in lang, falling back to the base text.
func (o Option) Text(lang string) string {
	return o.Translations.Lookup(lang, "option", o.Option)
}

// HasOption reports whether optionID belongs to the question.
func (q Question) HasOption(optionID string) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Translations maps a language code to localized fields. The API sends
// either a bare string per language or an object keyed by field name.
type Translations map[string]LocalizedFields

// LocalizedFields holds the localized values for one language. A bare
// string is stored under the empty key.
type LocalizedFields map[string]string

// UnmarshalJSON accepts both `"text"` and `{"title": "text"}`.
func (f *LocalizedFields) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = LocalizedFields{"": s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("translation must be a string or an object: %w", err)
	}
	*f = LocalizedFields(m)
	return nil
}

// Lookup resolves field in lang; base is returned for the base language,
// for unknown languages and for empty values.
func (t Translations) Lookup(lang, field, base string) string {
	if lang == "" || lang == BaseLanguage || t == nil {
		return base
	}
	fields, ok := t[lang]
	if !ok {
		return base
	}
	if v := fields[field]; v != "" {
		return v
	}
	if v := fields[""]; v != "" {
		return v
	}
	return base
}

// BaseLanguage is the language of the untranslated fields.
const BaseLanguage = "en"

// Language is an entry of the language picker.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// languageCatalogue is ordered as shown to candidates.
var languageCatalogue = []Language{
	{"en", "English"},
	{"hi", "Hindi"},
	{"mr", "Marathi"},
	{"ta", "Tamil"},
	{"te", "Telugu"},
	{"kn", "Kannada"},
	{"gu", "Gujarati"},
	{"bn", "Bengali"},
	{"pa", "Punjabi"},
	{"ml", "Malayalam"},
	{"ur", "Urdu"},
	{"or", "Odia"},
	{"as", "Assamese"},
}

// AvailableLanguages lists catalogue languages that at least one question
// is translated into. English is always present.
func AvailableLanguages(questions []Question) []Language {
	present := map[string]bool{BaseLanguage: true}
	for _, q := range questions {
		for lang := range q.Translations {
			present[lang] = true
		}
	}

	out := make([]Language, 0, len(present))
	for _, l := range languageCatalogue {
		if present[l.Code] {
			out = append(out, l)
		}
	}
	return out
}

// IsRTL reports whether lang is written right-to-left. Urdu is the only
// such catalogue language.
func IsRTL(lang string) bool {
	return lang == "ur"
}
