package model

// QuestionType defines how a question is answered
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice" // One option, commits and advances
	QuestionTypeMultiSelect  QuestionType = "multi_select"  // Any number of options
	QuestionTypeNumeric      QuestionType = "numeric"       // Number entry
	QuestionTypeFreeText     QuestionType = "free_text"     // Free text entry
)

// Option is one selectable choice. Its index is the canonical value
// used by answers and scripts.
type Option struct {
	Index int    `json:"index" bson:"index"`
	Text  string `json:"text" bson:"text"`
}

// Question is one item of a language-specific questionnaire. Questions are
// immutable once a session references them.
type Question struct {
	ID        string       `json:"id" bson:"_id,omitempty"`
	Language  string       `json:"language" bson:"language"`
	Index     int          `json:"index" bson:"index"`
	ShortName string       `json:"shortName" bson:"shortName"` // Stable variable key for scripts
	Statement string       `json:"statement" bson:"statement"`
	Type      QuestionType `json:"type" bson:"type"`
	Options   []Option     `json:"options,omitempty" bson:"options,omitempty"`

	// SkipScript decides whether the question is bypassed, evaluated against
	// prior answers. ValidationScript decides whether the current answer is
	// acceptable; the pending value is exposed to it as "value".
	SkipScript        string `json:"skipScript,omitempty" bson:"skipScript,omitempty"`
	ValidationScript  string `json:"validationScript,omitempty" bson:"validationScript,omitempty"`
	ValidationMessage string `json:"validationMessage,omitempty" bson:"validationMessage,omitempty"`
}

// OptionText returns the display text for an option index.
func (q *Question) OptionText(index int) string {
	for _, opt := range q.Options {
		if opt.Index == index {
			return opt.Text
		}
	}
	return ""
}
