package model

import (
	"strconv"
	"strings"
)

// Answer holds the recorded response for one question of a session. Exactly
// one semantic value is authoritative at a time; ResolvedValue applies the
// precedence numeric > option index > free text > multi-select.
type Answer struct {
	ID            string    `json:"id" bson:"id,omitempty"`
	SurveyID      string    `json:"surveyId" bson:"surveyId"`
	QuestionID    string    `json:"questionId" bson:"questionId"`
	ShortName     string    `json:"shortName" bson:"shortName"`
	OptionIndex   *int      `json:"optionIndex,omitempty" bson:"optionIndex,omitempty"`
	NumericValue  *float64  `json:"numericValue,omitempty" bson:"numericValue,omitempty"`
	TextValue     *string   `json:"textValue,omitempty" bson:"textValue,omitempty"`
	MultiSelect   []int     `json:"multiSelect,omitempty" bson:"multiSelect,omitempty"`
	IsNumeric     bool      `json:"isNumeric" bson:"isNumeric"`
	IsMultiSelect bool      `json:"isMultiSelect" bson:"isMultiSelect"`
}

// HasValue reports whether any value has been recorded.
func (a *Answer) HasValue() bool {
	return a.NumericValue != nil || a.OptionIndex != nil || a.TextValue != nil || len(a.MultiSelect) > 0
}

// ResolvedValue returns the single authoritative value for scripting and
// serialization, or nil when the answer is empty.
func (a *Answer) ResolvedValue() interface{} {
	switch {
	case a.NumericValue != nil:
		return *a.NumericValue
	case a.OptionIndex != nil:
		return float64(*a.OptionIndex)
	case a.TextValue != nil:
		return *a.TextValue
	case len(a.MultiSelect) > 0:
		parts := make([]string, len(a.MultiSelect))
		for i, idx := range a.MultiSelect {
			parts[i] = strconv.Itoa(idx)
		}
		return strings.Join(parts, ",")
	default:
		return nil
	}
}

// AnswerType names the wire format of the resolved value.
func (a *Answer) AnswerType(questionType QuestionType) string {
	switch {
	case a.IsMultiSelect || questionType == QuestionTypeMultiSelect:
		return "multi_select"
	case questionType == QuestionTypeSingleChoice:
		return "multiple_choice"
	case a.IsNumeric || questionType == QuestionTypeNumeric:
		return "numeric"
	default:
		return "text"
	}
}
