package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func TestResolvedValuePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		answer Answer
		want   interface{}
	}{
		{
			name:   "empty answer resolves to nil",
			answer: Answer{},
			want:   nil,
		},
		{
			name:   "numeric wins over everything",
			answer: Answer{NumericValue: floatPtr(42), OptionIndex: intPtr(1), TextValue: strPtr("x"), MultiSelect: []int{0}},
			want:   42.0,
		},
		{
			name:   "option index wins over text",
			answer: Answer{OptionIndex: intPtr(2), TextValue: strPtr("x")},
			want:   2.0,
		},
		{
			name:   "text wins over multi-select",
			answer: Answer{TextValue: strPtr("hello"), MultiSelect: []int{1, 3}},
			want:   "hello",
		},
		{
			name:   "multi-select renders as comma-joined indices",
			answer: Answer{MultiSelect: []int{1, 3}},
			want:   "1,3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.answer.ResolvedValue())
		})
	}
}

func TestAnswerType(t *testing.T) {
	assert.Equal(t, "multiple_choice", (&Answer{OptionIndex: intPtr(1)}).AnswerType(QuestionTypeSingleChoice))
	assert.Equal(t, "multi_select", (&Answer{IsMultiSelect: true}).AnswerType(QuestionTypeMultiSelect))
	assert.Equal(t, "numeric", (&Answer{IsNumeric: true}).AnswerType(QuestionTypeNumeric))
	assert.Equal(t, "text", (&Answer{TextValue: strPtr("x")}).AnswerType(QuestionTypeFreeText))
}

func TestPadAnswersKeepsAlignment(t *testing.T) {
	survey := &Survey{
		ID: "s1",
		Questions: []Question{
			{ID: "q0", ShortName: "consent"},
			{ID: "q1", ShortName: "age"},
			{ID: "q2", ShortName: "comments"},
		},
		Answers: []Answer{
			{QuestionID: "q0", ShortName: "consent", OptionIndex: intPtr(1)},
		},
	}

	survey.PadAnswers()

	require.Len(t, survey.Answers, len(survey.Questions))
	// Existing answers are untouched, padding is empty and index-aligned.
	assert.Equal(t, intPtr(1), survey.Answers[0].OptionIndex)
	for i := 1; i < len(survey.Answers); i++ {
		assert.False(t, survey.Answers[i].HasValue())
		assert.Equal(t, survey.Questions[i].ID, survey.Answers[i].QuestionID)
		assert.Equal(t, survey.Questions[i].ShortName, survey.Answers[i].ShortName)
	}

	// Padding again is a no-op.
	survey.PadAnswers()
	assert.Len(t, survey.Answers, 3)
}
