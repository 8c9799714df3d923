package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldintake/internal/model"
)

func TestEvaluate(t *testing.T) {
	e := NewScriptEvaluator()

	tests := []struct {
		name   string
		script string
		vars   map[string]interface{}
		want   interface{}
	}{
		{"arithmetic", "2 + 3 * 4", nil, 14},
		{"comparison", "age >= 18", map[string]interface{}{"age": 21.0}, true},
		{"equality on option index", "consent == 1", map[string]interface{}{"consent": 1.0}, true},
		{"boolean combination", "consent == 1 && tested_before == 1", map[string]interface{}{"consent": 1.0, "tested_before": 0.0}, false},
		{"string comparison", "name == 'maya'", map[string]interface{}{"name": "maya"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(tt.script, tt.vars)
			require.NoError(t, err)
			assert.EqualValues(t, tt.want, out)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := NewScriptEvaluator()

	_, err := e.Evaluate("1 +", nil)
	assert.Error(t, err, "parse error surfaces")

	_, err = e.EvaluateBool("no_such_var == 1", map[string]interface{}{})
	assert.Error(t, err, "undefined variable surfaces")

	_, err = e.EvaluateBool("1 + 1", nil)
	assert.Error(t, err, "non-boolean result surfaces")
}

func TestShouldSkipIsDisplayCondition(t *testing.T) {
	e := NewScriptEvaluator()
	q := &model.Question{ShortName: "age", SkipScript: "consent == 1"}

	// Script true means the question is shown.
	assert.False(t, e.ShouldSkip(q, map[string]interface{}{"consent": 1.0}))
	// Script false means the question is bypassed.
	assert.True(t, e.ShouldSkip(q, map[string]interface{}{"consent": 0.0}))
	// No script means always shown.
	assert.False(t, e.ShouldSkip(&model.Question{ShortName: "age"}, nil))
}

func TestShouldSkipFailsOpenToShow(t *testing.T) {
	e := NewScriptEvaluator()

	broken := &model.Question{ShortName: "age", SkipScript: "consent =="}
	assert.False(t, e.ShouldSkip(broken, map[string]interface{}{"consent": 1.0}))

	undefined := &model.Question{ShortName: "age", SkipScript: "never_answered == 1"}
	assert.False(t, e.ShouldSkip(undefined, map[string]interface{}{}))
}

func TestValidateAnswer(t *testing.T) {
	e := NewScriptEvaluator()
	q := &model.Question{ShortName: "age", ValidationScript: "value >= 18 && value <= 100"}

	assert.True(t, e.ValidateAnswer(q, map[string]interface{}{"value": 25.0}))
	assert.False(t, e.ValidateAnswer(q, map[string]interface{}{"value": 15.0}))
	assert.True(t, e.ValidateAnswer(&model.Question{ShortName: "age"}, nil), "no script means always valid")
}

func TestValidateAnswerFailsOpenToValid(t *testing.T) {
	e := NewScriptEvaluator()

	broken := &model.Question{ShortName: "age", ValidationScript: "value >="}
	assert.True(t, e.ValidateAnswer(broken, map[string]interface{}{"value": 15.0}))

	// A script referencing a variable that is not in the context must not
	// reject the answer.
	undefined := &model.Question{ShortName: "age", ValidationScript: "other_answer == 1 && value >= 18"}
	assert.True(t, e.ValidateAnswer(undefined, map[string]interface{}{"value": 15.0}))

	// Type mismatches at runtime fail open too.
	mismatched := &model.Question{ShortName: "age", ValidationScript: "value >= 18"}
	assert.True(t, e.ValidateAnswer(mismatched, map[string]interface{}{"value": "abc"}))
}
