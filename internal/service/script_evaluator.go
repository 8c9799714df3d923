package service

import (
	"fmt"
	"log"

	"github.com/expr-lang/expr"

	"fieldintake/internal/model"
)

// ScriptEvaluator runs the skip and validation expressions embedded in
// questions. Scripts are plain boolean/comparison/arithmetic expressions over
// a flat variable context; the grammar has no assignment, no I/O and no
// loops, so evaluation is total and side-effect-free.
type ScriptEvaluator struct{}

// NewScriptEvaluator creates a new script evaluator
func NewScriptEvaluator() *ScriptEvaluator {
	return &ScriptEvaluator{}
}

// Evaluate runs an expression against the variable context. Parse errors,
// undefined variables and type mismatches are returned as errors. Compiling
// against the context makes an unresolved identifier a compile error instead
// of a silent nil.
func (e *ScriptEvaluator) Evaluate(script string, vars map[string]interface{}) (interface{}, error) {
	if vars == nil {
		vars = map[string]interface{}{}
	}
	program, err := expr.Compile(script, expr.Env(vars))
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", script, err)
	}

	out, err := expr.Run(program, vars)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", script, err)
	}

	return out, nil
}

// EvaluateBool runs an expression and requires a boolean result.
func (e *ScriptEvaluator) EvaluateBool(script string, vars map[string]interface{}) (bool, error) {
	out, err := e.Evaluate(script, vars)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("script %q returned %T, want bool", script, out)
	}
	return b, nil
}

// ShouldSkip evaluates a question's skip script, which acts as a display
// condition: the question is shown when the script evaluates true and
// bypassed when it evaluates false. Evaluation errors fail open to "show"
// so a broken script never hides a question; the failure is logged for the
// questionnaire author.
func (e *ScriptEvaluator) ShouldSkip(q *model.Question, vars map[string]interface{}) bool {
	if q.SkipScript == "" {
		return false
	}
	show, err := e.EvaluateBool(q.SkipScript, vars)
	if err != nil {
		log.Printf("[Script] skip script failed for %s: %v", q.ShortName, err)
		return false
	}
	return !show
}

// ValidateAnswer evaluates a question's validation script against the pending
// answer, exposed to the script as "value". Evaluation errors fail open to
// "valid".
func (e *ScriptEvaluator) ValidateAnswer(q *model.Question, vars map[string]interface{}) bool {
	if q.ValidationScript == "" {
		return true
	}
	ok, err := e.EvaluateBool(q.ValidationScript, vars)
	if err != nil {
		log.Printf("[Script] validation script failed for %s: %v", q.ShortName, err)
		return true
	}
	return ok
}
