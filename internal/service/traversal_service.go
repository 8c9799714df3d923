package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldintake/internal/cache"
	"fieldintake/internal/model"
	"fieldintake/internal/repository"
)

// NotStartedIndex is the cursor position before the first advance.
const NotStartedIndex = -1

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionCompleted  = errors.New("session already completed")
	ErrNoQuestions       = errors.New("no questions for language")
	ErrNoCurrentQuestion = errors.New("no current question")
)

// SnapshotSink receives the immutable snapshot of a completed session.
// Implemented by UploadService.
type SnapshotSink interface {
	EnqueueSurvey(ctx context.Context, survey *model.Survey) error
}

// NavigationResult reports where a navigation operation landed.
type NavigationResult struct {
	SurveyID    string          `json:"surveyId"`
	Index       int             `json:"index"`
	Question    *model.Question `json:"question,omitempty"` // nil when completed or not started
	Completed   bool            `json:"completed"`
	HasPrevious bool            `json:"hasPrevious"`

	// Rejected is set when the current answer failed its validation script.
	// The cursor is unchanged and the caller is expected to re-prompt.
	Rejected         bool   `json:"rejected,omitempty"`
	RejectionMessage string `json:"rejectionMessage,omitempty"`
}

// AnswerInput is the raw input recorded against the current question.
type AnswerInput struct {
	OptionIndex *int     `json:"optionIndex,omitempty"`
	Numeric     *float64 `json:"numeric,omitempty"`
	Text        *string  `json:"text,omitempty"`
	MultiSelect []int    `json:"multiSelect,omitempty"`
}

// session is the live state of one interview. Operations on a session are
// serialized by its mutex; one session is owned by one UI context at a time.
type session struct {
	mu     sync.Mutex
	survey *model.Survey
	cursor int
}

// TraversalService is the question traversal engine. It decides which
// question to show, skip or reject while keeping the answer list aligned
// 1:1 with the question list.
type TraversalService struct {
	questionRepo repository.QuestionRepo
	surveyRepo   repository.SurveyRepo
	sessionCache cache.SessionCache
	evaluator    *ScriptEvaluator
	sink         SnapshotSink

	mu       sync.Mutex
	sessions map[string]*session
}

// NewTraversalService creates a new traversal service
func NewTraversalService(questionRepo repository.QuestionRepo, surveyRepo repository.SurveyRepo, sessionCache cache.SessionCache, evaluator *ScriptEvaluator, sink SnapshotSink) *TraversalService {
	return &TraversalService{
		questionRepo: questionRepo,
		surveyRepo:   surveyRepo,
		sessionCache: sessionCache,
		evaluator:    evaluator,
		sink:         sink,
		sessions:     make(map[string]*session),
	}
}

// Start creates a new session for a language and advances to the first
// non-skipped question.
func (s *TraversalService) Start(ctx context.Context, language string) (*NavigationResult, error) {
	questions, err := s.questionRepo.GetByLanguage(ctx, language)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	survey := &model.Survey{
		ID:        uuid.New().String(),
		SubjectID: "subj_" + uuid.New().String()[:8],
		Language:  language,
		StartedAt: time.Now().UTC(),
		Questions: questions,
	}
	survey.PadAnswers()

	if err := s.surveyRepo.Insert(ctx, survey); err != nil {
		return nil, fmt.Errorf("insert survey: %w", err)
	}

	sess := &session{survey: survey, cursor: NotStartedIndex}
	s.mu.Lock()
	s.sessions[survey.ID] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	log.Printf("[Traversal] started session %s (%s, %d questions)", survey.ID, language, len(questions))
	return s.advanceLocked(ctx, sess)
}

// Resume reloads a stored session. Questions added since the session was
// saved are padded with empty answers; alignment is never broken.
func (s *TraversalService) Resume(ctx context.Context, surveyID string) (*NavigationResult, error) {
	s.mu.Lock()
	sess, ok := s.sessions[surveyID]
	s.mu.Unlock()

	if !ok {
		survey, err := s.surveyRepo.GetByID(ctx, surveyID)
		if err != nil {
			return nil, fmt.Errorf("load survey: %w", err)
		}
		if survey == nil {
			return nil, ErrSessionNotFound
		}
		if survey.IsCompleted() {
			return nil, ErrSessionCompleted
		}

		questions, err := s.questionRepo.GetByLanguage(ctx, survey.Language)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		if len(questions) > len(survey.Questions) {
			survey.Questions = questions
		}
		survey.PadAnswers()

		cursor := NotStartedIndex
		if idx, found, err := s.sessionCache.GetCursor(ctx, surveyID); err != nil {
			log.Printf("[Traversal] cursor cache read failed for %s: %v", surveyID, err)
		} else if found {
			cursor = clamp(idx, NotStartedIndex, len(survey.Questions))
		}

		sess = &session{survey: survey, cursor: cursor}
		s.mu.Lock()
		s.sessions[surveyID] = sess
		s.mu.Unlock()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cursor == NotStartedIndex {
		return s.advanceLocked(ctx, sess)
	}
	return s.resultLocked(sess), nil
}

// Current returns the session position without mutating it.
func (s *TraversalService) Current(ctx context.Context, surveyID string) (*NavigationResult, error) {
	sess, err := s.lookup(surveyID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.resultLocked(sess), nil
}

// Record mutates the current answer in place. Single-choice input commits and
// advances as one atomic step; all other input types wait for an explicit
// Advance call.
func (s *TraversalService) Record(ctx context.Context, surveyID string, input AnswerInput) (*NavigationResult, error) {
	sess, err := s.lookup(surveyID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.survey.IsCompleted() {
		return nil, ErrSessionCompleted
	}
	if sess.cursor < 0 || sess.cursor >= len(sess.survey.Questions) {
		return nil, ErrNoCurrentQuestion
	}

	q := &sess.survey.Questions[sess.cursor]
	answer := &sess.survey.Answers[sess.cursor]
	applyInput(q, answer, input)

	if err := s.surveyRepo.Update(ctx, sess.survey); err != nil {
		return nil, fmt.Errorf("persist answer: %w", err)
	}

	if q.Type == model.QuestionTypeSingleChoice && input.OptionIndex != nil {
		return s.advanceLocked(ctx, sess)
	}
	return s.resultLocked(sess), nil
}

// Advance validates the current answer, then moves forward past any
// questions whose skip script fires.
func (s *TraversalService) Advance(ctx context.Context, surveyID string) (*NavigationResult, error) {
	sess, err := s.lookup(surveyID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.survey.IsCompleted() {
		return nil, ErrSessionCompleted
	}
	return s.advanceLocked(ctx, sess)
}

// Retreat moves backward past skipped questions, clamped at the first
// question of the session.
func (s *TraversalService) Retreat(ctx context.Context, surveyID string) (*NavigationResult, error) {
	sess, err := s.lookup(surveyID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.survey.IsCompleted() {
		return nil, ErrSessionCompleted
	}

	survey := sess.survey
	origin := sess.cursor
	vars := s.scriptContext(survey)

	// Bounded walk: at most N decrements, stopping on the first question
	// that is not skipped. If everything before the origin skips, the
	// retreat is a no-op.
	landed := false
	for steps := 0; steps <= len(survey.Questions); steps++ {
		if sess.cursor <= 0 {
			break
		}
		sess.cursor--
		if !s.evaluator.ShouldSkip(&survey.Questions[sess.cursor], vars) {
			landed = true
			break
		}
	}
	if !landed && sess.cursor >= 0 && sess.cursor < len(survey.Questions) {
		if s.evaluator.ShouldSkip(&survey.Questions[sess.cursor], vars) {
			sess.cursor = origin
		}
	}

	s.saveCursor(ctx, sess)
	return s.resultLocked(sess), nil
}

// advanceLocked is the single forward-navigation path. The caller holds the
// session mutex.
func (s *TraversalService) advanceLocked(ctx context.Context, sess *session) (*NavigationResult, error) {
	survey := sess.survey
	n := len(survey.Questions)

	if sess.cursor >= 0 && sess.cursor < n {
		q := &survey.Questions[sess.cursor]
		if q.ValidationScript != "" {
			vars := s.scriptContext(survey)
			vars["value"] = survey.Answers[sess.cursor].ResolvedValue()
			if !s.evaluator.ValidateAnswer(q, vars) {
				result := s.resultLocked(sess)
				result.Rejected = true
				result.RejectionMessage = q.ValidationMessage
				return result, nil
			}
		}
	}

	// Skip resolution is an explicit bounded loop: at most N increments,
	// so it terminates even when every remaining question is skipped.
	vars := s.scriptContext(survey)
	for steps := 0; steps <= n; steps++ {
		sess.cursor++
		if sess.cursor >= n {
			sess.cursor = n
			break
		}
		if !s.evaluator.ShouldSkip(&survey.Questions[sess.cursor], vars) {
			break
		}
	}

	if sess.cursor >= n {
		return s.completeLocked(ctx, sess)
	}

	s.saveCursor(ctx, sess)
	return s.resultLocked(sess), nil
}

// completeLocked stamps the session, hands the snapshot to the sink and
// drops the live state. The caller holds the session mutex.
func (s *TraversalService) completeLocked(ctx context.Context, sess *session) (*NavigationResult, error) {
	survey := sess.survey
	now := time.Now().UTC()
	survey.CompletedAt = &now

	if err := s.surveyRepo.Update(ctx, survey); err != nil {
		survey.CompletedAt = nil
		return nil, fmt.Errorf("persist completion: %w", err)
	}

	if err := s.sink.EnqueueSurvey(ctx, survey); err != nil {
		// The survey row is durable; the unit can still be enqueued by a
		// later sweep over completed surveys.
		log.Printf("[Traversal] enqueue failed for %s: %v", survey.ID, err)
	}

	if err := s.sessionCache.Delete(ctx, survey.ID); err != nil {
		log.Printf("[Traversal] cursor cache delete failed for %s: %v", survey.ID, err)
	}

	s.mu.Lock()
	delete(s.sessions, survey.ID)
	s.mu.Unlock()

	log.Printf("[Traversal] session %s completed", survey.ID)
	return &NavigationResult{
		SurveyID:    survey.ID,
		Index:       len(survey.Questions),
		Completed:   true,
		HasPrevious: false,
	}, nil
}

// scriptContext builds the variable map from every answered question whose
// resolved value is non-absent, keyed by short name.
func (s *TraversalService) scriptContext(survey *model.Survey) map[string]interface{} {
	vars := make(map[string]interface{}, len(survey.Answers))
	for i := range survey.Answers {
		a := &survey.Answers[i]
		if v := a.ResolvedValue(); v != nil {
			vars[a.ShortName] = v
		}
	}
	return vars
}

func (s *TraversalService) lookup(surveyID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[surveyID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *TraversalService) resultLocked(sess *session) *NavigationResult {
	n := len(sess.survey.Questions)
	result := &NavigationResult{
		SurveyID:    sess.survey.ID,
		Index:       sess.cursor,
		Completed:   sess.cursor >= n,
		HasPrevious: sess.cursor > 0 && sess.cursor < n,
	}
	if sess.cursor >= 0 && sess.cursor < n {
		q := sess.survey.Questions[sess.cursor]
		result.Question = &q
	}
	return result
}

func (s *TraversalService) saveCursor(ctx context.Context, sess *session) {
	if err := s.sessionCache.SetCursor(ctx, sess.survey.ID, sess.cursor); err != nil {
		log.Printf("[Traversal] cursor cache write failed for %s: %v", sess.survey.ID, err)
	}
}

// applyInput writes raw input into the answer according to the question type.
func applyInput(q *model.Question, answer *model.Answer, input AnswerInput) {
	switch q.Type {
	case model.QuestionTypeSingleChoice:
		if input.OptionIndex != nil {
			idx := *input.OptionIndex
			answer.OptionIndex = &idx
			// Numeric mirror so scripts can compare option answers numerically.
			mirror := float64(idx)
			answer.NumericValue = &mirror
		}

	case model.QuestionTypeNumeric:
		answer.IsNumeric = true
		if input.Numeric != nil {
			v := *input.Numeric
			answer.NumericValue = &v
		} else if input.Text != nil {
			text := *input.Text
			answer.TextValue = &text
			if num, err := strconv.ParseFloat(text, 64); err == nil {
				answer.NumericValue = &num
			} else {
				answer.NumericValue = nil
			}
		}

	case model.QuestionTypeMultiSelect:
		answer.IsMultiSelect = true
		answer.MultiSelect = append([]int(nil), input.MultiSelect...)

	case model.QuestionTypeFreeText:
		if input.Text != nil {
			text := *input.Text
			answer.TextValue = &text
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
