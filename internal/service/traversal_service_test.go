package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldintake/internal/model"
)

type fakeQuestionRepo struct {
	questions map[string][]model.Question
}

func (r *fakeQuestionRepo) GetByLanguage(ctx context.Context, language string) ([]model.Question, error) {
	return append([]model.Question(nil), r.questions[language]...), nil
}

func (r *fakeQuestionRepo) Upsert(ctx context.Context, q *model.Question) error {
	r.questions[q.Language] = append(r.questions[q.Language], *q)
	return nil
}

func (r *fakeQuestionRepo) DeleteByLanguage(ctx context.Context, language string) error {
	delete(r.questions, language)
	return nil
}

type fakeSurveyRepo struct {
	mu      sync.Mutex
	surveys map[string]*model.Survey
	updates int
}

func newFakeSurveyRepo() *fakeSurveyRepo {
	return &fakeSurveyRepo{surveys: make(map[string]*model.Survey)}
}

func (r *fakeSurveyRepo) Insert(ctx context.Context, survey *model.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surveys[survey.ID] = survey
	return nil
}

func (r *fakeSurveyRepo) GetByID(ctx context.Context, id string) (*model.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surveys[id], nil
}

func (r *fakeSurveyRepo) Update(ctx context.Context, survey *model.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surveys[survey.ID] = survey
	r.updates++
	return nil
}

func (r *fakeSurveyRepo) ListCompleted(ctx context.Context) ([]*model.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Survey
	for _, s := range r.surveys {
		if s.IsCompleted() {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeSessionCache struct {
	mu      sync.Mutex
	cursors map[string]int
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{cursors: make(map[string]int)}
}

func (c *fakeSessionCache) SetCursor(ctx context.Context, surveyID string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[surveyID] = index
	return nil
}

func (c *fakeSessionCache) GetCursor(ctx context.Context, surveyID string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.cursors[surveyID]
	return idx, ok, nil
}

func (c *fakeSessionCache) Delete(ctx context.Context, surveyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cursors, surveyID)
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	surveys []*model.Survey
}

func (s *fakeSink) EnqueueSurvey(ctx context.Context, survey *model.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys = append(s.surveys, survey)
	return nil
}

func (s *fakeSink) enqueued() []*model.Survey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Survey(nil), s.surveys...)
}

// consentQuestions is the minimal gating questionnaire: a single-choice
// consent gate followed by a numeric age question that is only shown when
// consent was given.
func consentQuestions() []model.Question {
	return []model.Question{
		{
			ID: "q0", Language: "en", Index: 0, ShortName: "consent",
			Statement: "Do you consent?",
			Type:      model.QuestionTypeSingleChoice,
			Options:   []model.Option{{Index: 0, Text: "No"}, {Index: 1, Text: "Yes"}},
		},
		{
			ID: "q1", Language: "en", Index: 1, ShortName: "age",
			Statement:         "How old are you?",
			Type:              model.QuestionTypeNumeric,
			SkipScript:        "consent == 1",
			ValidationScript:  "value >= 18 && value <= 100",
			ValidationMessage: "Age must be between 18 and 100",
		},
	}
}

func newTraversalFixture(t *testing.T, questions []model.Question) (*TraversalService, *fakeSurveyRepo, *fakeSessionCache, *fakeSink) {
	t.Helper()
	questionRepo := &fakeQuestionRepo{questions: map[string][]model.Question{"en": questions}}
	surveyRepo := newFakeSurveyRepo()
	sessionCache := newFakeSessionCache()
	sink := &fakeSink{}
	svc := NewTraversalService(questionRepo, surveyRepo, sessionCache, NewScriptEvaluator(), sink)
	return svc, surveyRepo, sessionCache, sink
}

func TestConsentDeclinedSkipsToCompletion(t *testing.T) {
	ctx := context.Background()
	svc, surveyRepo, _, sink := newTraversalFixture(t, consentQuestions())

	start, err := svc.Start(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, 0, start.Index)
	require.NotNil(t, start.Question)
	assert.Equal(t, "consent", start.Question.ShortName)
	assert.False(t, start.HasPrevious)

	// Declining consent fails the age question's display condition, so the
	// session runs off the end in one step.
	no := 0
	result, err := svc.Record(ctx, start.SurveyID, AnswerInput{OptionIndex: &no})
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Nil(t, result.Question)

	stored, err := surveyRepo.GetByID(ctx, start.SurveyID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsCompleted())
	require.Len(t, stored.Answers, len(stored.Questions))
	assert.False(t, stored.Answers[1].HasValue(), "skipped question keeps an empty answer")

	enqueued := sink.enqueued()
	require.Len(t, enqueued, 1)
	assert.Equal(t, start.SurveyID, enqueued[0].ID)

	// The live session is gone once completed.
	_, err = svc.Current(ctx, start.SurveyID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestValidationRejectsWithoutMovingCursor(t *testing.T) {
	ctx := context.Background()
	svc, surveyRepo, _, _ := newTraversalFixture(t, consentQuestions())

	start, err := svc.Start(ctx, "en")
	require.NoError(t, err)

	yes := 1
	result, err := svc.Record(ctx, start.SurveyID, AnswerInput{OptionIndex: &yes})
	require.NoError(t, err)
	require.NotNil(t, result.Question)
	assert.Equal(t, "age", result.Question.ShortName)
	assert.Equal(t, 1, result.Index)

	// Entering "15" fails validation; the cursor stays put and the UI gets
	// the question's rejection message.
	fifteen := "15"
	_, err = svc.Record(ctx, start.SurveyID, AnswerInput{Text: &fifteen})
	require.NoError(t, err)
	result, err = svc.Advance(ctx, start.SurveyID)
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Equal(t, "Age must be between 18 and 100", result.RejectionMessage)
	assert.Equal(t, 1, result.Index)
	assert.False(t, result.Completed)

	// Correcting to "25" completes the session.
	twentyFive := "25"
	_, err = svc.Record(ctx, start.SurveyID, AnswerInput{Text: &twentyFive})
	require.NoError(t, err)
	result, err = svc.Advance(ctx, start.SurveyID)
	require.NoError(t, err)
	assert.True(t, result.Completed)

	stored, err := surveyRepo.GetByID(ctx, start.SurveyID)
	require.NoError(t, err)
	require.NotNil(t, stored.Answers[1].NumericValue)
	assert.Equal(t, 25.0, *stored.Answers[1].NumericValue)
}

func TestSkipResolutionTerminatesWhenEverythingSkips(t *testing.T) {
	questions := []model.Question{
		{ID: "q0", Language: "en", Index: 0, ShortName: "intro", Type: model.QuestionTypeFreeText},
	}
	for i := 1; i <= 4; i++ {
		questions = append(questions, model.Question{
			ID: "q" + string(rune('0'+i)), Language: "en", Index: i,
			ShortName:  "hidden" + string(rune('0'+i)),
			Type:       model.QuestionTypeFreeText,
			SkipScript: "false",
		})
	}

	ctx := context.Background()
	svc, surveyRepo, _, _ := newTraversalFixture(t, questions)

	start, err := svc.Start(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, 0, start.Index)

	result, err := svc.Advance(ctx, start.SurveyID)
	require.NoError(t, err)
	assert.True(t, result.Completed, "advance runs past every skipped question and completes")

	stored, err := surveyRepo.GetByID(ctx, start.SurveyID)
	require.NoError(t, err)
	assert.Len(t, stored.Answers, len(stored.Questions))
}

func TestRetreatClampsAtFirstQuestion(t *testing.T) {
	questions := []model.Question{
		{ID: "q0", Language: "en", Index: 0, ShortName: "first", Type: model.QuestionTypeFreeText},
		{ID: "q1", Language: "en", Index: 1, ShortName: "second", Type: model.QuestionTypeFreeText},
	}

	ctx := context.Background()
	svc, _, _, _ := newTraversalFixture(t, questions)

	start, err := svc.Start(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, 0, start.Index)

	result, err := svc.Retreat(ctx, start.SurveyID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Index, "retreat at the first question is a no-op")
	assert.False(t, result.HasPrevious)
}

func TestAdvanceThenRetreatPreservesAnswers(t *testing.T) {
	questions := []model.Question{
		{ID: "q0", Language: "en", Index: 0, ShortName: "first", Type: model.QuestionTypeFreeText},
		{ID: "q1", Language: "en", Index: 1, ShortName: "second", Type: model.QuestionTypeFreeText},
		{ID: "q2", Language: "en", Index: 2, ShortName: "third", Type: model.QuestionTypeFreeText},
	}

	ctx := context.Background()
	svc, surveyRepo, _, _ := newTraversalFixture(t, questions)

	start, err := svc.Start(ctx, "en")
	require.NoError(t, err)

	alpha := "alpha"
	_, err = svc.Record(ctx, start.SurveyID, AnswerInput{Text: &alpha})
	require.NoError(t, err)
	result, err := svc.Advance(ctx, start.SurveyID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Index)
	assert.True(t, result.HasPrevious)

	beta := "beta"
	_, err = svc.Record(ctx, start.SurveyID, AnswerInput{Text: &beta})
	require.NoError(t, err)

	result, err = svc.Retreat(ctx, start.SurveyID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Index)

	result, err = svc.Advance(ctx, start.SurveyID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Index)

	stored, err := surveyRepo.GetByID(ctx, start.SurveyID)
	require.NoError(t, err)
	require.NotNil(t, stored.Answers[0].TextValue)
	require.NotNil(t, stored.Answers[1].TextValue)
	assert.Equal(t, "alpha", *stored.Answers[0].TextValue)
	assert.Equal(t, "beta", *stored.Answers[1].TextValue)
}

func TestRetreatSkipsBypassedQuestions(t *testing.T) {
	questions := consentQuestions()
	questions = append(questions, model.Question{
		ID: "q2", Language: "en", Index: 2, ShortName: "comments",
		Type: model.QuestionTypeFreeText,
	})

	ctx := context.Background()
	svc, _, _, _ := newTraversalFixture(t, questions)

	start, err := svc.Start(ctx, "en")
	require.NoError(t, err)

	// Declining consent skips the age question and lands on comments.
	no := 0
	result, err := svc.Record(ctx, start.SurveyID, AnswerInput{OptionIndex: &no})
	require.NoError(t, err)
	require.NotNil(t, result.Question)
	assert.Equal(t, "comments", result.Question.ShortName)
	assert.Equal(t, 2, result.Index)

	// Retreating walks back over the skipped age question to consent.
	result, err = svc.Retreat(ctx, start.SurveyID)
	require.NoError(t, err)
	require.NotNil(t, result.Question)
	assert.Equal(t, "consent", result.Question.ShortName)
	assert.Equal(t, 0, result.Index)
}

func TestResumePadsQuestionsAddedSinceSave(t *testing.T) {
	ctx := context.Background()
	questions := []model.Question{
		{ID: "q0", Language: "en", Index: 0, ShortName: "first", Type: model.QuestionTypeFreeText},
		{ID: "q1", Language: "en", Index: 1, ShortName: "second", Type: model.QuestionTypeFreeText},
		{ID: "q2", Language: "en", Index: 2, ShortName: "third", Type: model.QuestionTypeFreeText},
	}
	svc, surveyRepo, sessionCache, _ := newTraversalFixture(t, questions)

	// A session saved before the third question existed.
	saved := "saved"
	stored := &model.Survey{
		ID:        "old-session",
		Language:  "en",
		Questions: questions[:2],
		Answers: []model.Answer{
			{SurveyID: "old-session", QuestionID: "q0", ShortName: "first", TextValue: &saved},
			{SurveyID: "old-session", QuestionID: "q1", ShortName: "second"},
		},
	}
	require.NoError(t, surveyRepo.Insert(ctx, stored))
	require.NoError(t, sessionCache.SetCursor(ctx, "old-session", 1))

	result, err := svc.Resume(ctx, "old-session")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Index)
	require.NotNil(t, result.Question)
	assert.Equal(t, "second", result.Question.ShortName)

	reloaded, err := surveyRepo.GetByID(ctx, "old-session")
	require.NoError(t, err)
	require.Len(t, reloaded.Questions, 3)
	require.Len(t, reloaded.Answers, 3)
	require.NotNil(t, reloaded.Answers[0].TextValue)
	assert.Equal(t, "saved", *reloaded.Answers[0].TextValue)
	assert.False(t, reloaded.Answers[2].HasValue())
}

// A cached cursor can sit past the last question when the questionnaire
// shrank since the session was saved; the result must read as completed,
// not as an empty current question.
func TestResumeAtTerminalCursorReportsCompleted(t *testing.T) {
	ctx := context.Background()
	questions := []model.Question{
		{ID: "q0", Language: "en", Index: 0, ShortName: "first", Type: model.QuestionTypeFreeText},
		{ID: "q1", Language: "en", Index: 1, ShortName: "second", Type: model.QuestionTypeFreeText},
	}
	svc, surveyRepo, sessionCache, _ := newTraversalFixture(t, questions)

	stored := &model.Survey{ID: "past-end", Language: "en", Questions: questions}
	stored.PadAnswers()
	require.NoError(t, surveyRepo.Insert(ctx, stored))
	require.NoError(t, sessionCache.SetCursor(ctx, "past-end", 5))

	result, err := svc.Resume(ctx, "past-end")
	require.NoError(t, err)
	assert.Equal(t, len(questions), result.Index, "cursor clamps to the terminal index")
	assert.True(t, result.Completed)
	assert.Nil(t, result.Question)
	assert.False(t, result.HasPrevious)
}

func TestResumeRejectsUnknownAndCompletedSessions(t *testing.T) {
	ctx := context.Background()
	svc, surveyRepo, _, _ := newTraversalFixture(t, consentQuestions())

	_, err := svc.Resume(ctx, "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	done := &model.Survey{ID: "done", Language: "en", Questions: consentQuestions()}
	done.PadAnswers()
	now := done.StartedAt
	done.CompletedAt = &now
	require.NoError(t, surveyRepo.Insert(ctx, done))

	_, err = svc.Resume(ctx, "done")
	assert.ErrorIs(t, err, ErrSessionCompleted)
}

func TestStartWithoutQuestions(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTraversalFixture(t, nil)

	_, err := svc.Start(ctx, "en")
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestMultiSelectAndResolvedContext(t *testing.T) {
	questions := []model.Question{
		{
			ID: "q0", Language: "en", Index: 0, ShortName: "sources",
			Type: model.QuestionTypeMultiSelect,
			Options: []model.Option{
				{Index: 0, Text: "Friends"}, {Index: 1, Text: "Clinic"}, {Index: 2, Text: "Radio"},
			},
		},
		{
			ID: "q1", Language: "en", Index: 1, ShortName: "clinic_name",
			Type:       model.QuestionTypeFreeText,
			SkipScript: `sources contains "1"`,
		},
	}

	ctx := context.Background()
	svc, surveyRepo, _, _ := newTraversalFixture(t, questions)

	start, err := svc.Start(ctx, "en")
	require.NoError(t, err)

	// Selecting Clinic (index 1) satisfies the follow-up's display condition.
	_, err = svc.Record(ctx, start.SurveyID, AnswerInput{MultiSelect: []int{1, 2}})
	require.NoError(t, err)
	result, err := svc.Advance(ctx, start.SurveyID)
	require.NoError(t, err)
	require.NotNil(t, result.Question)
	assert.Equal(t, "clinic_name", result.Question.ShortName)

	stored, err := surveyRepo.GetByID(ctx, start.SurveyID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, stored.Answers[0].MultiSelect)
	assert.Equal(t, "1,2", stored.Answers[0].ResolvedValue())
}
