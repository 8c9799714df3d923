package service

import (
	"time"

	"fieldintake/internal/model"
)

// DeviceInfo identifies the collecting device in upload payloads.
type DeviceInfo struct {
	DeviceID    string `json:"deviceId"`
	AppVersion  string `json:"appVersion"`
	OSVersion   string `json:"osVersion"`
	DeviceModel string `json:"deviceModel"`
}

// PayloadOption is one choice of a serialized question.
type PayloadOption struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// PayloadQuestion is a question as the server receives it.
type PayloadQuestion struct {
	QuestionID   string          `json:"questionId"`
	ShortName    string          `json:"shortName"`
	Statement    string          `json:"statement"`
	QuestionType string          `json:"questionType"`
	Options      []PayloadOption `json:"options,omitempty"`
}

// PayloadAnswer is an answer as the server receives it.
type PayloadAnswer struct {
	QuestionID  string      `json:"questionId"`
	ShortName   string      `json:"shortName"`
	AnswerType  string      `json:"answerType"`
	AnswerValue interface{} `json:"answerValue"`
	OptionText  *string     `json:"optionText,omitempty"`
}

// UploadPayload is the serialized snapshot of a completed session. Nullable
// domain fields are serialized explicitly as null so the server can
// distinguish "not yet reached" from "absent".
type UploadPayload struct {
	SurveyID      string            `json:"surveyId"`
	SubjectID     string            `json:"subjectId"`
	StartDatetime string            `json:"startDatetime"` // ISO-8601 UTC
	Language      string            `json:"language"`
	Questions     []PayloadQuestion `json:"questions"`
	Answers       []PayloadAnswer   `json:"answers"`
	CompletedAt   *string           `json:"completedAt"`

	CouponCode       *string `json:"couponCode"`
	ConsentName      *string `json:"consentName"`
	ConsentPhone     *string `json:"consentPhone"`
	SampleCollected  *bool   `json:"sampleCollected"`
	TestResult       *string `json:"testResult"`
	PaymentConfirmed *bool   `json:"paymentConfirmed"`

	DeviceInfo DeviceInfo `json:"deviceInfo"`
}

// BuildUploadPayload converts a completed survey into its wire form.
func BuildUploadPayload(survey *model.Survey, device DeviceInfo) *UploadPayload {
	payload := &UploadPayload{
		SurveyID:         survey.ID,
		SubjectID:        survey.SubjectID,
		StartDatetime:    survey.StartedAt.UTC().Format(time.RFC3339),
		Language:         survey.Language,
		Questions:        make([]PayloadQuestion, 0, len(survey.Questions)),
		Answers:          make([]PayloadAnswer, 0, len(survey.Answers)),
		CouponCode:       optionalString(survey.CouponCode),
		ConsentName:      optionalString(survey.ConsentName),
		ConsentPhone:     optionalString(survey.ConsentPhone),
		SampleCollected:  survey.SampleCollected,
		TestResult:       survey.TestResult,
		PaymentConfirmed: survey.PaymentConfirmed,
		DeviceInfo:       device,
	}

	if survey.CompletedAt != nil {
		completed := survey.CompletedAt.UTC().Format(time.RFC3339)
		payload.CompletedAt = &completed
	}

	for i := range survey.Questions {
		q := &survey.Questions[i]
		pq := PayloadQuestion{
			QuestionID:   q.ID,
			ShortName:    q.ShortName,
			Statement:    q.Statement,
			QuestionType: string(q.Type),
		}
		for _, opt := range q.Options {
			pq.Options = append(pq.Options, PayloadOption{Index: opt.Index, Text: opt.Text})
		}
		payload.Questions = append(payload.Questions, pq)

		answer := &survey.Answers[i]
		pa := PayloadAnswer{
			QuestionID:  q.ID,
			ShortName:   q.ShortName,
			AnswerType:  answer.AnswerType(q.Type),
			AnswerValue: answer.ResolvedValue(),
		}
		if answer.OptionIndex != nil {
			if text := q.OptionText(*answer.OptionIndex); text != "" {
				pa.OptionText = &text
			}
		}
		payload.Answers = append(payload.Answers, pa)
	}

	return payload
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
