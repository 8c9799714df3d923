package model

import "time"

// Survey is one interview session. It owns the ordered question list for its
// language and an answer list index-aligned 1:1 with the questions.
type Survey struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	SubjectID string    `json:"subjectId" bson:"subjectId"`
	Language  string    `json:"language" bson:"language"`
	StartedAt time.Time `json:"startedAt" bson:"startedAt"`

	CouponCode   string `json:"couponCode,omitempty" bson:"couponCode,omitempty"`
	ConsentName  string `json:"consentName,omitempty" bson:"consentName,omitempty"`
	ConsentPhone string `json:"consentPhone,omitempty" bson:"consentPhone,omitempty"`

	// Completion artifacts, set once the session finishes.
	SampleCollected  *bool      `json:"sampleCollected,omitempty" bson:"sampleCollected,omitempty"`
	TestResult       *string    `json:"testResult,omitempty" bson:"testResult,omitempty"`
	PaymentConfirmed *bool      `json:"paymentConfirmed,omitempty" bson:"paymentConfirmed,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`

	Questions []Question `json:"questions" bson:"questions"`
	Answers   []Answer   `json:"answers" bson:"answers"`
}

// PadAnswers extends the answer list with empty answers until it matches the
// question list. Existing answers are never reordered or truncated.
func (s *Survey) PadAnswers() {
	for i := len(s.Answers); i < len(s.Questions); i++ {
		q := s.Questions[i]
		s.Answers = append(s.Answers, Answer{
			SurveyID:   s.ID,
			QuestionID: q.ID,
			ShortName:  q.ShortName,
		})
	}
}

// IsCompleted reports whether the session has finished.
func (s *Survey) IsCompleted() bool {
	return s.CompletedAt != nil
}
