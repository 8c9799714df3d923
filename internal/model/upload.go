package model

import "time"

// UploadStatus describes the delivery lifecycle of one entity.
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusFailed    UploadStatus = "failed"
)

// OutcomeClass is the closed taxonomy of upload attempt results.
type OutcomeClass string

const (
	OutcomeSuccess      OutcomeClass = "success"
	OutcomeClientError  OutcomeClass = "client_error"  // 4xx, needs manual intervention
	OutcomeServerError  OutcomeClass = "server_error"  // 5xx
	OutcomeNetworkError OutcomeClass = "network_error" // Socket, DNS, timeout
	OutcomeConfigError  OutcomeClass = "configuration_error"
	OutcomeUnknownError OutcomeClass = "unknown_error"
)

// Retryable reports whether the periodic scheduler keeps retrying this class.
// Client and configuration errors are surfaced instead; an explicit immediate
// trigger may still re-attempt them.
func (o OutcomeClass) Retryable() bool {
	switch o {
	case OutcomeServerError, OutcomeNetworkError, OutcomeUnknownError:
		return true
	default:
		return false
	}
}

// UploadOutcome is the classified result of a single attempt.
type UploadOutcome struct {
	Class      OutcomeClass `json:"class"`
	StatusCode int          `json:"statusCode,omitempty"`
	Message    string       `json:"message,omitempty"`
	Duplicate  bool         `json:"duplicate,omitempty"` // Server reported it already has the payload
}

// UploadUnit is the durable record of one entity's delivery to the server.
// Status transitions are monotonic per attempt cycle: pending/failed ->
// uploading -> completed or failed. Completed is terminal and idempotent.
type UploadUnit struct {
	EntityID      string       `json:"entityId" bson:"_id"`
	EntityType    string       `json:"entityType" bson:"entityType"` // "survey", "payment"
	Status        UploadStatus `json:"status" bson:"status"`
	AttemptCount  int          `json:"attemptCount" bson:"attemptCount"`
	LastAttemptAt *time.Time   `json:"lastAttemptAt,omitempty" bson:"lastAttemptAt,omitempty"`
	LastError     string       `json:"lastError,omitempty" bson:"lastError,omitempty"`
	LastOutcome   OutcomeClass `json:"lastOutcome,omitempty" bson:"lastOutcome,omitempty"`
	Payload       []byte       `json:"-" bson:"payload"`
	CreatedAt     time.Time    `json:"createdAt" bson:"createdAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}
