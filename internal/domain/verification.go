package domain

import "time"

// Verification record statuses. A record is immutable once completed or
// expired — no re-use, no re-validation.
const (
	VerificationPending   = "pending"
	VerificationCompleted = "completed"
	VerificationExpired   = "expired"
)

// VerificationRecord is one issued challenge.
// PK: token (globally unique). GSI user_id-status-index supports the
// invalidate-on-issue rule: at most one pending record per user.
// PurgeAt is a Unix timestamp used as DynamoDB TTL so dead records age out.
type VerificationRecord struct {
	Token       string     `json:"token" dynamodbav:"token"`
	UserID      string     `json:"user_id" dynamodbav:"user_id"`
	SubjectID   string     `json:"subject_id" dynamodbav:"subject_id"` // item that triggered issuance, informational only
	CallbackURL string     `json:"callback_url" dynamodbav:"callback_url"`
	ShortURL    string     `json:"short_url,omitempty" dynamodbav:"short_url"`
	Status      string     `json:"status" dynamodbav:"status"`
	CreatedAt   time.Time  `json:"created" dynamodbav:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at" dynamodbav:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" dynamodbav:"completed_at"`
	PurgeAt     int64      `json:"-" dynamodbav:"purge_at"`
}

// Expired reports whether a still-pending record is past its issuance TTL.
func (v *VerificationRecord) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
