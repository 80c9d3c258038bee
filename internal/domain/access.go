package domain

import "time"

// UserAccess tracks a user's rolling verification window.
// LastVerifiedAt is set only by a successful challenge completion and is
// never rolled back; VerificationCount grows monotonically with it.
type UserAccess struct {
	UserID            string     `json:"user_id" dynamodbav:"user_id"`
	LastVerifiedAt    *time.Time `json:"last_verified_at" dynamodbav:"last_verified_at"`
	VerificationCount int        `json:"verification_count" dynamodbav:"verification_count"`
	CreatedAt         time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// VerifiedUntil returns the instant the current window closes, or the zero
// time when the user has never verified.
func (a *UserAccess) VerifiedUntil(window time.Duration) time.Time {
	if a == nil || a.LastVerifiedAt == nil {
		return time.Time{}
	}
	return a.LastVerifiedAt.Add(window)
}

// IsVerified reports whether now still falls inside the verification window.
func (a *UserAccess) IsVerified(now time.Time, window time.Duration) bool {
	if a == nil || a.LastVerifiedAt == nil {
		return false
	}
	return now.Sub(*a.LastVerifiedAt) < window
}
