package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldStatus         = "status"
	fieldShortURL       = "short_url"
	fieldCompletedAt    = "completed_at"
	fieldFiredAt        = "fired_at"
	fieldLastVerifiedAt = "last_verified_at"
	fieldActive         = "active"
	fieldUpdatedAt      = "updated_at"
)
