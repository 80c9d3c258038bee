package domain

import "time"

// Delivery job statuses. A job fires at most once; fired and cancelled
// jobs never fire again.
const (
	JobScheduled = "scheduled"
	JobFired     = "fired"
	JobCancelled = "cancelled"
)

// DeliveryJob is a deferred post-delivery action: notify removal of a
// delivered artifact at FireAt. DeliveryID references the specific
// hand-off, not the catalog item — the same item may be delivered many
// times. The row doubles as the delivery log for stats.
type DeliveryJob struct {
	JobID       string     `json:"id" dynamodbav:"job_id"`
	UserID      string     `json:"user_id" dynamodbav:"user_id"`
	DeliveryID  string     `json:"delivery_id" dynamodbav:"delivery_id"`
	ItemID      string     `json:"item_id" dynamodbav:"item_id"`
	Status      string     `json:"status" dynamodbav:"status"`
	ScheduledAt time.Time  `json:"scheduled_at" dynamodbav:"scheduled_at"`
	FireAt      time.Time  `json:"fire_at" dynamodbav:"fire_at"`
	FiredAt     *time.Time `json:"fired_at,omitempty" dynamodbav:"fired_at"`
}
