// Package subscription manages care plans and the patient subscriptions
// attached to them. Billing-date arithmetic lives here; charging a card
// does not.
package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses.
const (
	StatusActive    = "active"
	StatusPastDue   = "past-due"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

var validStatuses = map[string]bool{
	StatusActive:    true,
	StatusPastDue:   true,
	StatusCancelled: true,
	StatusExpired:   true,
}

// ValidStatus reports whether status is in the enumeration.
func ValidStatus(status string) bool { return validStatuses[status] }

// Plan is a purchasable care plan.
type Plan struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	PriceCents        int64     `json:"price_cents"`
	Currency          string    `json:"currency"`
	BillingPeriodDays int       `json:"billing_period_days"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Subscription ties a patient to a plan.
type Subscription struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	PlanID        uuid.UUID  `json:"plan_id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	NextBillingAt time.Time  `json:"next_billing_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Advance moves the next billing date forward by one plan period.
func (s *Subscription) Advance(periodDays int) {
	s.NextBillingAt = s.NextBillingAt.AddDate(0, 0, periodDays)
}

// Due reports whether the next billing date has passed.
func (s *Subscription) Due(now time.Time) bool {
	return s.Status == StatusActive && !now.Before(s.NextBillingAt)
}
