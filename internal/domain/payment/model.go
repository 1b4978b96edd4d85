// Package payment keeps payment records for care services. This is
// record-keeping only; no payment gateway is involved.
package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payment statuses.
const (
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusFailed   = "failed"
	StatusRefunded = "refunded"
)

var validStatuses = map[string]bool{
	StatusPending:  true,
	StatusPaid:     true,
	StatusFailed:   true,
	StatusRefunded: true,
}

// ValidStatus reports whether status is in the enumeration.
func ValidStatus(status string) bool { return validStatuses[status] }

// Payment methods.
const (
	MethodCard      = "card"
	MethodCash      = "cash"
	MethodInsurance = "insurance"
)

var validMethods = map[string]bool{
	MethodCard:      true,
	MethodCash:      true,
	MethodInsurance: true,
}

// ValidMethod reports whether method is in the enumeration.
func ValidMethod(method string) bool { return validMethods[method] }

// Payment is a single payment record. Amounts are integer cents to avoid
// float rounding.
type Payment struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Method        string     `json:"method"`
	Description   string     `json:"description,omitempty"`
	Reference     string     `json:"reference"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FormatAmount renders the amount for human-facing messages, e.g. "USD 25.00".
func (p *Payment) FormatAmount() string {
	return fmt.Sprintf("%s %d.%02d", p.Currency, p.AmountCents/100, p.AmountCents%100)
}
