// Package prescription keeps medication orders issued by doctors to
// patients.
package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Prescription statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]bool{
	StatusActive:    true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// ValidStatus reports whether status is in the enumeration.
func ValidStatus(status string) bool { return validStatuses[status] }

// Prescription is a medication order.
type Prescription struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Medication    string     `json:"medication"`
	Dosage        string     `json:"dosage"`
	Frequency     string     `json:"frequency"`
	DurationDays  int        `json:"duration_days"`
	Instructions  string     `json:"instructions,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
