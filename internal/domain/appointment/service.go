package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
)

// ErrNotFound reports a lookup miss by id.
var ErrNotFound = errors.New("appointment not found")

// Directory resolves account ids to contact details for notifications.
// Satisfied by the account service.
type Directory interface {
	Resolve(ctx context.Context, id uuid.UUID) (*auth.Identity, error)
}

// Notifier is the slice of the notification sink this service uses.
type Notifier interface {
	SendAppointmentBooked(ctx context.Context, email, name, doctor string, at time.Time)
	SendAppointmentCancelled(ctx context.Context, email, name, doctor string, at time.Time)
}

// Service manages appointment records.
type Service struct {
	repo      Repository
	directory Directory
	notify    Notifier
}

// NewService constructs the appointment service.
func NewService(repo Repository, directory Directory, notify Notifier) *Service {
	return &Service{repo: repo, directory: directory, notify: notify}
}

// Create stores a booking and emails the patient a confirmation. Unresolvable
// participants fail the booking; a failed email does not.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if a.ScheduledAt.IsZero() {
		return fmt.Errorf("scheduled_at is required")
	}
	if a.DurationMinutes <= 0 {
		a.DurationMinutes = 30
	}
	if a.Status == "" {
		a.Status = StatusRequested
	}
	if !ValidStatus(a.Status) {
		return fmt.Errorf("invalid status: %s", a.Status)
	}

	patient, err := s.directory.Resolve(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("resolve patient: %w", err)
	}
	doctor, err := s.directory.Resolve(ctx, a.DoctorID)
	if err != nil {
		return fmt.Errorf("resolve doctor: %w", err)
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}

	s.notify.SendAppointmentBooked(ctx, patient.Email, patient.Name, doctor.Name, a.ScheduledAt)
	return nil
}

// Get fetches an appointment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Update rewrites the mutable fields of an appointment.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	if a.Status != "" && !ValidStatus(a.Status) {
		return fmt.Errorf("invalid status: %s", a.Status)
	}
	if _, err := s.repo.GetByID(ctx, a.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, a)
}

// UpdateStatus transitions an appointment's status. Cancellation notifies
// the patient.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = status
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	if status == StatusCancelled {
		if patient, err := s.directory.Resolve(ctx, a.PatientID); err == nil {
			doctorName := ""
			if doctor, err := s.directory.Resolve(ctx, a.DoctorID); err == nil {
				doctorName = doctor.Name
			}
			s.notify.SendAppointmentCancelled(ctx, patient.Email, patient.Name, doctorName, a.ScheduledAt)
		}
	}
	return a, nil
}

// Delete removes an appointment record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// List returns a page of all appointments.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListByPatient returns a patient's appointments.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListByDoctor returns a doctor's appointments.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}
