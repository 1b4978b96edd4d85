package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
)

// ErrNotFound reports a lookup miss by id.
var ErrNotFound = errors.New("prescription not found")

// Directory resolves account ids to contact details. Satisfied by the
// account service.
type Directory interface {
	Resolve(ctx context.Context, id uuid.UUID) (*auth.Identity, error)
}

// Notifier is the slice of the notification sink this service uses.
type Notifier interface {
	SendPrescriptionIssued(ctx context.Context, email, name, doctor, medication string)
}

// Service manages prescriptions.
type Service struct {
	repo      Repository
	directory Directory
	notify    Notifier
}

// NewService constructs the prescription service.
func NewService(repo Repository, directory Directory, notify Notifier) *Service {
	return &Service{repo: repo, directory: directory, notify: notify}
}

// Create stores a prescription and emails the patient.
func (s *Service) Create(ctx context.Context, p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if p.Medication == "" {
		return fmt.Errorf("medication is required")
	}
	if p.Dosage == "" {
		return fmt.Errorf("dosage is required")
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !ValidStatus(p.Status) {
		return fmt.Errorf("invalid status: %s", p.Status)
	}

	patient, err := s.directory.Resolve(ctx, p.PatientID)
	if err != nil {
		return fmt.Errorf("resolve patient: %w", err)
	}
	doctor, err := s.directory.Resolve(ctx, p.DoctorID)
	if err != nil {
		return fmt.Errorf("resolve doctor: %w", err)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}

	s.notify.SendPrescriptionIssued(ctx, patient.Email, patient.Name, doctor.Name, p.Medication)
	return nil
}

// Get fetches a prescription by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

// Update rewrites the mutable fields.
func (s *Service) Update(ctx context.Context, p *Prescription) error {
	if p.Status != "" && !ValidStatus(p.Status) {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if _, err := s.repo.GetByID(ctx, p.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

// UpdateStatus transitions a prescription's status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = status
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a prescription record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// List returns a page of all prescriptions.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListByPatient returns a patient's prescriptions.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListByDoctor returns prescriptions written by a doctor.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}
