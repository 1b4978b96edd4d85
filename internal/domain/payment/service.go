package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
)

// ErrNotFound reports a lookup miss by id.
var ErrNotFound = errors.New("payment not found")

// Directory resolves account ids to contact details. Satisfied by the
// account service.
type Directory interface {
	Resolve(ctx context.Context, id uuid.UUID) (*auth.Identity, error)
}

// Notifier is the slice of the notification sink this service uses.
type Notifier interface {
	SendPaymentReceipt(ctx context.Context, email, name, amount, description, reference string)
}

// Service manages payment records.
type Service struct {
	repo      Repository
	directory Directory
	notify    Notifier
}

// NewService constructs the payment service.
func NewService(repo Repository, directory Directory, notify Notifier) *Service {
	return &Service{repo: repo, directory: directory, notify: notify}
}

func newReference() string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	return "PAY-" + hex.EncodeToString(b[:])
}

// Create stores a pending payment with a generated reference.
func (s *Service) Create(ctx context.Context, p *Payment) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.AmountCents <= 0 {
		return fmt.Errorf("amount_cents must be positive")
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.Method == "" {
		p.Method = MethodCard
	}
	if !ValidMethod(p.Method) {
		return fmt.Errorf("invalid method: %s", p.Method)
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if !ValidStatus(p.Status) {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.Reference == "" {
		p.Reference = newReference()
	}

	if _, err := s.directory.Resolve(ctx, p.PatientID); err != nil {
		return fmt.Errorf("resolve patient: %w", err)
	}
	return s.repo.Create(ctx, p)
}

// MarkPaid transitions a pending payment to paid, stamps the time, and
// emails a receipt.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusPaid {
		return p, nil
	}
	if p.Status != StatusPending {
		return nil, fmt.Errorf("cannot pay a %s payment", p.Status)
	}

	now := time.Now().UTC()
	p.Status = StatusPaid
	p.PaidAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	if patient, err := s.directory.Resolve(ctx, p.PatientID); err == nil {
		s.notify.SendPaymentReceipt(ctx, patient.Email, patient.Name, p.FormatAmount(), p.Description, p.Reference)
	}
	return p, nil
}

// UpdateStatus sets failed or refunded states. Paid is reached only through
// MarkPaid so the receipt and timestamp cannot be skipped.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Payment, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	if status == StatusPaid {
		return s.MarkPaid(ctx, id)
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if status == StatusRefunded && p.Status != StatusPaid {
		return nil, fmt.Errorf("only paid payments can be refunded")
	}
	p.Status = status
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get fetches a payment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of all payments.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Payment, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListByPatient returns a patient's payments.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
