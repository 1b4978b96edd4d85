package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
)

// ErrNotFound reports a lookup miss by id.
var ErrNotFound = errors.New("subscription not found")

// Directory resolves account ids to contact details. Satisfied by the
// account service.
type Directory interface {
	Resolve(ctx context.Context, id uuid.UUID) (*auth.Identity, error)
}

// Notifier is the slice of the notification sink this service uses.
type Notifier interface {
	SendSubscriptionStarted(ctx context.Context, email, name, plan string, expires time.Time)
}

// Service manages plans and subscriptions.
type Service struct {
	plans     PlanRepository
	subs      Repository
	directory Directory
	notify    Notifier
	now       func() time.Time
}

// NewService constructs the subscription service.
func NewService(plans PlanRepository, subs Repository, directory Directory, notify Notifier) *Service {
	return &Service{
		plans:     plans,
		subs:      subs,
		directory: directory,
		notify:    notify,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreatePlan stores a new care plan.
func (s *Service) CreatePlan(ctx context.Context, p *Plan) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.PriceCents < 0 {
		return fmt.Errorf("price_cents cannot be negative")
	}
	if p.BillingPeriodDays <= 0 {
		return fmt.Errorf("billing_period_days must be positive")
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	p.Active = true
	return s.plans.Create(ctx, p)
}

// UpdatePlan edits an existing plan.
func (s *Service) UpdatePlan(ctx context.Context, p *Plan) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.BillingPeriodDays <= 0 {
		return fmt.Errorf("billing_period_days must be positive")
	}
	if _, err := s.plans.GetByID(ctx, p.ID); err != nil {
		return err
	}
	return s.plans.Update(ctx, p)
}

// GetPlan fetches a plan by id.
func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return s.plans.GetByID(ctx, id)
}

// ListPlans returns a page of plans.
func (s *Service) ListPlans(ctx context.Context, limit, offset int) ([]*Plan, int, error) {
	return s.plans.List(ctx, limit, offset)
}

// Subscribe starts a subscription to an active plan. The first billing date
// is one period out from now.
func (s *Service) Subscribe(ctx context.Context, patientID, planID uuid.UUID) (*Subscription, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, fmt.Errorf("plan %s is not active", plan.Name)
	}
	patient, err := s.directory.Resolve(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	existing, _, err := s.subs.ListByPatient(ctx, patientID, 100, 0)
	if err != nil {
		return nil, err
	}
	for _, sub := range existing {
		if sub.PlanID == planID && (sub.Status == StatusActive || sub.Status == StatusPastDue) {
			return nil, fmt.Errorf("already subscribed to plan %s", plan.Name)
		}
	}

	now := s.now()
	sub := &Subscription{
		PatientID:     patientID,
		PlanID:        planID,
		Status:        StatusActive,
		StartedAt:     now,
		NextBillingAt: now.AddDate(0, 0, plan.BillingPeriodDays),
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.notify.SendSubscriptionStarted(ctx, patient.Email, patient.Name, plan.Name, sub.NextBillingAt)
	return sub, nil
}

// Cancel stops a subscription. Already-cancelled subscriptions are left alone.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == StatusCancelled {
		return sub, nil
	}
	now := s.now()
	sub.Status = StatusCancelled
	sub.CancelledAt = &now
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Renew advances a due subscription by one plan period. Subscriptions that
// are not due yet are returned unchanged.
func (s *Service) Renew(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != StatusActive && sub.Status != StatusPastDue {
		return nil, fmt.Errorf("cannot renew a %s subscription", sub.Status)
	}
	if !sub.Due(s.now()) && sub.Status != StatusPastDue {
		return sub, nil
	}

	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	sub.Advance(plan.BillingPeriodDays)
	sub.Status = StatusActive
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// MarkPastDue flags an active subscription whose billing date has lapsed.
func (s *Service) MarkPastDue(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != StatusActive {
		return nil, fmt.Errorf("cannot mark a %s subscription past due", sub.Status)
	}
	if !sub.Due(s.now()) {
		return nil, fmt.Errorf("subscription is not due until %s", sub.NextBillingAt.Format(time.RFC3339))
	}
	sub.Status = StatusPastDue
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Get fetches a subscription by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return s.subs.GetByID(ctx, id)
}

// List returns a page of all subscriptions.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Subscription, int, error) {
	return s.subs.List(ctx, limit, offset)
}

// ListByPatient returns a patient's subscriptions.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Subscription, int, error) {
	return s.subs.ListByPatient(ctx, patientID, limit, offset)
}
