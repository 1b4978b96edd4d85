package subscription

import (
	"context"

	"github.com/google/uuid"
)

// PlanRepository persists care plans.
type PlanRepository interface {
	Create(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	Update(ctx context.Context, p *Plan) error
	List(ctx context.Context, limit, offset int) ([]*Plan, int, error)
}

// Repository persists patient subscriptions.
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	List(ctx context.Context, limit, offset int) ([]*Subscription, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Subscription, int, error)
}
