package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists accounts. Code-state and second-factor mutators write
// only their own columns so concurrent updates on one account cannot clobber
// unrelated fields; the row is the unit of atomicity.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Account, int, error)

	// SetOTP overwrites the stored code hash and expiry. A nil expiry with
	// an empty hash clears the record.
	SetOTP(ctx context.Context, id uuid.UUID, hash string, expiresAt *time.Time) error

	// SetTwoFactor writes the complete second-factor state.
	SetTwoFactor(ctx context.Context, id uuid.UUID, enabled bool, secret, pending string) error

	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetRole(ctx context.Context, id uuid.UUID, role string) error
	SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}
