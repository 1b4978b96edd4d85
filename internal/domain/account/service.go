package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/carelink/carelink/internal/platform/auth"
)

// Notifier is the slice of the notification sink the account service needs.
// Delivery is fire-and-forget; a failed email never fails the operation that
// triggered it.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, name, code string, ttl time.Duration)
	SendWelcome(ctx context.Context, email, name string)
	SendTwoFactorEnabled(ctx context.Context, email, name string)
}

// Service is the credential store. All account mutation goes through it.
type Service struct {
	repo       Repository
	issuer     *auth.Issuer
	notify     Notifier
	bcryptCost int
	otpTTL     time.Duration
	totpIssuer string
}

// NewService constructs the account service.
func NewService(repo Repository, issuer *auth.Issuer, notify Notifier, bcryptCost int, otpTTL time.Duration, totpIssuer string) *Service {
	return &Service{
		repo:       repo,
		issuer:     issuer,
		notify:     notify,
		bcryptCost: bcryptCost,
		otpTTL:     otpTTL,
		totpIssuer: totpIssuer,
	}
}

// RegisterInput carries the registration request fields.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Phone       string `json:"phone"`
}

// Register creates an inactive account and dispatches a verification code.
// Registration is not complete until the code has been issued.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	email := NormalizeEmail(in.Email)
	if !ValidEmail(email) {
		return nil, invalidInput("email", "is malformed")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, invalidInput("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if in.DisplayName == "" {
		return nil, invalidInput("display_name", "is required")
	}
	if in.Role == "" {
		in.Role = RolePatient
	}
	if !ValidRole(in.Role) {
		return nil, invalidInput("role", "is not a recognized role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a := &Account{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  in.DisplayName,
		Phone:        in.Phone,
		Role:         in.Role,
		Status:       StatusInactive,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	if err := s.IssueOTP(ctx, a.ID); err != nil {
		return nil, fmt.Errorf("issue verification code: %w", err)
	}
	return a, nil
}

// Authenticate checks an email/password pair. Unknown email and wrong
// password produce the same error. The dummy bcrypt comparison on the
// unknown-email path keeps response timing uniform.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	a, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if a.Status != StatusActive {
		return nil, ErrAccountNotActive
	}

	now := time.Now().UTC()
	if err := s.repo.SetLastLogin(ctx, a.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	a.LastLoginAt = &now
	return a, nil
}

// dummyHash is a bcrypt hash of an unguessable value, compared against on
// the unknown-email path.
var dummyHash = []byte("$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW")

// LoginResult is the outcome of the password step. Either Token is set, or
// TwoFactorRequired is true and TempToken holds a short-lived credential for
// the code-verification step.
type LoginResult struct {
	Token             string   `json:"token,omitempty"`
	TwoFactorRequired bool     `json:"two_factor_required,omitempty"`
	TempToken         string   `json:"temp_token,omitempty"`
	Account           *Account `json:"account,omitempty"`
}

// Login runs the password step of the login state machine. Accounts with the
// second factor enabled get a pre-2FA token instead of a session.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	a, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if a.TwoFactorEnabled {
		temp, err := s.issuer.IssuePre2FA(a.ID)
		if err != nil {
			return nil, err
		}
		return &LoginResult{TwoFactorRequired: true, TempToken: temp}, nil
	}

	token, err := s.issuer.IssueFullSession(a.ID, a.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Account: a}, nil
}

// VerifyOTP validates a registration code, activates the account, and issues
// a full session so a fresh registrant lands authenticated.
func (s *Service) VerifyOTP(ctx context.Context, accountID uuid.UUID, code string) (*LoginResult, error) {
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOTP(ctx, a, code); err != nil {
		return nil, err
	}
	if err := s.Activate(ctx, a.ID); err != nil {
		return nil, err
	}
	a.Status = StatusActive

	s.notify.SendWelcome(ctx, a.Email, a.DisplayName)

	token, err := s.issuer.IssueFullSession(a.ID, a.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Account: a}, nil
}

// ResendOTP dispatches a fresh verification code, superseding any prior one.
func (s *Service) ResendOTP(ctx context.Context, accountID uuid.UUID) error {
	return s.IssueOTP(ctx, accountID)
}

// VerifyTwoFactorLogin completes the login state machine for accounts with
// the second factor enabled. The caller authenticates the pre-2FA token; an
// invalid code returns ErrInvalidCode and leaves the caller unauthenticated.
func (s *Service) VerifyTwoFactorLogin(ctx context.Context, accountID uuid.UUID, code string) (*LoginResult, error) {
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusActive {
		return nil, ErrAccountNotActive
	}
	if !s.VerifyTwoFactorCode(a, code) {
		return nil, ErrInvalidCode
	}

	token, err := s.issuer.IssueFullSession(a.ID, a.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Account: a}, nil
}

// Activate transitions an inactive account to active. Activating an already
// active account is a no-op.
func (s *Service) Activate(ctx context.Context, accountID uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if a.Status == StatusActive {
		return nil
	}
	return s.repo.SetStatus(ctx, accountID, StatusActive)
}

// SetRole is an administrative mutator. Authorization is the route's job.
func (s *Service) SetRole(ctx context.Context, accountID uuid.UUID, role string) error {
	if !ValidRole(role) {
		return invalidInput("role", "is not a recognized role")
	}
	return s.repo.SetRole(ctx, accountID, role)
}

// SetStatus is an administrative mutator.
func (s *Service) SetStatus(ctx context.Context, accountID uuid.UUID, status string) error {
	if !ValidStatus(status) {
		return invalidInput("status", "is not a recognized status")
	}
	return s.repo.SetStatus(ctx, accountID, status)
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, accountID)
}

// List returns a page of accounts with the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Resolve satisfies auth.IdentitySource. The gate calls it on every request
// so role and status changes take effect immediately.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (*auth.Identity, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &auth.Identity{
		ID:     a.ID,
		Email:  a.Email,
		Name:   a.DisplayName,
		Role:   a.Role,
		Status: a.Status,
	}, nil
}
