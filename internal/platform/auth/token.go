package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two credentials the server mints: a full
// session token, and the short-lived token issued between a successful
// password check and the second factor.
type TokenKind string

const (
	TokenFull   TokenKind = "full"
	TokenPre2FA TokenKind = "pre2fa"
)

var (
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenWrongType = errors.New("token type not accepted here")
)

// Claims is the JWT payload for both token kinds. Role is only present on
// full session tokens.
type Claims struct {
	jwt.RegisteredClaims
	Kind string `json:"typ"`
	Role string `json:"role,omitempty"`
}

// AccountID parses the subject claim.
func (c *Claims) AccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}
	return id, nil
}

// Issuer mints and validates signed session tokens. The signing secret is
// read once at construction and never changes; rotating it invalidates all
// outstanding tokens.
type Issuer struct {
	secret     []byte
	sessionTTL time.Duration
	pre2faTTL  time.Duration
}

// NewIssuer creates an Issuer. The secret must be at least 32 bytes for
// HS256.
func NewIssuer(secret []byte, sessionTTL, pre2faTTL time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("signing secret must be at least 32 bytes, got %d", len(secret))
	}
	if sessionTTL <= 0 || pre2faTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}
	return &Issuer{secret: secret, sessionTTL: sessionTTL, pre2faTTL: pre2faTTL}, nil
}

// IssueFullSession mints a full session token carrying the account id and role.
func (i *Issuer) IssueFullSession(accountID uuid.UUID, role string) (string, error) {
	return i.sign(accountID, TokenFull, role, i.sessionTTL)
}

// IssuePre2FA mints the short-lived token accepted only by the 2FA
// verification route.
func (i *Issuer) IssuePre2FA(accountID uuid.UUID) (string, error) {
	return i.sign(accountID, TokenPre2FA, "", i.pre2faTTL)
}

func (i *Issuer) sign(accountID uuid.UUID, kind TokenKind, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		Kind: string(kind),
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, expiry, and token kind. A pre-2FA token never
// satisfies a full-session check, and vice versa.
func (i *Issuer) Validate(tokenStr string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Kind != string(kind) {
		return nil, ErrTokenWrongType
	}

	return claims, nil
}
