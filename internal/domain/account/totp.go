package account

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RFC 6238 parameters. Standard authenticator apps expect SHA-1, 30 second
// steps, and 6 digits; codes one step either side of now are accepted to
// absorb clock drift.
const (
	totpSecretBytes = 20
	totpPeriod      = 30
	totpDigits      = 6
	totpSkew        = 1
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

func generateTOTPSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return base32NoPad.EncodeToString(raw), nil
}

func provisioningURI(issuer, email, secret string) string {
	label := url.PathEscape(issuer + ":" + email)
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")
	v.Set("period", "30")
	return "otpauth://totp/" + label + "?" + v.Encode()
}

func totpCode(secret []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	return fmt.Sprintf("%06d", bin%1000000)
}

func totpValidate(secretBase32, submitted string, now time.Time) bool {
	trimmed := strings.TrimSpace(submitted)
	if len(trimmed) != totpDigits {
		return false
	}
	secret, err := base32NoPad.DecodeString(strings.ToUpper(secretBase32))
	if err != nil || len(secret) == 0 {
		return false
	}

	baseCounter := now.Unix() / totpPeriod
	for step := int64(-totpSkew); step <= totpSkew; step++ {
		counter := baseCounter + step
		if counter < 0 {
			continue
		}
		expected := totpCode(secret, counter)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(trimmed)) == 1 {
			return true
		}
	}
	return false
}

// TwoFactorSetup is returned by BeginTwoFactorSetup for display to the user.
type TwoFactorSetup struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// BeginTwoFactorSetup generates a fresh secret and stores it as pending. The
// second factor is not enabled until a valid code confirms the authenticator
// app has it.
func (s *Service) BeginTwoFactorSetup(ctx context.Context, accountID uuid.UUID) (*TwoFactorSetup, error) {
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	secret, err := generateTOTPSecret()
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetTwoFactor(ctx, a.ID, a.TwoFactorEnabled, a.TwoFactorSecret, secret); err != nil {
		return nil, fmt.Errorf("store pending secret: %w", err)
	}

	return &TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: provisioningURI(s.totpIssuer, a.Email, secret),
	}, nil
}

// ConfirmTwoFactorSetup promotes the pending secret to confirmed and enables
// the second factor when the submitted code matches. On mismatch the pending
// secret stays put so the user can retry.
func (s *Service) ConfirmTwoFactorSetup(ctx context.Context, accountID uuid.UUID, code string) error {
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if a.PendingTwoFactorSecret == "" {
		return ErrInvalidCode
	}
	if !totpValidate(a.PendingTwoFactorSecret, code, time.Now().UTC()) {
		return ErrInvalidCode
	}
	if err := s.repo.SetTwoFactor(ctx, a.ID, true, a.PendingTwoFactorSecret, ""); err != nil {
		return fmt.Errorf("enable second factor: %w", err)
	}
	s.notify.SendTwoFactorEnabled(ctx, a.Email, a.DisplayName)
	return nil
}

// VerifyTwoFactorCode checks a login-time code against the confirmed secret.
// Accounts without the second factor enabled always fail.
func (s *Service) VerifyTwoFactorCode(a *Account, code string) bool {
	if !a.TwoFactorEnabled || a.TwoFactorSecret == "" {
		return false
	}
	return totpValidate(a.TwoFactorSecret, code, time.Now().UTC())
}

// DisableTwoFactor clears both secrets and the enabled flag unconditionally.
// The secret is removed, not just flagged off, so re-enabling always starts
// from a fresh secret.
func (s *Service) DisableTwoFactor(ctx context.Context, accountID uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, accountID); err != nil {
		return err
	}
	return s.repo.SetTwoFactor(ctx, accountID, false, "", "")
}
