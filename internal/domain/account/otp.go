package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// otpMax bounds the 6-digit code space. crypto/rand.Int gives a uniform
// draw so every code from 000000 to 999999 is equally likely.
var otpMax = big.NewInt(1000000)

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func codeMatches(storedHash, submitted string) bool {
	submittedHash := hashCode(submitted)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(submittedHash)) == 1
}

// IssueOTP generates a fresh verification code for the account, stores its
// hash and expiry, and hands the plaintext to the notification sink. Any
// prior unconsumed code is superseded. The plaintext is never persisted or
// logged.
func (s *Service) IssueOTP(ctx context.Context, accountID uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	expiresAt := time.Now().UTC().Add(s.otpTTL)
	if err := s.repo.SetOTP(ctx, a.ID, hashCode(code), &expiresAt); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	s.notify.SendVerificationCode(ctx, a.Email, a.DisplayName, code, s.otpTTL)
	return nil
}

// checkOTP validates a submitted code against the account's stored record.
// It fails closed: no record, expired record, and hash mismatch all return
// ErrInvalidCode. On success the record is cleared so the code is single use.
func (s *Service) checkOTP(ctx context.Context, a *Account, submitted string) error {
	if a.OTPHash == "" || a.OTPExpiresAt == nil {
		return ErrInvalidCode
	}
	if time.Now().UTC().After(*a.OTPExpiresAt) {
		return ErrInvalidCode
	}
	if !codeMatches(a.OTPHash, submitted) {
		return ErrInvalidCode
	}
	if err := s.repo.SetOTP(ctx, a.ID, "", nil); err != nil {
		return fmt.Errorf("clear verification code: %w", err)
	}
	return nil
}
