package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edumall/edumall/internal/identity/domain"
	"github.com/edumall/edumall/internal/identity/store"
	"github.com/edumall/edumall/pkg/slogx"
	"github.com/jonboulle/clockwork"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// MaxOTPAttempts is the number of wrong codes a challenge survives.
	MaxOTPAttempts = 5

	// DefaultOTPTTL is how long a dispatched code stays redeemable.
	DefaultOTPTTL = 5 * time.Minute
)

// OTPService issues and redeems phone challenges. Codes are TOTP values of a
// per-challenge secret, frozen at the issue instant.
type OTPService struct {
	Challenges  store.ChallengeStore
	Sender      Sender
	TTL         time.Duration
	MaxAttempts int
	Clock       clockwork.Clock
}

func (s *OTPService) clock() clockwork.Clock {
	if s.Clock == nil {
		return clockwork.NewRealClock()
	}
	return s.Clock
}

func (s *OTPService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultOTPTTL
	}
	return s.TTL
}

func (s *OTPService) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return MaxOTPAttempts
	}
	return s.MaxAttempts
}

func (s *OTPService) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(s.ttl() / time.Second),
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Send replaces any outstanding challenge for phone with a fresh one and
// dispatches its code. The code is returned for development echo.
func (s *OTPService) Send(ctx context.Context, phone string) (string, error) {
	l := slogx.FromContext(ctx)

	phone, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "EduMall",
		AccountName: phone,
		Period:      uint(s.ttl() / time.Second),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate otp secret: %w", err)
	}

	now := s.clock().Now()
	code, err := totp.GenerateCodeCustom(key.Secret(), now, s.validateOpts())
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}

	challenge := domain.Challenge{
		Phone:     phone,
		Secret:    key.Secret(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl()),
	}
	if err := s.Challenges.PutChallenge(ctx, challenge); err != nil {
		return "", fmt.Errorf("store challenge: %w", err)
	}

	if err := s.Sender.SendOTP(ctx, phone, code); err != nil {
		_ = s.Challenges.DeleteChallenge(ctx, phone)
		return "", fmt.Errorf("dispatch otp: %w", err)
	}

	l.Info("otp challenge issued", slog.String("phone", maskPhone(phone)))
	return code, nil
}

// Verify redeems the challenge for phone. A correct code consumes it; a
// wrong one counts against MaxAttempts and the challenge is burned once they
// are used up.
func (s *OTPService) Verify(ctx context.Context, phone, code string) error {
	l := slogx.FromContext(ctx)

	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	c, err := s.Challenges.GetChallenge(ctx, phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	if c.Expired(s.clock().Now()) {
		_ = s.Challenges.DeleteChallenge(ctx, phone)
		return ErrCodeExpired
	}
	if c.Attempts >= s.maxAttempts() {
		_ = s.Challenges.DeleteChallenge(ctx, phone)
		return ErrTooManyAttempts
	}

	valid, err := totp.ValidateCustom(code, c.Secret, c.IssuedAt, s.validateOpts())
	if err != nil || !valid {
		updated, incErr := s.Challenges.IncrementChallengeAttempts(ctx, phone)
		if incErr != nil && !errors.Is(incErr, store.ErrNotFound) {
			return incErr
		}
		l.Info("otp mismatch", slog.String("phone", maskPhone(phone)), slog.Int("attempts", updated.Attempts))
		if updated.Attempts >= s.maxAttempts() {
			_ = s.Challenges.DeleteChallenge(ctx, phone)
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}

	if err := s.Challenges.DeleteChallenge(ctx, phone); err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}

func maskPhone(phone string) string {
	if len(phone) < 4 {
		return "****"
	}
	return "******" + phone[len(phone)-4:]
}
