package service

import (
	"context"
	"log/slog"

	"github.com/edumall/edumall/internal/identity/domain"
	"github.com/edumall/edumall/pkg/slogx"
)

// AuthService ties code verification to account lookup and token issuance.
type AuthService struct {
	OTP    *OTPService
	Users  *UserService
	Tokens *TokenService
}

type VerifyResult struct {
	User    domain.User
	Tokens  *domain.TokenPair
	Created bool
}

// VerifyOTP signs a phone in. Unknown phones need a complete profile, and
// that is checked before the code so a missing profile does not burn it.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string, p Profile) (*VerifyResult, error) {
	l := slogx.FromContext(ctx)

	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if err := s.Users.CanSignIn(ctx, phone, p); err != nil {
		return nil, err
	}
	if err := s.OTP.Verify(ctx, phone, code); err != nil {
		return nil, err
	}

	user, created, err := s.Users.FindOrRegister(ctx, phone, p)
	if err != nil {
		return nil, err
	}

	pair, err := s.Tokens.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	l.Info("phone signed in", slog.String("user_id", user.ID), slog.Bool("created", created))
	return &VerifyResult{User: user, Tokens: pair, Created: created}, nil
}
