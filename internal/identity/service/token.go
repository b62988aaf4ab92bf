package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edumall/edumall/internal/identity/domain"
	"github.com/edumall/edumall/internal/identity/store"
	"github.com/edumall/edumall/pkg/cryptox"
	"github.com/edumall/edumall/pkg/idx"
	"github.com/edumall/edumall/pkg/jwtx"
	"github.com/edumall/edumall/pkg/slogx"
	"github.com/jonboulle/clockwork"
)

// errRefreshReuse aborts the rotation transaction so the session can be
// revoked outside of it.
var errRefreshReuse = errors.New("refresh token reuse")

type TokenService struct {
	Signer     jwtx.Signer
	Store      store.Store
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      clockwork.Clock
}

func (s *TokenService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

// Issue opens a new session for user and returns its first token pair.
func (s *TokenService) Issue(ctx context.Context, user domain.User) (*domain.TokenPair, error) {
	var result *domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		pair, err := s.mint(ctx, tx, user, idx.New().String(), s.now())
		result = pair
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// one is issued in the same session. Presenting an already revoked token
// revokes the whole session.
func (s *TokenService) Refresh(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	if refreshOpaque == "" {
		return nil, ErrInvalidRefresh
	}
	fp := cryptox.FingerprintToken(refreshOpaque)

	var (
		result *domain.TokenPair
		reused domain.RefreshToken
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}
		if rt.Revoked {
			reused = rt
			return errRefreshReuse
		}
		if !now.Before(rt.ExpiresAt) {
			return ErrInvalidRefresh
		}

		user, err := tx.Users().GetUserByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}

		result, err = s.mint(ctx, tx, user, rt.SessionID, now)
		return err
	})
	if errors.Is(err, errRefreshReuse) {
		l.Warn("revoked refresh token presented, revoking session",
			slog.String("user_id", reused.UserID), slog.String("sid", reused.SessionID))
		if err := s.Store.RefreshTokens().RevokeSessionRefreshTokens(ctx, reused.UserID, reused.SessionID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Logout revokes every refresh token of the caller's session. A refresh
// token passed alongside is revoked too when it belongs to the same user.
func (s *TokenService) Logout(ctx context.Context, userID, sessionID, refreshOpaque string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if sessionID != "" {
			if err := tx.RefreshTokens().RevokeSessionRefreshTokens(ctx, userID, sessionID); err != nil {
				return err
			}
		}
		if refreshOpaque == "" {
			return nil
		}
		fp := cryptox.FingerprintToken(refreshOpaque)
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if rt.UserID != userID {
			return nil
		}
		return tx.RefreshTokens().RevokeRefreshToken(ctx, fp)
	})
}

// SessionActive reports whether an access token's session has not been
// logged out. Access tokens themselves are stateless.
func (s *TokenService) SessionActive(ctx context.Context, userID, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	return s.Store.RefreshTokens().HasActiveSession(ctx, userID, sessionID)
}

func (s *TokenService) mint(
	ctx context.Context,
	tx store.Tx,
	user domain.User,
	sessionID string,
	now time.Time,
) (*domain.TokenPair, error) {
	claims := jwtx.NewAccessClaims(user.ID, sessionID, user.Phone, s.AccessTTL, s.Issuer, s.Audience, now)
	accessToken, err := s.Signer.Sign(claims)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	refresh := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		SessionID: sessionID,
		ExpiresAt: now.Add(s.RefreshTTL),
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}
