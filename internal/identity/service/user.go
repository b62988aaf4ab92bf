package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/edumall/edumall/internal/identity/domain"
	"github.com/edumall/edumall/internal/identity/store"
	"github.com/edumall/edumall/pkg/idx"
	"github.com/edumall/edumall/pkg/slogx"
)

// Profile carries the registration fields sent with the first verification
// of an unknown phone.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
}

func (p Profile) normalized() Profile {
	return Profile{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Email:     strings.TrimSpace(p.Email),
	}
}

func (p Profile) complete() bool {
	p = p.normalized()
	return p.FirstName != "" && p.LastName != ""
}

func (p Profile) validate() error {
	if !p.complete() {
		return ErrProfileRequired
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return fmt.Errorf("%w: email", ErrInvalidProfile)
		}
	}
	return nil
}

type UserService struct {
	Store store.Store
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// CanSignIn reports whether a verification for phone could succeed with the
// given profile: either the account exists or the profile can create it.
func (s *UserService) CanSignIn(ctx context.Context, phone string, p Profile) error {
	_, err := s.Store.Users().GetUserByPhone(ctx, phone)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return p.normalized().validate()
	default:
		return err
	}
}

// FindOrRegister returns the account for a freshly verified phone, creating
// it from p when none exists. created reports which happened.
func (s *UserService) FindOrRegister(ctx context.Context, phone string, p Profile) (domain.User, bool, error) {
	l := slogx.FromContext(ctx)
	p = p.normalized()

	var (
		user    domain.User
		created bool
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByPhone(ctx, phone)
		if err == nil {
			if !u.IsPhoneVerified {
				if err := tx.Users().MarkPhoneVerified(ctx, u.ID); err != nil {
					return err
				}
				u.IsPhoneVerified = true
			}
			user = u
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if err := p.validate(); err != nil {
			return err
		}

		u = domain.User{
			ID:              idx.New().String(),
			Phone:           phone,
			FirstName:       p.FirstName,
			LastName:        p.LastName,
			Email:           p.Email,
			IsPhoneVerified: true,
		}
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		// Re-read for the stored timestamps.
		user, err = tx.Users().GetUserByID(ctx, u.ID)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return domain.User{}, false, err
	}

	if created {
		l.Info("user registered", slog.String("user_id", user.ID))
	}
	return user, created, nil
}
