package http

import (
	"github.com/edumall/edumall/internal/identity/domain"
	"github.com/edumall/edumall/pkg/identitysdk"
)

func toUser(u domain.User) identitysdk.User {
	return identitysdk.User{
		ID:              u.ID,
		Phone:           u.Phone,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		IsPhoneVerified: u.IsPhoneVerified,
		CreatedAt:       u.CreatedAt,
	}
}

func toTokenPair(p *domain.TokenPair) identitysdk.TokenPair {
	return identitysdk.TokenPair{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    int(p.ExpiresIn.Seconds()),
	}
}
