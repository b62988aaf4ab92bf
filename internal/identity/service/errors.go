package service

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidPhone    = errors.New("invalid_phone")
	ErrInvalidCode     = errors.New("invalid_otp")
	ErrCodeExpired     = errors.New("otp_expired")
	ErrTooManyAttempts = errors.New("too_many_attempts")
	ErrProfileRequired = errors.New("profile_required")
	ErrInvalidProfile  = errors.New("invalid_profile")
	ErrInvalidRefresh  = errors.New("invalid_refresh_token")
	ErrSessionRevoked  = errors.New("session_revoked")
	ErrUserNotFound    = errors.New("user_not_found")
)

// Indian mobile numbers: ten digits, leading 6-9.
var phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// NormalizePhone trims the number and checks it is a ten digit mobile number.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}
