package service

import (
	"context"
	"log/slog"
)

// Sender delivers a one-time code to a phone.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the log instead of sending an SMS. Development
// and tests only.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) SendOTP(ctx context.Context, phone, code string) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "otp dispatched", slog.String("phone", phone), slog.String("code", code))
	return nil
}
