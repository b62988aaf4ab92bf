package sqlite

import (
	"context"
	"time"

	"github.com/edumall/edumall/internal/identity/domain"
)

type challengesRepo struct {
	db  dbtx
	now func() time.Time
}

func (r *challengesRepo) PutChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_challenges (phone, secret, issued_at, expires_at, attempts)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(phone) DO UPDATE SET
		   secret = excluded.secret,
		   issued_at = excluded.issued_at,
		   expires_at = excluded.expires_at,
		   attempts = excluded.attempts`,
		c.Phone, c.Secret, toMillis(c.IssuedAt), toMillis(c.ExpiresAt), c.Attempts,
	)
	return err
}

func (r *challengesRepo) GetChallenge(ctx context.Context, phone string) (domain.Challenge, error) {
	var (
		c                   domain.Challenge
		issuedAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT phone, secret, issued_at, expires_at, attempts FROM otp_challenges WHERE phone = ?`,
		phone,
	).Scan(&c.Phone, &c.Secret, &issuedAt, &expiresAt, &c.Attempts)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	c.IssuedAt = fromMillis(issuedAt)
	c.ExpiresAt = fromMillis(expiresAt)
	return c, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, phone string) (domain.Challenge, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE phone = ?`, phone)
	if err != nil {
		return domain.Challenge{}, err
	}
	if err := requireAffected(res); err != nil {
		return domain.Challenge{}, err
	}
	return r.GetChallenge(ctx, phone)
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, phone string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE phone = ?`, phone)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at <= ?`, toMillis(r.now()))
	return err
}
