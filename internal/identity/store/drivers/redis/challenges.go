// Package redis provides a ChallengeStore backed by Redis hashes. Expiry is
// delegated to key TTLs so there is nothing for housekeeping to sweep.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/edumall/edumall/internal/identity/domain"
	"github.com/edumall/edumall/internal/identity/store"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "edumall:otp:"

var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

type ChallengeStore struct {
	client redis.UniversalClient
}

var _ store.ChallengeStore = (*ChallengeStore)(nil)

func NewChallengeStore(client redis.UniversalClient) *ChallengeStore {
	return &ChallengeStore{client: client}
}

func challengeKey(phone string) string { return keyPrefix + phone }

func (s *ChallengeStore) PutChallenge(ctx context.Context, c domain.Challenge) error {
	key := challengeKey(c.Phone)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"secret", c.Secret,
			"issued_at", c.IssuedAt.UnixMilli(),
			"expires_at", c.ExpiresAt.UnixMilli(),
			"attempts", c.Attempts,
		)
		pipe.PExpireAt(ctx, key, c.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist challenge: %w", err)
	}
	return nil
}

func (s *ChallengeStore) GetChallenge(ctx context.Context, phone string) (domain.Challenge, error) {
	fields, err := s.client.HGetAll(ctx, challengeKey(phone)).Result()
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("load challenge: %w", err)
	}
	if len(fields) == 0 {
		return domain.Challenge{}, store.ErrNotFound
	}
	return decodeChallenge(phone, fields)
}

func (s *ChallengeStore) IncrementChallengeAttempts(ctx context.Context, phone string) (domain.Challenge, error) {
	n, err := incrementScript.Run(ctx, s.client, []string{challengeKey(phone)}).Int()
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("increment attempts: %w", err)
	}
	if n < 0 {
		return domain.Challenge{}, store.ErrNotFound
	}
	return s.GetChallenge(ctx, phone)
}

func (s *ChallengeStore) DeleteChallenge(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, challengeKey(phone)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

// DeleteExpiredChallenges is a no-op; Redis evicts expired keys itself.
func (s *ChallengeStore) DeleteExpiredChallenges(context.Context) error { return nil }

func decodeChallenge(phone string, fields map[string]string) (domain.Challenge, error) {
	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("decode issued_at: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("decode expires_at: %w", err)
	}
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("decode attempts: %w", err)
	}
	return domain.Challenge{
		Phone:     phone,
		Secret:    fields["secret"],
		IssuedAt:  time.UnixMilli(issued).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
		Attempts:  attempts,
	}, nil
}

// Ping reports whether Redis is reachable; used by readiness checks.
func (s *ChallengeStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
