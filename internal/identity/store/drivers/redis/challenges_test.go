package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/edumall/edumall/internal/identity/domain"
	"github.com/edumall/edumall/internal/identity/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*ChallengeStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewChallengeStore(client), mr
}

func TestChallengeRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, mr := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	c := domain.Challenge{
		Phone:     "9876543210",
		Secret:    "JBSWY3DPEHPK3PXP",
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
	require.NoError(t, s.PutChallenge(ctx, c))
	require.True(t, mr.Exists(challengeKey(c.Phone)))
	require.Greater(t, mr.TTL(challengeKey(c.Phone)), 4*time.Minute)

	got, err := s.GetChallenge(ctx, c.Phone)
	require.NoError(t, err)
	require.Equal(t, c.Secret, got.Secret)
	require.True(t, c.IssuedAt.Equal(got.IssuedAt))
	require.True(t, c.ExpiresAt.Equal(got.ExpiresAt))
	require.Zero(t, got.Attempts)

	got, err = s.IncrementChallengeAttempts(ctx, c.Phone)
	require.NoError(t, err)
	require.Equal(t, 1, got.Attempts)

	got, err = s.IncrementChallengeAttempts(ctx, c.Phone)
	require.NoError(t, err)
	require.Equal(t, 2, got.Attempts)

	// A resend replaces the challenge and its counter.
	require.NoError(t, s.PutChallenge(ctx, c))
	got, err = s.GetChallenge(ctx, c.Phone)
	require.NoError(t, err)
	require.Zero(t, got.Attempts)

	require.NoError(t, s.DeleteChallenge(ctx, c.Phone))
	_, err = s.GetChallenge(ctx, c.Phone)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestChallengeExpiresWithTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, mr := newTestStore(t)

	now := time.Now()
	require.NoError(t, s.PutChallenge(ctx, domain.Challenge{
		Phone:     "9123456789",
		Secret:    "JBSWY3DPEHPK3PXP",
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
	}))

	mr.FastForward(6 * time.Minute)

	_, err := s.GetChallenge(ctx, "9123456789")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.IncrementChallengeAttempts(ctx, "9123456789")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.False(t, mr.Exists(challengeKey("9123456789")))

	require.NoError(t, s.DeleteExpiredChallenges(ctx))
}
