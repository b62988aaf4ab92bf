package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/edumall/edumall/internal/identity/store"
)

// HousekeepingService periodically deletes expired refresh tokens and OTP
// challenges.
type HousekeepingService struct {
	Store      store.Store
	Challenges store.ChallengeStore
	Logger     *slog.Logger
	Interval   time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(
	st store.Store,
	challenges store.ChallengeStore,
	logger *slog.Logger,
	interval time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:      st,
		Challenges: challenges,
		Logger:     logger,
		Interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop() to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each deletion independently; one failing doesn't stop the rest.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()

	var ok int

	if err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx); err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
	} else {
		ok++
	}

	if err := s.Challenges.DeleteExpiredChallenges(ctx); err != nil {
		s.Logger.Error("failed to delete expired otp challenges", "error", err)
	} else {
		ok++
	}

	s.Logger.Debug("housekeeping cleanup completed", "successful_cleanups", ok)
}
