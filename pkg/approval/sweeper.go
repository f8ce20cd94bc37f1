package approval

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper expires pending approval requests older than the TTL. Expiry is
// terminal and behaves as a denial without execution.
type Sweeper struct {
	store *Store
	ttl   time.Duration
	cron  *cron.Cron
}

// NewSweeper creates a sweeper over the approval store. A non-positive ttl
// disables expiry.
func NewSweeper(store *Store, ttl time.Duration) *Sweeper {
	return &Sweeper{store: store, ttl: ttl, cron: cron.New()}
}

// Start schedules the hourly sweep. No-op when expiry is disabled.
func (s *Sweeper) Start() error {
	if s.ttl <= 0 {
		log.Info().Msg("Approval expiry disabled")
		return nil
	}

	if _, err := s.cron.AddFunc("@hourly", func() {
		if err := s.Sweep(context.Background()); err != nil {
			log.Error().Err(err).Msg("Approval sweep failed")
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Info().Dur("ttl", s.ttl).Msg("Approval sweeper started")
	return nil
}

// Stop halts the schedule. Running sweeps finish.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep expires pending requests older than the TTL once
func (s *Sweeper) Sweep(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}

	expired, err := s.store.ExpireOlderThan(ctx, time.Now().Add(-s.ttl))
	if err != nil {
		return err
	}

	for _, req := range expired {
		log.Warn().
			Str("approval_id", req.ID).
			Str("run_id", req.RunID).
			Str("tool", req.ToolID).
			Msg("Pending approval expired")
	}
	if len(expired) > 0 {
		log.Info().Int("expired", len(expired)).Msg("Approval sweep completed")
	}
	return nil
}
