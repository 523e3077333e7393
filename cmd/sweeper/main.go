package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"harambee/internal/adapter/repo"
	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/migrations"
)

type sweeper struct {
	donations domain.DonationStore
	logger    infra.Logger
	interval  time.Duration
	maxAge    time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "sweeper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweeper: db connection failed")
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("sweeper: failed to apply migrations")
	}

	s := &sweeper{
		donations: repo.NewDonationRepo(infra.NewSQLRunner(pool, logger)),
		logger:    logger,
		interval:  cfg.SweepInterval,
		maxAge:    cfg.PendingMaxAge,
	}

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("sweeper: stopped with error")
	}
	logger.Info().Msg("sweeper: stopped")
}

// Run fails pending donations whose callback never arrived within the
// configured window, then sleeps until the next tick. Each sweep is one
// bounded statement, so a missed tick only delays expiry.
func (s *sweeper) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("max_pending_age", s.maxAge).
		Msg("sweeper: started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		swept, err := s.donations.ExpireStale(ctx, s.maxAge)
		if err != nil {
			s.logger.Error().Err(err).Msg("sweeper: expire pass failed")
		} else if swept > 0 {
			s.logger.Info().Int64("swept", swept).Msg("sweeper: expired stale pending donations")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
