package usecase

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically completes recovery requests whose time delay has
// elapsed. The sweep is idempotent, so overlapping runs or restarts are
// harmless.
type Sweeper struct {
	useCase  *RecoveryUseCase
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(useCase *RecoveryUseCase, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{useCase: useCase, interval: interval, logger: logger}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("starting recovery sweeper", slog.Duration("interval", s.interval))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Info("stopping recovery sweeper")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				if s.logger != nil {
					s.logger.Error("recovery sweep failed", slog.Any("error", err))
				}
			}
		}
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	completed, err := s.useCase.SweepDue(ctx)
	if err != nil {
		return err
	}
	if completed > 0 && s.logger != nil {
		s.logger.Info("completed recovery requests", slog.Int("count", completed))
	}
	return nil
}
