package commands

import (
	"context"
	"fmt"
	"log/slog"

	recoveryUseCase "github.com/opensurvey/keyvault/internal/recovery/usecase"
)

// RunSweepRecovery performs a single pass over recovery requests whose time
// delay has elapsed and completes them. The server runs the same sweep
// periodically; this command exists for operators who need to force one.
func RunSweepRecovery(
	ctx context.Context,
	sweeper *recoveryUseCase.Sweeper,
	logger *slog.Logger,
) error {
	logger.Info("running recovery sweep")

	if err := sweeper.RunOnce(ctx); err != nil {
		return fmt.Errorf("recovery sweep failed: %w", err)
	}

	logger.Info("recovery sweep completed")
	return nil
}
