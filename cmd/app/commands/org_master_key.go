package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	keysUseCase "github.com/opensurvey/keyvault/internal/keys/usecase"
)

// RunCreateOrgMasterKey mints the first master key version for an
// organization. The key is generated server side, sealed by the configured
// keeper and persisted; only a confirmation comes out.
func RunCreateOrgMasterKey(
	ctx context.Context,
	orgMasterUseCase keysUseCase.OrgMasterUseCase,
	logger *slog.Logger,
	writer io.Writer,
	orgIDStr string,
) error {
	orgID, err := uuid.Parse(orgIDStr)
	if err != nil {
		return fmt.Errorf("invalid org id: %w", err)
	}

	logger.Info("creating organization master key", slog.String("org_id", orgID.String()))

	if err := orgMasterUseCase.CreateOrgMasterKey(ctx, "cli", orgID); err != nil {
		return fmt.Errorf("failed to create organization master key: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Created master key version 1 for organization %s\n", orgID)
	return nil
}

// RunRotateOrgMasterKey rotates an organization's master key to a new version
// and rewraps every covered survey key under it.
func RunRotateOrgMasterKey(
	ctx context.Context,
	orgMasterUseCase keysUseCase.OrgMasterUseCase,
	logger *slog.Logger,
	writer io.Writer,
	orgIDStr string,
) error {
	orgID, err := uuid.Parse(orgIDStr)
	if err != nil {
		return fmt.Errorf("invalid org id: %w", err)
	}

	logger.Info("rotating organization master key", slog.String("org_id", orgID.String()))

	if err := orgMasterUseCase.RotateOrgMasterKey(ctx, "cli", orgID); err != nil {
		return fmt.Errorf("failed to rotate organization master key: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Rotated master key for organization %s\n", orgID)
	return nil
}
