package testutil

import (
	"context"
	"io"
	"log/slog"

	"github.com/opensurvey/keyvault/internal/database"
)

// NewTestLogger returns a logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noopTxManager satisfies database.TxManager without opening transactions.
// Used with in-memory repositories in use case tests.
type noopTxManager struct{}

func (noopTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// NoopTxManager returns a TxManager that runs the function directly on the
// ambient connection.
func NoopTxManager() database.TxManager {
	return noopTxManager{}
}
