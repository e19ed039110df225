package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeOrgMasterUseCase struct {
	createErr   error
	rotateErr   error
	createCalls int
	rotateCalls int
	lastActor   string
	lastOrgID   uuid.UUID
}

func (f *fakeOrgMasterUseCase) CreateOrgMasterKey(_ context.Context, actor string, orgID uuid.UUID) error {
	f.createCalls++
	f.lastActor = actor
	f.lastOrgID = orgID
	return f.createErr
}

func (f *fakeOrgMasterUseCase) RotateOrgMasterKey(_ context.Context, actor string, orgID uuid.UUID) error {
	f.rotateCalls++
	f.lastActor = actor
	f.lastOrgID = orgID
	return f.rotateErr
}

func (f *fakeOrgMasterUseCase) ResolveOrgMasterKey(_ context.Context, _ uuid.UUID) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func TestRunCreateOrgMasterKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orgID := uuid.Must(uuid.NewV7())

	t.Run("success", func(t *testing.T) {
		fake := &fakeOrgMasterUseCase{}

		var out bytes.Buffer
		err := RunCreateOrgMasterKey(ctx, fake, logger, &out, orgID.String())
		require.NoError(t, err)
		require.Equal(t, 1, fake.createCalls)
		require.Equal(t, "cli", fake.lastActor)
		require.Equal(t, orgID, fake.lastOrgID)
		require.Contains(t, out.String(), orgID.String())
	})

	t.Run("invalid-org-id", func(t *testing.T) {
		fake := &fakeOrgMasterUseCase{}

		var out bytes.Buffer
		err := RunCreateOrgMasterKey(ctx, fake, logger, &out, "not-a-uuid")
		require.Error(t, err)
		require.Zero(t, fake.createCalls)
	})

	t.Run("use-case-error", func(t *testing.T) {
		fake := &fakeOrgMasterUseCase{createErr: errors.New("keeper unavailable")}

		var out bytes.Buffer
		err := RunCreateOrgMasterKey(ctx, fake, logger, &out, orgID.String())
		require.Error(t, err)
		require.Contains(t, err.Error(), "keeper unavailable")
	})
}

func TestRunRotateOrgMasterKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orgID := uuid.Must(uuid.NewV7())

	t.Run("success", func(t *testing.T) {
		fake := &fakeOrgMasterUseCase{}

		var out bytes.Buffer
		err := RunRotateOrgMasterKey(ctx, fake, logger, &out, orgID.String())
		require.NoError(t, err)
		require.Equal(t, 1, fake.rotateCalls)
		require.Contains(t, out.String(), "Rotated master key")
	})

	t.Run("invalid-org-id", func(t *testing.T) {
		fake := &fakeOrgMasterUseCase{}

		var out bytes.Buffer
		err := RunRotateOrgMasterKey(ctx, fake, logger, &out, "nope")
		require.Error(t, err)
		require.Zero(t, fake.rotateCalls)
	})
}
