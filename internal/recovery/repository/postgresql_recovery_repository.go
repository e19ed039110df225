// Package repository implements recovery request persistence. The one
// active request per survey invariant lives in the schema (a partial unique
// index over non-terminal requests), and state changes go through a
// compare-and-swap on the current state so concurrent transitions fail
// safely instead of applying twice.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	recoveryDomain "github.com/opensurvey/keyvault/internal/recovery/domain"
)

const pgUniqueViolation = "23505"

const recoveryColumns = `id, survey_id, org_id, subject_user_id, state, verification_method, verification_evidence_ref,
	primary_approver_id, secondary_approver_id, time_delay_start, time_delay_end, objection_flag, created_at, terminal_at`

// PostgreSQLRecoveryRepository implements recovery request persistence for
// PostgreSQL.
type PostgreSQLRecoveryRepository struct {
	db *sql.DB
}

// NewPostgreSQLRecoveryRepository creates a new PostgreSQL recovery
// repository.
func NewPostgreSQLRecoveryRepository(db *sql.DB) *PostgreSQLRecoveryRepository {
	return &PostgreSQLRecoveryRepository{db: db}
}

// Create inserts a new request. A second non-terminal request for the same
// survey violates the partial unique index and maps to ErrRequestAlreadyActive.
func (p *PostgreSQLRecoveryRepository) Create(ctx context.Context, request *recoveryDomain.RecoveryRequest) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO recovery_requests (` + recoveryColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := querier.ExecContext(
		ctx,
		query,
		request.ID,
		request.SurveyID,
		request.OrgID,
		request.SubjectUserID,
		request.State,
		request.VerificationMethod,
		request.VerificationEvidenceRef,
		request.PrimaryApproverID,
		request.SecondaryApproverID,
		request.TimeDelayStart,
		request.TimeDelayEnd,
		request.ObjectionFlag,
		request.CreatedAt,
		request.TerminalAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if apperrors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return recoveryDomain.ErrRequestAlreadyActive
		}
		return apperrors.Wrap(err, "failed to create recovery request")
	}
	return nil
}

// Get retrieves a request by ID.
func (p *PostgreSQLRecoveryRepository) Get(ctx context.Context, id uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return p.get(ctx, id, "")
}

// GetForUpdate retrieves a request by ID with a row-level lock, serializing
// concurrent transitions on the same request. Must run inside a transaction.
func (p *PostgreSQLRecoveryRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return p.get(ctx, id, " FOR UPDATE")
}

func (p *PostgreSQLRecoveryRepository) get(ctx context.Context, id uuid.UUID, suffix string) (*recoveryDomain.RecoveryRequest, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recoveryColumns + ` FROM recovery_requests WHERE id = $1` + suffix

	row := querier.QueryRowContext(ctx, query, id)
	request, err := scanRequest(row.Scan)
	if err != nil {
		if apperrors.Is(err, sql.ErrNoRows) {
			return nil, recoveryDomain.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get recovery request")
	}
	return request, nil
}

// ListDueForCompletion retrieves requests in TIME_DELAY whose delay has
// elapsed, for the background sweep.
func (p *PostgreSQLRecoveryRepository) ListDueForCompletion(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*recoveryDomain.RecoveryRequest, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recoveryColumns + ` FROM recovery_requests
			  WHERE state = $1 AND objection_flag = FALSE AND time_delay_end <= $2
			  ORDER BY time_delay_end ASC LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, recoveryDomain.StateTimeDelay, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list due recovery requests")
	}
	defer func() { _ = rows.Close() }()

	return collectRequests(rows)
}

// UpdateState applies a transition with compare-and-swap on the previous
// state. It reports false, without error, when the request was no longer in
// fromState; the caller decides whether that is a race loss or a no-op.
func (p *PostgreSQLRecoveryRepository) UpdateState(
	ctx context.Context,
	request *recoveryDomain.RecoveryRequest,
	fromState recoveryDomain.State,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE recovery_requests
			  SET state = $1, verification_evidence_ref = $2, primary_approver_id = $3, secondary_approver_id = $4,
				  time_delay_start = $5, time_delay_end = $6, objection_flag = $7, terminal_at = $8
			  WHERE id = $9 AND state = $10`

	result, err := querier.ExecContext(
		ctx,
		query,
		request.State,
		request.VerificationEvidenceRef,
		request.PrimaryApproverID,
		request.SecondaryApproverID,
		request.TimeDelayStart,
		request.TimeDelayEnd,
		request.ObjectionFlag,
		request.TerminalAt,
		request.ID,
		fromState,
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to update recovery request")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read update result")
	}
	return affected == 1, nil
}

func scanRequest(scan func(dest ...any) error) (*recoveryDomain.RecoveryRequest, error) {
	var request recoveryDomain.RecoveryRequest
	err := scan(
		&request.ID,
		&request.SurveyID,
		&request.OrgID,
		&request.SubjectUserID,
		&request.State,
		&request.VerificationMethod,
		&request.VerificationEvidenceRef,
		&request.PrimaryApproverID,
		&request.SecondaryApproverID,
		&request.TimeDelayStart,
		&request.TimeDelayEnd,
		&request.ObjectionFlag,
		&request.CreatedAt,
		&request.TerminalAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func collectRequests(rows *sql.Rows) ([]*recoveryDomain.RecoveryRequest, error) {
	var requests []*recoveryDomain.RecoveryRequest
	for rows.Next() {
		request, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan recovery request")
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}
