package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	recoveryDomain "github.com/opensurvey/keyvault/internal/recovery/domain"
)

const mysqlDuplicateEntry = 1062

// MySQLRecoveryRepository implements recovery request persistence for MySQL.
// MySQL has no partial unique indexes, so the schema enforces the one active
// request per survey invariant with a generated active_survey_id column that
// is NULL once the request is terminal.
type MySQLRecoveryRepository struct {
	db *sql.DB
}

// NewMySQLRecoveryRepository creates a new MySQL recovery repository.
func NewMySQLRecoveryRepository(db *sql.DB) *MySQLRecoveryRepository {
	return &MySQLRecoveryRepository{db: db}
}

// Create inserts a new request, mapping duplicate active requests to
// ErrRequestAlreadyActive.
func (m *MySQLRecoveryRepository) Create(ctx context.Context, request *recoveryDomain.RecoveryRequest) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO recovery_requests (` + recoveryColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

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
		var myErr *mysql.MySQLError
		if apperrors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return recoveryDomain.ErrRequestAlreadyActive
		}
		return apperrors.Wrap(err, "failed to create recovery request")
	}
	return nil
}

// Get retrieves a request by ID.
func (m *MySQLRecoveryRepository) Get(ctx context.Context, id uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return m.get(ctx, id, "")
}

// GetForUpdate retrieves a request by ID with a row-level lock.
func (m *MySQLRecoveryRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return m.get(ctx, id, " FOR UPDATE")
}

func (m *MySQLRecoveryRepository) get(ctx context.Context, id uuid.UUID, suffix string) (*recoveryDomain.RecoveryRequest, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recoveryColumns + ` FROM recovery_requests WHERE id = ?` + suffix

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
// elapsed.
func (m *MySQLRecoveryRepository) ListDueForCompletion(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*recoveryDomain.RecoveryRequest, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recoveryColumns + ` FROM recovery_requests
			  WHERE state = ? AND objection_flag = FALSE AND time_delay_end <= ?
			  ORDER BY time_delay_end ASC LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, recoveryDomain.StateTimeDelay, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list due recovery requests")
	}
	defer func() { _ = rows.Close() }()

	return collectRequests(rows)
}

// UpdateState applies a transition with compare-and-swap on the previous
// state.
func (m *MySQLRecoveryRepository) UpdateState(
	ctx context.Context,
	request *recoveryDomain.RecoveryRequest,
	fromState recoveryDomain.State,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE recovery_requests
			  SET state = ?, verification_evidence_ref = ?, primary_approver_id = ?, secondary_approver_id = ?,
				  time_delay_start = ?, time_delay_end = ?, objection_flag = ?, terminal_at = ?
			  WHERE id = ? AND state = ?`

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
