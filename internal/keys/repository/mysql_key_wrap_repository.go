package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// MySQLKeyWrapRepository implements key wrap persistence for MySQL.
//
// Same contract as the PostgreSQL repository; KDF parameters live in a JSON
// column and binary fields in VARBINARY/BLOB.
type MySQLKeyWrapRepository struct {
	db *sql.DB
}

// NewMySQLKeyWrapRepository creates a new MySQL key wrap repository.
func NewMySQLKeyWrapRepository(db *sql.DB) *MySQLKeyWrapRepository {
	return &MySQLKeyWrapRepository{db: db}
}

// Create inserts a new key wrap, surfacing duplicate (survey_id, factor_type)
// pairs as ErrConflict.
func (m *MySQLKeyWrapRepository) Create(ctx context.Context, wrap *keysDomain.KeyWrap) error {
	querier := database.GetTx(ctx, m.db)

	kdfParams, err := marshalKDFParams(wrap.KDFParams)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal kdf params")
	}

	query := `INSERT INTO key_wraps (id, survey_id, org_id, factor_type, algorithm, ciphertext, nonce, kdf_params, wrap_version, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		wrap.ID,
		wrap.SurveyID,
		wrap.OrgID,
		wrap.FactorType,
		wrap.Algorithm,
		wrap.Ciphertext,
		wrap.Nonce,
		kdfParams,
		wrap.WrapVersion,
		wrap.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "active key wrap already exists for factor")
		}
		return apperrors.Wrap(err, "failed to create key wrap")
	}
	return nil
}

// Get retrieves the active wrap for a survey and factor type.
func (m *MySQLKeyWrapRepository) Get(
	ctx context.Context,
	surveyID uuid.UUID,
	factorType keysDomain.FactorType,
) (*keysDomain.KeyWrap, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, survey_id, org_id, factor_type, algorithm, ciphertext, nonce, kdf_params, wrap_version, created_at
			  FROM key_wraps WHERE survey_id = ? AND factor_type = ?`

	row := querier.QueryRowContext(ctx, query, surveyID, factorType)
	wrap, err := scanKeyWrap(row.Scan)
	if err != nil {
		if apperrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "key wrap not found")
		}
		return nil, apperrors.Wrap(err, "failed to get key wrap")
	}
	return wrap, nil
}

// ListBySurvey retrieves all wraps for a survey, ordered by factor type.
func (m *MySQLKeyWrapRepository) ListBySurvey(
	ctx context.Context,
	surveyID uuid.UUID,
) ([]*keysDomain.KeyWrap, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, survey_id, org_id, factor_type, algorithm, ciphertext, nonce, kdf_params, wrap_version, created_at
			  FROM key_wraps WHERE survey_id = ? ORDER BY factor_type`

	rows, err := querier.QueryContext(ctx, query, surveyID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list key wraps")
	}
	defer func() { _ = rows.Close() }()

	return collectKeyWraps(rows)
}

// ListByOrg retrieves all org_master wraps belonging to an organization.
func (m *MySQLKeyWrapRepository) ListByOrg(
	ctx context.Context,
	orgID uuid.UUID,
) ([]*keysDomain.KeyWrap, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, survey_id, org_id, factor_type, algorithm, ciphertext, nonce, kdf_params, wrap_version, created_at
			  FROM key_wraps WHERE org_id = ? AND factor_type = ? ORDER BY survey_id`

	rows, err := querier.QueryContext(ctx, query, orgID, keysDomain.FactorOrgMaster)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list org key wraps")
	}
	defer func() { _ = rows.Close() }()

	return collectKeyWraps(rows)
}

// DeleteBySurvey removes every wrap for a survey.
func (m *MySQLKeyWrapRepository) DeleteBySurvey(ctx context.Context, surveyID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	query := `DELETE FROM key_wraps WHERE survey_id = ?`

	if _, err := querier.ExecContext(ctx, query, surveyID); err != nil {
		return apperrors.Wrap(err, "failed to delete key wraps")
	}
	return nil
}

// Delete removes a single wrap by ID.
func (m *MySQLKeyWrapRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	query := `DELETE FROM key_wraps WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrap(err, "failed to delete key wrap")
	}
	return nil
}

// ExistsForSurvey reports whether any wrap exists for the survey.
func (m *MySQLKeyWrapRepository) ExistsForSurvey(ctx context.Context, surveyID uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT EXISTS (SELECT 1 FROM key_wraps WHERE survey_id = ?)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, surveyID).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check key wrap existence")
	}
	return exists, nil
}
