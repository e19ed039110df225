// Package repository implements persistence for the survey key hierarchy.
//
// Only ciphertext ever reaches these repositories: key wraps are AEAD-sealed
// before they arrive and organization master keys are sealed by the KMS keeper.
// Each repository type has a PostgreSQL and a MySQL implementation; both join
// transactions propagated through the context via database.GetTx, which is how
// atomic wrap rotation is built.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// PostgreSQLKeyWrapRepository implements key wrap persistence for PostgreSQL.
//
// Wraps are keyed by (survey_id, factor_type) with a unique constraint, which
// enforces the at-most-one-active-wrap-per-factor invariant at the storage
// level. KDF parameters are stored as JSONB, binary fields as BYTEA.
type PostgreSQLKeyWrapRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyWrapRepository creates a new PostgreSQL key wrap repository.
func NewPostgreSQLKeyWrapRepository(db *sql.DB) *PostgreSQLKeyWrapRepository {
	return &PostgreSQLKeyWrapRepository{db: db}
}

// marshalKDFParams serializes KDF parameters for storage; nil params (direct
// key factors) are stored as NULL.
func marshalKDFParams(params *keysDomain.KDFParams) ([]byte, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}

// unmarshalKDFParams reverses marshalKDFParams.
func unmarshalKDFParams(raw []byte) (*keysDomain.KDFParams, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var params keysDomain.KDFParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// Create inserts a new key wrap. A duplicate (survey_id, factor_type) pair
// violates the unique active wrap invariant and surfaces as ErrConflict.
func (p *PostgreSQLKeyWrapRepository) Create(ctx context.Context, wrap *keysDomain.KeyWrap) error {
	querier := database.GetTx(ctx, p.db)

	kdfParams, err := marshalKDFParams(wrap.KDFParams)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal kdf params")
	}

	query := `INSERT INTO key_wraps (id, survey_id, org_id, factor_type, algorithm, ciphertext, nonce, kdf_params, wrap_version, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

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
func (p *PostgreSQLKeyWrapRepository) Get(
	ctx context.Context,
	surveyID uuid.UUID,
	factorType keysDomain.FactorType,
) (*keysDomain.KeyWrap, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, survey_id, org_id, factor_type, algorithm, ciphertext, nonce, kdf_params, wrap_version, created_at
			  FROM key_wraps WHERE survey_id = $1 AND factor_type = $2`

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
func (p *PostgreSQLKeyWrapRepository) ListBySurvey(
	ctx context.Context,
	surveyID uuid.UUID,
) ([]*keysDomain.KeyWrap, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, survey_id, org_id, factor_type, algorithm, ciphertext, nonce, kdf_params, wrap_version, created_at
			  FROM key_wraps WHERE survey_id = $1 ORDER BY factor_type`

	rows, err := querier.QueryContext(ctx, query, surveyID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list key wraps")
	}
	defer func() { _ = rows.Close() }()

	return collectKeyWraps(rows)
}

// ListByOrg retrieves all org_master wraps belonging to an organization, used
// to re-wrap dependent survey keys during master key rotation.
func (p *PostgreSQLKeyWrapRepository) ListByOrg(
	ctx context.Context,
	orgID uuid.UUID,
) ([]*keysDomain.KeyWrap, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, survey_id, org_id, factor_type, algorithm, ciphertext, nonce, kdf_params, wrap_version, created_at
			  FROM key_wraps WHERE org_id = $1 AND factor_type = $2 ORDER BY survey_id`

	rows, err := querier.QueryContext(ctx, query, orgID, keysDomain.FactorOrgMaster)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list org key wraps")
	}
	defer func() { _ = rows.Close() }()

	return collectKeyWraps(rows)
}

// DeleteBySurvey removes every wrap for a survey. Used inside the rotation
// transaction (erase all, insert replacements) and on hard deletion, where
// removing every wrap cryptographically erases the survey key.
func (p *PostgreSQLKeyWrapRepository) DeleteBySurvey(ctx context.Context, surveyID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM key_wraps WHERE survey_id = $1`

	if _, err := querier.ExecContext(ctx, query, surveyID); err != nil {
		return apperrors.Wrap(err, "failed to delete key wraps")
	}
	return nil
}

// Delete removes a single wrap by ID. Used to replace an org_master wrap
// during organization master key rotation.
func (p *PostgreSQLKeyWrapRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM key_wraps WHERE id = $1`

	if _, err := querier.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrap(err, "failed to delete key wrap")
	}
	return nil
}

// ExistsForSurvey reports whether any wrap exists for the survey. Survey keys
// are generated exactly once, so creation is refused when wraps already exist.
func (p *PostgreSQLKeyWrapRepository) ExistsForSurvey(ctx context.Context, surveyID uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT EXISTS (SELECT 1 FROM key_wraps WHERE survey_id = $1)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, surveyID).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check key wrap existence")
	}
	return exists, nil
}

// scanKeyWrap scans a single key wrap row.
func scanKeyWrap(scan func(dest ...any) error) (*keysDomain.KeyWrap, error) {
	var (
		wrap   keysDomain.KeyWrap
		rawKDF []byte
	)

	err := scan(
		&wrap.ID,
		&wrap.SurveyID,
		&wrap.OrgID,
		&wrap.FactorType,
		&wrap.Algorithm,
		&wrap.Ciphertext,
		&wrap.Nonce,
		&rawKDF,
		&wrap.WrapVersion,
		&wrap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	wrap.KDFParams, err = unmarshalKDFParams(rawKDF)
	if err != nil {
		return nil, err
	}
	return &wrap, nil
}

// collectKeyWraps drains rows into key wraps.
func collectKeyWraps(rows *sql.Rows) ([]*keysDomain.KeyWrap, error) {
	var wraps []*keysDomain.KeyWrap
	for rows.Next() {
		wrap, err := scanKeyWrap(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan key wrap")
		}
		wraps = append(wraps, wrap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return wraps, nil
}
