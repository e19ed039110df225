package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// PostgreSQLOrgMasterKeyRepository implements organization master key
// persistence for PostgreSQL. Only the keeper-sealed ciphertext is stored;
// the transient plaintext field never touches the database.
type PostgreSQLOrgMasterKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLOrgMasterKeyRepository creates a new PostgreSQL organization
// master key repository.
func NewPostgreSQLOrgMasterKeyRepository(db *sql.DB) *PostgreSQLOrgMasterKeyRepository {
	return &PostgreSQLOrgMasterKeyRepository{db: db}
}

// Create inserts a new master key version. One version per organization is
// active at a time, enforced by a unique (org_id, version) constraint.
func (p *PostgreSQLOrgMasterKeyRepository) Create(ctx context.Context, key *keysDomain.OrganizationMasterKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO organization_master_keys (id, org_id, encrypted_key, keeper_uri, version, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.OrgID,
		key.EncryptedKey,
		key.KeeperURI,
		key.Version,
		key.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "organization master key version already exists")
		}
		return apperrors.Wrap(err, "failed to create organization master key")
	}
	return nil
}

// GetActiveByOrg retrieves the newest master key version for an organization.
func (p *PostgreSQLOrgMasterKeyRepository) GetActiveByOrg(
	ctx context.Context,
	orgID uuid.UUID,
) (*keysDomain.OrganizationMasterKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, org_id, encrypted_key, keeper_uri, version, created_at
			  FROM organization_master_keys WHERE org_id = $1 ORDER BY version DESC LIMIT 1`

	row := querier.QueryRowContext(ctx, query, orgID)
	key, err := scanOrgMasterKey(row.Scan)
	if err != nil {
		if apperrors.Is(err, sql.ErrNoRows) {
			return nil, keysDomain.ErrOrgMasterKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get organization master key")
	}
	return key, nil
}

// DeleteOlderVersions removes every master key version older than the given
// one. Called after rotation has re-wrapped all dependent survey keys, which
// makes the old version cryptographically dead.
func (p *PostgreSQLOrgMasterKeyRepository) DeleteOlderVersions(
	ctx context.Context,
	orgID uuid.UUID,
	keepVersion uint,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM organization_master_keys WHERE org_id = $1 AND version < $2`

	if _, err := querier.ExecContext(ctx, query, orgID, keepVersion); err != nil {
		return apperrors.Wrap(err, "failed to delete old organization master keys")
	}
	return nil
}

// scanOrgMasterKey scans a single organization master key row.
func scanOrgMasterKey(scan func(dest ...any) error) (*keysDomain.OrganizationMasterKey, error) {
	var key keysDomain.OrganizationMasterKey
	err := scan(
		&key.ID,
		&key.OrgID,
		&key.EncryptedKey,
		&key.KeeperURI,
		&key.Version,
		&key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}
