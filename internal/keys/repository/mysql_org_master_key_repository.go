package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// MySQLOrgMasterKeyRepository implements organization master key persistence
// for MySQL.
type MySQLOrgMasterKeyRepository struct {
	db *sql.DB
}

// NewMySQLOrgMasterKeyRepository creates a new MySQL organization master key
// repository.
func NewMySQLOrgMasterKeyRepository(db *sql.DB) *MySQLOrgMasterKeyRepository {
	return &MySQLOrgMasterKeyRepository{db: db}
}

// Create inserts a new master key version.
func (m *MySQLOrgMasterKeyRepository) Create(ctx context.Context, key *keysDomain.OrganizationMasterKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO organization_master_keys (id, org_id, encrypted_key, keeper_uri, version, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

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
func (m *MySQLOrgMasterKeyRepository) GetActiveByOrg(
	ctx context.Context,
	orgID uuid.UUID,
) (*keysDomain.OrganizationMasterKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, org_id, encrypted_key, keeper_uri, version, created_at
			  FROM organization_master_keys WHERE org_id = ? ORDER BY version DESC LIMIT 1`

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

// DeleteOlderVersions removes every master key version older than the given one.
func (m *MySQLOrgMasterKeyRepository) DeleteOlderVersions(
	ctx context.Context,
	orgID uuid.UUID,
	keepVersion uint,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `DELETE FROM organization_master_keys WHERE org_id = ? AND version < ?`

	if _, err := querier.ExecContext(ctx, query, orgID, keepVersion); err != nil {
		return apperrors.Wrap(err, "failed to delete old organization master keys")
	}
	return nil
}
