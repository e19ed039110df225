package repository

import (
	"context"
	"database/sql"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

// MySQLAuditRepository implements append-only audit entry persistence for
// MySQL.
type MySQLAuditRepository struct {
	db *sql.DB
}

// NewMySQLAuditRepository creates a new MySQL audit repository.
func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{db: db}
}

// Create appends one entry to the ledger.
func (m *MySQLAuditRepository) Create(ctx context.Context, entry *auditDomain.Entry) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO audit_entries (id, seq, prev_hash, this_hash, actor, action, subject_ref, detail, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.Seq,
		entry.PrevHash,
		entry.ThisHash,
		entry.Actor,
		entry.Action,
		entry.SubjectRef,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to append audit entry")
	}
	return nil
}

// GetHead retrieves the highest-sequence entry.
func (m *MySQLAuditRepository) GetHead(ctx context.Context) (*auditDomain.Entry, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, seq, prev_hash, this_hash, actor, action, subject_ref, detail, created_at
			  FROM audit_entries ORDER BY seq DESC LIMIT 1`

	row := querier.QueryRowContext(ctx, query)
	entry, err := scanEntry(row.Scan)
	if err != nil {
		if apperrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "audit ledger is empty")
		}
		return nil, apperrors.Wrap(err, "failed to get audit head")
	}
	return entry, nil
}

// List retrieves up to limit entries with seq greater than afterSeq.
func (m *MySQLAuditRepository) List(ctx context.Context, afterSeq uint64, limit int) ([]*auditDomain.Entry, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, seq, prev_hash, this_hash, actor, action, subject_ref, detail, created_at
			  FROM audit_entries WHERE seq > ? ORDER BY seq ASC LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}

// ListBySubject retrieves the newest entries referencing a subject.
func (m *MySQLAuditRepository) ListBySubject(ctx context.Context, subjectRef string, limit int) ([]*auditDomain.Entry, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, seq, prev_hash, this_hash, actor, action, subject_ref, detail, created_at
			  FROM audit_entries WHERE subject_ref = ? ORDER BY seq DESC LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, subjectRef, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries by subject")
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}
