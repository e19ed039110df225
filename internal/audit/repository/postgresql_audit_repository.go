// Package repository implements persistence for the audit ledger. The
// repositories are deliberately append-only: there are no update or delete
// methods, and the backing tables carry no such statements anywhere in the
// codebase.
package repository

import (
	"context"
	"database/sql"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

// PostgreSQLAuditRepository implements append-only audit entry persistence
// for PostgreSQL. The seq column carries a unique constraint so two writers
// can never claim the same chain position.
type PostgreSQLAuditRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditRepository creates a new PostgreSQL audit repository.
func NewPostgreSQLAuditRepository(db *sql.DB) *PostgreSQLAuditRepository {
	return &PostgreSQLAuditRepository{db: db}
}

// Create appends one entry to the ledger.
func (p *PostgreSQLAuditRepository) Create(ctx context.Context, entry *auditDomain.Entry) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO audit_entries (id, seq, prev_hash, this_hash, actor, action, subject_ref, detail, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

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

// GetHead retrieves the highest-sequence entry, or ErrNotFound on an empty
// ledger.
func (p *PostgreSQLAuditRepository) GetHead(ctx context.Context) (*auditDomain.Entry, error) {
	querier := database.GetTx(ctx, p.db)

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

// List retrieves up to limit entries with seq greater than afterSeq, in
// ascending order. Chain verification pages through the ledger with this.
func (p *PostgreSQLAuditRepository) List(ctx context.Context, afterSeq uint64, limit int) ([]*auditDomain.Entry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, seq, prev_hash, this_hash, actor, action, subject_ref, detail, created_at
			  FROM audit_entries WHERE seq > $1 ORDER BY seq ASC LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}

// ListBySubject retrieves the newest entries referencing a subject.
func (p *PostgreSQLAuditRepository) ListBySubject(ctx context.Context, subjectRef string, limit int) ([]*auditDomain.Entry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, seq, prev_hash, this_hash, actor, action, subject_ref, detail, created_at
			  FROM audit_entries WHERE subject_ref = $1 ORDER BY seq DESC LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, subjectRef, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries by subject")
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}

func scanEntry(scan func(dest ...any) error) (*auditDomain.Entry, error) {
	var entry auditDomain.Entry
	err := scan(
		&entry.ID,
		&entry.Seq,
		&entry.PrevHash,
		&entry.ThisHash,
		&entry.Actor,
		&entry.Action,
		&entry.SubjectRef,
		&entry.Detail,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func collectEntries(rows *sql.Rows) ([]*auditDomain.Entry, error) {
	var entries []*auditDomain.Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
