package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/rzn-members/internal/model"
	"github.com/sakif/rzn-members/internal/repository"
)

// MaxAuditPage caps a single audit log read.
const MaxAuditPage = 500

var _ repository.AuditRepository = (*auditRepo)(nil)

type auditRepo struct {
	q DBTX
	d dialect
}

func (r *auditRepo) Append(ctx context.Context, e model.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, r.d.rebind(
		`INSERT INTO audit_log (actor_id, action, detail, origin, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		e.ActorID, e.Action, e.Detail, e.Origin, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqldb: appending audit entry %s: %w", e.Action, err)
	}
	return nil
}

// List returns the newest entries first.
func (r *auditRepo) List(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 || limit > MaxAuditPage {
		limit = MaxAuditPage
	}

	rows, err := r.q.QueryContext(ctx, r.d.rebind(
		`SELECT id, actor_id, action, detail, origin, created_at
		 FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing audit log: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Detail, &e.Origin, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqldb: scanning audit row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating audit rows: %w", err)
	}
	return entries, nil
}
