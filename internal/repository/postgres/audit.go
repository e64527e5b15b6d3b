package postgres

import (
	"context"

	"github.com/inzira/inzira-go/internal/domain"
)

func (s *Store) AppendAudit(ctx context.Context, e *domain.AuditEntry) error {
	const op = "postgres.Store.AppendAudit"

	db := s.handle()

	err := db.QueryRow(ctx,
		`INSERT INTO audit_log(actor_id, action, target_type, target_id, details, created_at)
       	 VALUES ($1, $2, $3, $4, $5, $6)
     	 RETURNING id`,
		e.ActorID, e.Action, e.TargetType, e.TargetID, e.Details, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) ListAudit(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	const op = "postgres.Store.ListAudit"

	db := s.handle()

	rows, err := db.Query(ctx,
		`SELECT id, actor_id, action, target_type, target_id, COALESCE(details, ''), created_at
       	 FROM audit_log
      	 ORDER BY id DESC
      	 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(
			&e.ID, &e.ActorID, &e.Action, &e.TargetType,
			&e.TargetID, &e.Details, &e.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return entries, nil
}
