package database

import (
	"context"

	"github.com/google/uuid"
)

const createAuditEntry = `-- name: CreateAuditEntry :one
INSERT INTO audit_log (id, actor, action, details)
VALUES ($1, $2, $3, $4)
RETURNING id, actor, action, details, created_at
`

func (q *Queries) CreateAuditEntry(ctx context.Context, arg CreateAuditEntryParams) (AuditEntry, error) {
	row := q.db.QueryRow(ctx, createAuditEntry, uuid.New(), arg.Actor, arg.Action, arg.Details)
	var i AuditEntry
	err := row.Scan(
		&i.ID,
		&i.Actor,
		&i.Action,
		&i.Details,
		&i.CreatedAt,
	)
	return i, err
}

const listAuditEntries = `-- name: ListAuditEntries :many
SELECT id, actor, action, details, created_at
FROM audit_log
ORDER BY seq DESC
LIMIT $1
`

func (q *Queries) ListAuditEntries(ctx context.Context, limit int32) ([]AuditEntry, error) {
	rows, err := q.db.Query(ctx, listAuditEntries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []AuditEntry{}
	for rows.Next() {
		var i AuditEntry
		if err := rows.Scan(
			&i.ID,
			&i.Actor,
			&i.Action,
			&i.Details,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
