package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const ledgerColumns = `id, order_id, client_name, region, product, delivered_boxes, delivered_weight, status, delivered_at, updated_at`

const getLedgerEntry = `-- name: GetLedgerEntry :one
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE order_id = $1 AND product = $2
`

func (q *Queries) GetLedgerEntry(ctx context.Context, arg GetLedgerEntryParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, getLedgerEntry, arg.OrderID, arg.Product)
	return scanLedgerEntry(row)
}

const createLedgerEntry = `-- name: CreateLedgerEntry :one
INSERT INTO ledger_entries (id, order_id, client_name, region, product, delivered_boxes, delivered_weight, status, delivered_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'DELIVERED', $8, $8)
RETURNING ` + ledgerColumns

func (q *Queries) CreateLedgerEntry(ctx context.Context, arg CreateLedgerEntryParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, createLedgerEntry,
		uuid.New(),
		arg.OrderID,
		arg.ClientName,
		arg.Region,
		arg.Product,
		arg.DeliveredBoxes,
		decimalToNumeric(arg.DeliveredWeight),
		arg.DeliveredAt,
	)
	entry, err := scanLedgerEntry(row)
	return entry, mapPgError(err)
}

const addLedgerDelivery = `-- name: AddLedgerDelivery :one
UPDATE ledger_entries
SET delivered_boxes = delivered_boxes + $2,
    delivered_weight = delivered_weight + $3,
    updated_at = $4
WHERE id = $1
RETURNING ` + ledgerColumns

func (q *Queries) AddLedgerDelivery(ctx context.Context, arg AddLedgerDeliveryParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, addLedgerDelivery,
		arg.ID,
		arg.DeliveredBoxes,
		decimalToNumeric(arg.DeliveredWeight),
		arg.UpdatedAt,
	)
	return scanLedgerEntry(row)
}

const listLedgerEntries = `-- name: ListLedgerEntries :many
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE ($1::bigint = 0 OR order_id = $1::bigint)
  AND ($2::text = '' OR product = $2::text)
ORDER BY delivered_at DESC, order_id
`

func (q *Queries) ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]LedgerEntry, error) {
	rows, err := q.db.Query(ctx, listLedgerEntries, arg.OrderID, arg.Product)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LedgerEntry{}
	for rows.Next() {
		i, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanLedgerEntry(row rowScanner) (LedgerEntry, error) {
	var (
		i      LedgerEntry
		weight pgtype.Numeric
	)
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ClientName,
		&i.Region,
		&i.Product,
		&i.DeliveredBoxes,
		&weight,
		&i.Status,
		&i.DeliveredAt,
		&i.UpdatedAt,
	)
	i.DeliveredWeight = numericToDecimal(weight)
	return i, err
}
