package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `row_id, order_id, client_name, region, product, box_count, total_weight, status, created_at, updated_at`

const nextOrderID = `-- name: NextOrderID :one
SELECT COALESCE(MAX(order_id), 0) + 1
FROM (
    SELECT order_id FROM orders
    UNION ALL
    SELECT order_id FROM ledger_entries
) ids
`

func (q *Queries) NextOrderID(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, nextOrderID)
	var next int64
	err := row.Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (row_id, order_id, client_name, region, product, box_count, total_weight, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		uuid.New(),
		arg.OrderID,
		arg.ClientName,
		arg.Region,
		arg.Product,
		arg.BoxCount,
		decimalToNumeric(arg.TotalWeight),
		arg.Status,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE row_id = $1
`

func (q *Queries) GetOrder(ctx context.Context, rowID uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, rowID)
	return scanOrder(row)
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text = '' OR status = $1::text)
  AND ($2::text = '' OR region = $2::text)
  AND ($3::bigint = 0 OR order_id = $3::bigint)
  AND (cardinality($4::bigint[]) = 0 OR order_id = ANY($4::bigint[]))
ORDER BY seq
`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	ids := arg.OrderIDs
	if ids == nil {
		ids = []int64{}
	}
	rows, err := q.db.Query(ctx, listOrders, string(arg.Status), arg.Region, arg.OrderID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2, updated_at = now()
WHERE row_id = $1 AND status = $3
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.RowID, arg.Status, arg.ExpectedStatus)
	return scanOrder(row)
}

const updateOrder = `-- name: UpdateOrder :one
UPDATE orders
SET client_name = $2, region = $3, product = $4, box_count = $5, total_weight = $6, updated_at = now()
WHERE row_id = $1 AND status = $7
RETURNING ` + orderColumns

func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrder,
		arg.RowID,
		arg.ClientName,
		arg.Region,
		arg.Product,
		arg.BoxCount,
		decimalToNumeric(arg.TotalWeight),
		arg.ExpectedStatus,
	)
	return scanOrder(row)
}

const deleteOrder = `-- name: DeleteOrder :exec
DELETE FROM orders
WHERE row_id = $1 AND status = $2
`

func (q *Queries) DeleteOrder(ctx context.Context, arg DeleteOrderParams) error {
	tag, err := q.db.Exec(ctx, deleteOrder, arg.RowID, arg.ExpectedStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		i           Order
		totalWeight pgtype.Numeric
	)
	err := row.Scan(
		&i.RowID,
		&i.ID,
		&i.ClientName,
		&i.Region,
		&i.Product,
		&i.BoxCount,
		&totalWeight,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	i.TotalWeight = numericToDecimal(totalWeight)
	return i, err
}
