package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (id, description, unit_weight, weight_mode)
VALUES ($1, $2, $3, $4)
RETURNING id, description, unit_weight, weight_mode, created_at
`

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		uuid.New(),
		arg.Description,
		decimalToNumeric(arg.UnitWeight),
		arg.WeightMode,
	)
	return scanProduct(row)
}

const listProducts = `-- name: ListProducts :many
SELECT id, description, unit_weight, weight_mode, created_at
FROM products
ORDER BY seq
`

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		i, err := scanProduct(rows)
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

// Duplicate descriptions are allowed; the first registered one wins.
const getProductByDescription = `-- name: GetProductByDescription :one
SELECT id, description, unit_weight, weight_mode, created_at
FROM products
WHERE description = $1
ORDER BY seq
LIMIT 1
`

func (q *Queries) GetProductByDescription(ctx context.Context, description string) (Product, error) {
	row := q.db.QueryRow(ctx, getProductByDescription, description)
	return scanProduct(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		i          Product
		unitWeight pgtype.Numeric
	)
	err := row.Scan(
		&i.ID,
		&i.Description,
		&unitWeight,
		&i.WeightMode,
		&i.CreatedAt,
	)
	i.UnitWeight = numericToDecimal(unitWeight)
	return i, err
}
