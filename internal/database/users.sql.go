package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/loadmap/api/internal/enum"
)

const userColumns = `id, login, hashed_password, full_name, access_level, modules, is_active, created_at, updated_at`

const getUserByLogin = `-- name: GetUserByLogin :one
SELECT ` + userColumns + `
FROM users
WHERE login = $1 AND is_active = true
`

func (q *Queries) GetUserByLogin(ctx context.Context, login string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByLogin, login)
	return scanUser(row)
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	return scanUser(row)
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (id, login, hashed_password, full_name, access_level, modules)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		uuid.New(),
		arg.Login,
		arg.HashedPassword,
		arg.FullName,
		arg.AccessLevel,
		int16(arg.Modules),
	)
	u, err := scanUser(row)
	return u, mapPgError(err)
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + `
FROM users
WHERE is_active = true
ORDER BY login
`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []User{}
	for rows.Next() {
		i, err := scanUser(rows)
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

func scanUser(row rowScanner) (User, error) {
	var (
		i       User
		modules int16
	)
	err := row.Scan(
		&i.ID,
		&i.Login,
		&i.HashedPassword,
		&i.FullName,
		&i.AccessLevel,
		&modules,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	i.Modules = enum.Module(modules)
	return i, err
}
