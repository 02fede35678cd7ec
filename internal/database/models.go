package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/loadmap/api/internal/enum"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPENDING   OrderStatus = enum.OrderStatusPending
	OrderStatusENROUTE   OrderStatus = enum.OrderStatusEnRoute
	OrderStatusDELIVERED OrderStatus = enum.OrderStatusDelivered
)

type WeightMode string

const (
	WeightModeFIXED    WeightMode = enum.WeightModeFixed
	WeightModeVARIABLE WeightMode = enum.WeightModeVariable
)

type AccessLevel string

const (
	AccessLevelFULL     AccessLevel = enum.AccessLevelFull
	AccessLevelVIEWONLY AccessLevel = enum.AccessLevelViewOnly
)

type Product struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Description string          `db:"description" json:"description"`
	UnitWeight  decimal.Decimal `db:"unit_weight" json:"unit_weight"`
	WeightMode  WeightMode      `db:"weight_mode" json:"weight_mode"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Order is one addressable order line. ID is the business order number and
// repeats across split rows; RowID is the only unique handle.
type Order struct {
	RowID       uuid.UUID       `db:"row_id" json:"row_id"`
	ID          int64           `db:"order_id" json:"id"`
	ClientName  string          `db:"client_name" json:"client_name"`
	Region      string          `db:"region" json:"region"`
	Product     string          `db:"product" json:"product"`
	BoxCount    int64           `db:"box_count" json:"box_count"`
	TotalWeight decimal.Decimal `db:"total_weight" json:"total_weight"`
	Status      OrderStatus     `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

type LedgerEntry struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	OrderID         int64           `db:"order_id" json:"order_id"`
	ClientName      string          `db:"client_name" json:"client_name"`
	Region          string          `db:"region" json:"region"`
	Product         string          `db:"product" json:"product"`
	DeliveredBoxes  int64           `db:"delivered_boxes" json:"delivered_boxes"`
	DeliveredWeight decimal.Decimal `db:"delivered_weight" json:"delivered_weight"`
	Status          OrderStatus     `db:"status" json:"status"`
	DeliveredAt     time.Time       `db:"delivered_at" json:"delivered_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

type User struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	Login          string      `db:"login" json:"login"`
	HashedPassword string      `db:"hashed_password" json:"-"`
	FullName       string      `db:"full_name" json:"full_name"`
	AccessLevel    AccessLevel `db:"access_level" json:"access_level"`
	Modules        enum.Module `db:"modules" json:"modules"`
	IsActive       bool        `db:"is_active" json:"is_active"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

type AuditEntry struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Actor     string    `db:"actor" json:"actor"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
