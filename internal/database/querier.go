package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loadmap/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Querier is the row-oriented table collaborator. Every backend (Postgres,
// MySQL/SQLite, memory) implements it. Writes against order rows are keyed by
// RowID and gated on ExpectedStatus; a gate miss returns ErrNoRows.
type Querier interface {
	CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetProductByDescription(ctx context.Context, description string) (Product, error)

	NextOrderID(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	GetOrder(ctx context.Context, rowID uuid.UUID) (Order, error)
	ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error)
	UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error)
	DeleteOrder(ctx context.Context, arg DeleteOrderParams) error

	GetLedgerEntry(ctx context.Context, arg GetLedgerEntryParams) (LedgerEntry, error)
	CreateLedgerEntry(ctx context.Context, arg CreateLedgerEntryParams) (LedgerEntry, error)
	AddLedgerDelivery(ctx context.Context, arg AddLedgerDeliveryParams) (LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]LedgerEntry, error)

	GetUserByLogin(ctx context.Context, login string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	CreateAuditEntry(ctx context.Context, arg CreateAuditEntryParams) (AuditEntry, error)
	ListAuditEntries(ctx context.Context, limit int32) ([]AuditEntry, error)
}

// Store is a Querier that can also run a function inside one transaction.
type Store interface {
	Querier
	ExecTx(ctx context.Context, fn func(Querier) error) error
}

type CreateProductParams struct {
	Description string
	UnitWeight  decimal.Decimal
	WeightMode  WeightMode
}

type CreateOrderParams struct {
	OrderID     int64
	ClientName  string
	Region      string
	Product     string
	BoxCount    int64
	TotalWeight decimal.Decimal
	Status      OrderStatus
}

// ListOrdersParams filters ListOrders. Zero values mean "any".
type ListOrdersParams struct {
	Status   OrderStatus
	Region   string
	OrderID  int64
	OrderIDs []int64
}

type UpdateOrderStatusParams struct {
	RowID          uuid.UUID
	Status         OrderStatus
	ExpectedStatus OrderStatus
}

type UpdateOrderParams struct {
	RowID          uuid.UUID
	ClientName     string
	Region         string
	Product        string
	BoxCount       int64
	TotalWeight    decimal.Decimal
	ExpectedStatus OrderStatus
}

type DeleteOrderParams struct {
	RowID          uuid.UUID
	ExpectedStatus OrderStatus
}

type GetLedgerEntryParams struct {
	OrderID int64
	Product string
}

type CreateLedgerEntryParams struct {
	OrderID         int64
	ClientName      string
	Region          string
	Product         string
	DeliveredBoxes  int64
	DeliveredWeight decimal.Decimal
	DeliveredAt     time.Time
}

type AddLedgerDeliveryParams struct {
	ID              uuid.UUID
	DeliveredBoxes  int64
	DeliveredWeight decimal.Decimal
	UpdatedAt       time.Time
}

// ListLedgerEntriesParams filters ListLedgerEntries. Zero values mean "any".
type ListLedgerEntriesParams struct {
	OrderID int64
	Product string
}

type CreateUserParams struct {
	Login          string
	HashedPassword string
	FullName       string
	AccessLevel    AccessLevel
	Modules        enum.Module
}

type CreateAuditEntryParams struct {
	Actor   string
	Action  string
	Details string
}
