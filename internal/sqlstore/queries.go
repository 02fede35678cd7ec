package sqlstore

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/loadmap/api/internal/database"
	"github.com/pkg/errors"
)

// ── products ──

const productColumns = `id, description, unit_weight, weight_mode, created_at`

func (q *queries) CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error) {
	p := database.Product{
		ID:          uuid.New(),
		Description: arg.Description,
		UnitWeight:  arg.UnitWeight.Round(database.WeightPlaces),
		WeightMode:  arg.WeightMode,
		CreatedAt:   q.now(),
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO products (id, description, unit_weight, weight_mode, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Description, p.UnitWeight, p.WeightMode, p.CreatedAt)
	if err != nil {
		return database.Product{}, mapErr(err, "insert product")
	}
	return p, nil
}

func (q *queries) ListProducts(ctx context.Context) ([]database.Product, error) {
	items := []database.Product{}
	err := sqlx.SelectContext(ctx, q.db, &items, `SELECT `+productColumns+` FROM products ORDER BY seq`)
	return items, mapErr(err, "list products")
}

func (q *queries) GetProductByDescription(ctx context.Context, description string) (database.Product, error) {
	var p database.Product
	err := sqlx.GetContext(ctx, q.db, &p,
		`SELECT `+productColumns+` FROM products WHERE description = ? ORDER BY seq LIMIT 1`, description)
	return p, mapErr(err, "get product")
}

// ── orders ──

const orderColumns = `row_id, order_id, client_name, region, product, box_count, total_weight, status, created_at, updated_at`

func (q *queries) NextOrderID(ctx context.Context) (int64, error) {
	var next int64
	err := sqlx.GetContext(ctx, q.db, &next, `
		SELECT COALESCE(MAX(order_id), 0) + 1 FROM (
			SELECT order_id FROM orders
			UNION ALL
			SELECT order_id FROM ledger_entries
		) ids`)
	return next, mapErr(err, "next order id")
}

func (q *queries) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	now := q.now()
	o := database.Order{
		RowID:       uuid.New(),
		ID:          arg.OrderID,
		ClientName:  arg.ClientName,
		Region:      arg.Region,
		Product:     arg.Product,
		BoxCount:    arg.BoxCount,
		TotalWeight: arg.TotalWeight.Round(database.WeightPlaces),
		Status:      arg.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO orders (row_id, order_id, client_name, region, product, box_count, total_weight, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RowID, o.ID, o.ClientName, o.Region, o.Product, o.BoxCount, o.TotalWeight, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return database.Order{}, mapErr(err, "insert order")
	}
	return o, nil
}

func (q *queries) GetOrder(ctx context.Context, rowID uuid.UUID) (database.Order, error) {
	var o database.Order
	err := sqlx.GetContext(ctx, q.db, &o, `SELECT `+orderColumns+` FROM orders WHERE row_id = ?`, rowID)
	return o, mapErr(err, "get order")
}

func (q *queries) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if arg.Status != "" {
		where = append(where, "status = ?")
		args = append(args, arg.Status)
	}
	if arg.Region != "" {
		where = append(where, "region = ?")
		args = append(args, arg.Region)
	}
	if arg.OrderID != 0 {
		where = append(where, "order_id = ?")
		args = append(args, arg.OrderID)
	}
	if len(arg.OrderIDs) > 0 {
		where = append(where, "order_id IN (?)")
		args = append(args, arg.OrderIDs)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expand order ids")
	}

	items := []database.Order{}
	err = sqlx.SelectContext(ctx, q.db, &items, q.db.Rebind(query), args...)
	return items, mapErr(err, "list orders")
}

func (q *queries) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE row_id = ? AND status = ?`,
		arg.Status, q.now(), arg.RowID, arg.ExpectedStatus)
	if err := gateResult(res, err, "update order status"); err != nil {
		return database.Order{}, err
	}
	return q.GetOrder(ctx, arg.RowID)
}

func (q *queries) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE orders
		SET client_name = ?, region = ?, product = ?, box_count = ?, total_weight = ?, updated_at = ?
		WHERE row_id = ? AND status = ?`,
		arg.ClientName, arg.Region, arg.Product, arg.BoxCount, arg.TotalWeight.Round(database.WeightPlaces), q.now(),
		arg.RowID, arg.ExpectedStatus)
	if err := gateResult(res, err, "update order"); err != nil {
		return database.Order{}, err
	}
	return q.GetOrder(ctx, arg.RowID)
}

func (q *queries) DeleteOrder(ctx context.Context, arg database.DeleteOrderParams) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM orders WHERE row_id = ? AND status = ?`, arg.RowID, arg.ExpectedStatus)
	return gateResult(res, err, "delete order")
}

// ── ledger ──

const ledgerColumns = `id, order_id, client_name, region, product, delivered_boxes, delivered_weight, status, delivered_at, updated_at`

func (q *queries) GetLedgerEntry(ctx context.Context, arg database.GetLedgerEntryParams) (database.LedgerEntry, error) {
	var e database.LedgerEntry
	err := sqlx.GetContext(ctx, q.db, &e,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE order_id = ? AND product = ?`, arg.OrderID, arg.Product)
	return e, mapErr(err, "get ledger entry")
}

func (q *queries) CreateLedgerEntry(ctx context.Context, arg database.CreateLedgerEntryParams) (database.LedgerEntry, error) {
	e := database.LedgerEntry{
		ID:              uuid.New(),
		OrderID:         arg.OrderID,
		ClientName:      arg.ClientName,
		Region:          arg.Region,
		Product:         arg.Product,
		DeliveredBoxes:  arg.DeliveredBoxes,
		DeliveredWeight: arg.DeliveredWeight.Round(database.WeightPlaces),
		Status:          database.OrderStatusDELIVERED,
		DeliveredAt:     arg.DeliveredAt,
		UpdatedAt:       arg.DeliveredAt,
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, order_id, client_name, region, product, delivered_boxes, delivered_weight, status, delivered_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrderID, e.ClientName, e.Region, e.Product, e.DeliveredBoxes, e.DeliveredWeight, e.Status, e.DeliveredAt, e.UpdatedAt)
	if err != nil {
		return database.LedgerEntry{}, mapErr(err, "insert ledger entry")
	}
	return e, nil
}

func (q *queries) AddLedgerDelivery(ctx context.Context, arg database.AddLedgerDeliveryParams) (database.LedgerEntry, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET delivered_boxes = delivered_boxes + ?, delivered_weight = delivered_weight + ?, updated_at = ?
		WHERE id = ?`,
		arg.DeliveredBoxes, arg.DeliveredWeight.Round(database.WeightPlaces), arg.UpdatedAt, arg.ID)
	if err := gateResult(res, err, "add ledger delivery"); err != nil {
		return database.LedgerEntry{}, err
	}
	var e database.LedgerEntry
	err = sqlx.GetContext(ctx, q.db, &e, `SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = ?`, arg.ID)
	return e, mapErr(err, "get ledger entry")
}

func (q *queries) ListLedgerEntries(ctx context.Context, arg database.ListLedgerEntriesParams) ([]database.LedgerEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	if arg.OrderID != 0 {
		where = append(where, "order_id = ?")
		args = append(args, arg.OrderID)
	}
	if arg.Product != "" {
		where = append(where, "product = ?")
		args = append(args, arg.Product)
	}
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY delivered_at DESC, order_id`

	items := []database.LedgerEntry{}
	err := sqlx.SelectContext(ctx, q.db, &items, query, args...)
	return items, mapErr(err, "list ledger entries")
}

// ── users ──

const userColumns = `id, login, hashed_password, full_name, access_level, modules, is_active, created_at, updated_at`

func (q *queries) GetUserByLogin(ctx context.Context, login string) (database.User, error) {
	var u database.User
	err := sqlx.GetContext(ctx, q.db, &u, `SELECT `+userColumns+` FROM users WHERE login = ? AND is_active = ?`, login, true)
	return u, mapErr(err, "get user")
}

func (q *queries) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	var u database.User
	err := sqlx.GetContext(ctx, q.db, &u, `SELECT `+userColumns+` FROM users WHERE id = ? AND is_active = ?`, id, true)
	return u, mapErr(err, "get user")
}

func (q *queries) CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
	now := q.now()
	u := database.User{
		ID:             uuid.New(),
		Login:          arg.Login,
		HashedPassword: arg.HashedPassword,
		FullName:       arg.FullName,
		AccessLevel:    arg.AccessLevel,
		Modules:        arg.Modules,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, login, hashed_password, full_name, access_level, modules, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Login, u.HashedPassword, u.FullName, u.AccessLevel, int64(u.Modules), u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return database.User{}, mapErr(err, "insert user")
	}
	return u, nil
}

func (q *queries) ListUsers(ctx context.Context) ([]database.User, error) {
	items := []database.User{}
	err := sqlx.SelectContext(ctx, q.db, &items, `SELECT `+userColumns+` FROM users WHERE is_active = ? ORDER BY login`, true)
	return items, mapErr(err, "list users")
}

// ── audit ──

func (q *queries) CreateAuditEntry(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error) {
	e := database.AuditEntry{
		ID:        uuid.New(),
		Actor:     arg.Actor,
		Action:    arg.Action,
		Details:   arg.Details,
		CreatedAt: q.now(),
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor, action, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Actor, e.Action, e.Details, e.CreatedAt)
	if err != nil {
		return database.AuditEntry{}, mapErr(err, "insert audit entry")
	}
	return e, nil
}

func (q *queries) ListAuditEntries(ctx context.Context, limit int32) ([]database.AuditEntry, error) {
	items := []database.AuditEntry{}
	err := sqlx.SelectContext(ctx, q.db, &items,
		`SELECT id, actor, action, details, created_at FROM audit_log ORDER BY seq DESC LIMIT ?`, limit)
	return items, mapErr(err, "list audit entries")
}

// gateResult turns a zero-row status-gated write into database.ErrNoRows.
func gateResult(res interface{ RowsAffected() (int64, error) }, err error, msg string) error {
	if err != nil {
		return mapErr(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return database.ErrNoRows
	}
	return nil
}
