package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/loadmap/api/internal/database"
)

// state holds every table as insertion-ordered slices. It does no locking;
// Store serializes access to it.
type state struct {
	products []database.Product
	orders   []database.Order
	ledger   []database.LedgerEntry
	users    []database.User
	audit    []database.AuditEntry
	now      func() time.Time
}

func (st *state) clone() *state {
	return &state{
		products: slices.Clone(st.products),
		orders:   slices.Clone(st.orders),
		ledger:   slices.Clone(st.ledger),
		users:    slices.Clone(st.users),
		audit:    slices.Clone(st.audit),
		now:      st.now,
	}
}

func (st *state) CreateProduct(_ context.Context, arg database.CreateProductParams) (database.Product, error) {
	p := database.Product{
		ID:          uuid.New(),
		Description: arg.Description,
		UnitWeight:  arg.UnitWeight.Round(database.WeightPlaces),
		WeightMode:  arg.WeightMode,
		CreatedAt:   st.now(),
	}
	st.products = append(st.products, p)
	return p, nil
}

func (st *state) ListProducts(context.Context) ([]database.Product, error) {
	return slices.Clone(nonNil(st.products)), nil
}

func (st *state) GetProductByDescription(_ context.Context, description string) (database.Product, error) {
	for _, p := range st.products {
		if p.Description == description {
			return p, nil
		}
	}
	return database.Product{}, database.ErrNoRows
}

func (st *state) NextOrderID(context.Context) (int64, error) {
	var max int64
	for _, o := range st.orders {
		if o.ID > max {
			max = o.ID
		}
	}
	for _, e := range st.ledger {
		if e.OrderID > max {
			max = e.OrderID
		}
	}
	return max + 1, nil
}

func (st *state) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	now := st.now()
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
	st.orders = append(st.orders, o)
	return o, nil
}

func (st *state) orderIndex(rowID uuid.UUID) int {
	return slices.IndexFunc(st.orders, func(o database.Order) bool { return o.RowID == rowID })
}

func (st *state) GetOrder(_ context.Context, rowID uuid.UUID) (database.Order, error) {
	i := st.orderIndex(rowID)
	if i < 0 {
		return database.Order{}, database.ErrNoRows
	}
	return st.orders[i], nil
}

func (st *state) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	items := []database.Order{}
	for _, o := range st.orders {
		if arg.Status != "" && o.Status != arg.Status {
			continue
		}
		if arg.Region != "" && o.Region != arg.Region {
			continue
		}
		if arg.OrderID != 0 && o.ID != arg.OrderID {
			continue
		}
		if len(arg.OrderIDs) > 0 && !slices.Contains(arg.OrderIDs, o.ID) {
			continue
		}
		items = append(items, o)
	}
	return items, nil
}

// gated returns the index of rowID only when it currently has status want.
func (st *state) gated(rowID uuid.UUID, want database.OrderStatus) (int, error) {
	i := st.orderIndex(rowID)
	if i < 0 || st.orders[i].Status != want {
		return -1, database.ErrNoRows
	}
	return i, nil
}

func (st *state) UpdateOrderStatus(_ context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	i, err := st.gated(arg.RowID, arg.ExpectedStatus)
	if err != nil {
		return database.Order{}, err
	}
	st.orders[i].Status = arg.Status
	st.orders[i].UpdatedAt = st.now()
	return st.orders[i], nil
}

func (st *state) UpdateOrder(_ context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	i, err := st.gated(arg.RowID, arg.ExpectedStatus)
	if err != nil {
		return database.Order{}, err
	}
	o := &st.orders[i]
	o.ClientName = arg.ClientName
	o.Region = arg.Region
	o.Product = arg.Product
	o.BoxCount = arg.BoxCount
	o.TotalWeight = arg.TotalWeight.Round(database.WeightPlaces)
	o.UpdatedAt = st.now()
	return *o, nil
}

func (st *state) DeleteOrder(_ context.Context, arg database.DeleteOrderParams) error {
	i, err := st.gated(arg.RowID, arg.ExpectedStatus)
	if err != nil {
		return err
	}
	st.orders = slices.Delete(st.orders, i, i+1)
	return nil
}

func (st *state) GetLedgerEntry(_ context.Context, arg database.GetLedgerEntryParams) (database.LedgerEntry, error) {
	for _, e := range st.ledger {
		if e.OrderID == arg.OrderID && e.Product == arg.Product {
			return e, nil
		}
	}
	return database.LedgerEntry{}, database.ErrNoRows
}

func (st *state) CreateLedgerEntry(ctx context.Context, arg database.CreateLedgerEntryParams) (database.LedgerEntry, error) {
	if _, err := st.GetLedgerEntry(ctx, database.GetLedgerEntryParams{OrderID: arg.OrderID, Product: arg.Product}); err == nil {
		return database.LedgerEntry{}, database.ErrUniqueViolation
	}
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
	st.ledger = append(st.ledger, e)
	return e, nil
}

func (st *state) AddLedgerDelivery(_ context.Context, arg database.AddLedgerDeliveryParams) (database.LedgerEntry, error) {
	i := slices.IndexFunc(st.ledger, func(e database.LedgerEntry) bool { return e.ID == arg.ID })
	if i < 0 {
		return database.LedgerEntry{}, database.ErrNoRows
	}
	e := &st.ledger[i]
	e.DeliveredBoxes += arg.DeliveredBoxes
	e.DeliveredWeight = e.DeliveredWeight.Add(arg.DeliveredWeight.Round(database.WeightPlaces))
	e.UpdatedAt = arg.UpdatedAt
	return *e, nil
}

func (st *state) ListLedgerEntries(_ context.Context, arg database.ListLedgerEntriesParams) ([]database.LedgerEntry, error) {
	items := []database.LedgerEntry{}
	for _, e := range st.ledger {
		if arg.OrderID != 0 && e.OrderID != arg.OrderID {
			continue
		}
		if arg.Product != "" && e.Product != arg.Product {
			continue
		}
		items = append(items, e)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].DeliveredAt.Equal(items[j].DeliveredAt) {
			return items[i].DeliveredAt.After(items[j].DeliveredAt)
		}
		return items[i].OrderID < items[j].OrderID
	})
	return items, nil
}

func (st *state) GetUserByLogin(_ context.Context, login string) (database.User, error) {
	for _, u := range st.users {
		if u.Login == login && u.IsActive {
			return u, nil
		}
	}
	return database.User{}, database.ErrNoRows
}

func (st *state) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	for _, u := range st.users {
		if u.ID == id && u.IsActive {
			return u, nil
		}
	}
	return database.User{}, database.ErrNoRows
}

func (st *state) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	for _, u := range st.users {
		if u.Login == arg.Login {
			return database.User{}, database.ErrUniqueViolation
		}
	}
	now := st.now()
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
	st.users = append(st.users, u)
	return u, nil
}

func (st *state) ListUsers(context.Context) ([]database.User, error) {
	items := []database.User{}
	for _, u := range st.users {
		if u.IsActive {
			items = append(items, u)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Login < items[j].Login })
	return items, nil
}

func (st *state) CreateAuditEntry(_ context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error) {
	e := database.AuditEntry{
		ID:        uuid.New(),
		Actor:     arg.Actor,
		Action:    arg.Action,
		Details:   arg.Details,
		CreatedAt: st.now(),
	}
	st.audit = append(st.audit, e)
	return e, nil
}

func (st *state) ListAuditEntries(_ context.Context, limit int32) ([]database.AuditEntry, error) {
	items := []database.AuditEntry{}
	for i := len(st.audit) - 1; i >= 0 && int32(len(items)) < limit; i-- {
		items = append(items, st.audit[i])
	}
	return items, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
