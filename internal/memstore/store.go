// Package memstore is an in-process database.Store for development and tests.
// Data lives only as long as the process.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loadmap/api/internal/database"
)

// Store guards a state with a single mutex. ExecTx works on a copy and swaps
// it in only when fn succeeds, so a failed transaction leaves no trace.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: &state{now: func() time.Time { return time.Now().UTC() }}}
}

// SetClock replaces the time source. Tests use it to pin timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.now = now
}

func (s *Store) ExecTx(ctx context.Context, fn func(database.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateProduct(ctx, arg)
}

func (s *Store) ListProducts(ctx context.Context) ([]database.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListProducts(ctx)
}

func (s *Store) GetProductByDescription(ctx context.Context, description string) (database.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetProductByDescription(ctx, description)
}

func (s *Store) NextOrderID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.NextOrderID(ctx)
}

func (s *Store) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateOrder(ctx, arg)
}

func (s *Store) GetOrder(ctx context.Context, rowID uuid.UUID) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetOrder(ctx, rowID)
}

func (s *Store) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListOrders(ctx, arg)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateOrderStatus(ctx, arg)
}

func (s *Store) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateOrder(ctx, arg)
}

func (s *Store) DeleteOrder(ctx context.Context, arg database.DeleteOrderParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteOrder(ctx, arg)
}

func (s *Store) GetLedgerEntry(ctx context.Context, arg database.GetLedgerEntryParams) (database.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetLedgerEntry(ctx, arg)
}

func (s *Store) CreateLedgerEntry(ctx context.Context, arg database.CreateLedgerEntryParams) (database.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateLedgerEntry(ctx, arg)
}

func (s *Store) AddLedgerDelivery(ctx context.Context, arg database.AddLedgerDeliveryParams) (database.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.AddLedgerDelivery(ctx, arg)
}

func (s *Store) ListLedgerEntries(ctx context.Context, arg database.ListLedgerEntriesParams) ([]database.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListLedgerEntries(ctx, arg)
}

func (s *Store) GetUserByLogin(ctx context.Context, login string) (database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetUserByLogin(ctx, login)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetUserByID(ctx, id)
}

func (s *Store) CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateUser(ctx, arg)
}

func (s *Store) ListUsers(ctx context.Context) ([]database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListUsers(ctx)
}

func (s *Store) CreateAuditEntry(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateAuditEntry(ctx, arg)
}

func (s *Store) ListAuditEntries(ctx context.Context, limit int32) ([]database.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListAuditEntries(ctx, limit)
}

var _ database.Store = (*Store)(nil)
