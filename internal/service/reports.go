package service

import (
	"context"
	"sort"

	"github.com/loadmap/api/internal/apperr"
	"github.com/loadmap/api/internal/database"
	"github.com/shopspring/decimal"
)

// ReportStore defines the DB methods needed for reporting.
// Satisfied by every database.Querier.
type ReportStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListLedgerEntries(ctx context.Context, arg database.ListLedgerEntriesParams) ([]database.LedgerEntry, error)
}

// RegionLoad sums the pending work of one region.
type RegionLoad struct {
	Region   string          `json:"region"`
	Orders   int             `json:"orders"`
	Boxes    int64           `json:"boxes"`
	WeightKg decimal.Decimal `json:"weight_kg"`
}

// ProductDelivery sums everything delivered of one product.
type ProductDelivery struct {
	Product  string          `json:"product"`
	Boxes    int64           `json:"boxes"`
	WeightKg decimal.Decimal `json:"weight_kg"`
}

// ReportService answers simple aggregate questions over orders and ledger.
type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// PendingByRegion groups PENDING rows by region, sorted by region.
// Rows without a region are reported under "".
func (s *ReportService) PendingByRegion(ctx context.Context) ([]RegionLoad, error) {
	orders, err := s.store.ListOrders(ctx, database.ListOrdersParams{Status: database.OrderStatusPENDING})
	if err != nil {
		return nil, apperr.Storage(0, "", err)
	}

	byRegion := map[string]*RegionLoad{}
	for _, o := range orders {
		r, ok := byRegion[o.Region]
		if !ok {
			r = &RegionLoad{Region: o.Region, WeightKg: decimal.Zero}
			byRegion[o.Region] = r
		}
		r.Orders++
		r.Boxes += o.BoxCount
		r.WeightKg = r.WeightKg.Add(o.TotalWeight)
	}

	out := make([]RegionLoad, 0, len(byRegion))
	for _, r := range byRegion {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out, nil
}

// DeliveredByProduct sums the ledger per product, sorted by product.
func (s *ReportService) DeliveredByProduct(ctx context.Context) ([]ProductDelivery, error) {
	entries, err := s.store.ListLedgerEntries(ctx, database.ListLedgerEntriesParams{})
	if err != nil {
		return nil, apperr.Storage(0, "", err)
	}

	byProduct := map[string]*ProductDelivery{}
	for _, e := range entries {
		p, ok := byProduct[e.Product]
		if !ok {
			p = &ProductDelivery{Product: e.Product, WeightKg: decimal.Zero}
			byProduct[e.Product] = p
		}
		p.Boxes += e.DeliveredBoxes
		p.WeightKg = p.WeightKg.Add(e.DeliveredWeight)
	}

	out := make([]ProductDelivery, 0, len(byProduct))
	for _, p := range byProduct {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	return out, nil
}

// Ledger lists delivered entries, newest first.
func (s *ReportService) Ledger(ctx context.Context, orderID int64, product string) ([]database.LedgerEntry, error) {
	entries, err := s.store.ListLedgerEntries(ctx, database.ListLedgerEntriesParams{OrderID: orderID, Product: product})
	if err != nil {
		return nil, apperr.Storage(orderID, product, err)
	}
	return entries, nil
}
