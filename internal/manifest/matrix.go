// Package manifest pivots a selection of pending orders into a client×product
// load matrix with box and weight totals.
package manifest

import (
	"cmp"
	"errors"
	"slices"

	"github.com/loadmap/api/internal/apperr"
	"github.com/loadmap/api/internal/database"
	"github.com/shopspring/decimal"
)

// Labels of the derived column and the two summary rows.
const (
	TotalBoxes    = "TOTAL_BOXES"
	TotalWeightKg = "TOTAL_WEIGHT_KG"
)

// Catalog is a read-only product lookup. The first registered product wins
// when descriptions repeat.
type Catalog map[string]database.Product

// NewCatalog indexes products in registration order.
func NewCatalog(products []database.Product) Catalog {
	c := make(Catalog, len(products))
	for _, p := range products {
		if _, ok := c[p.Description]; !ok {
			c[p.Description] = p
		}
	}
	return c
}

// RowKey identifies one matrix row. Client alone is not unique and the order
// id can repeat after splits, so both are needed.
type RowKey struct {
	OrderID int64  `json:"order_id"`
	Client  string `json:"client"`
}

// Row holds box counts aligned with LoadMatrix.Columns.
type Row struct {
	RowKey
	Boxes      []int64 `json:"boxes"`
	TotalBoxes int64   `json:"total_boxes"`
}

// LoadMatrix is the pivot of a load. BoxTotals and WeightTotals are the
// TOTAL_BOXES and TOTAL_WEIGHT_KG summary rows; the weight row's TOTAL_BOXES
// cell carries GrandTotalWeight.
type LoadMatrix struct {
	Columns          []string          `json:"columns"`
	Rows             []Row             `json:"rows"`
	BoxTotals        []int64           `json:"box_totals"`
	WeightTotals     []decimal.Decimal `json:"weight_totals"`
	GrandTotalBoxes  int64             `json:"grand_total_boxes"`
	GrandTotalWeight decimal.Decimal   `json:"grand_total_weight"`
}

// Cell returns the box count at (key, product), zero when absent.
func (m *LoadMatrix) Cell(key RowKey, product string) int64 {
	col := slices.Index(m.Columns, product)
	if col < 0 {
		return 0
	}
	for _, r := range m.Rows {
		if r.RowKey == key {
			return r.Boxes[col]
		}
	}
	return 0
}

// Build validates every order against the catalog and pivots them. Nothing is
// returned unless all orders are valid.
func Build(catalog Catalog, orders []database.Order) (*LoadMatrix, error) {
	if len(orders) == 0 {
		return nil, apperr.Validation(0, "", "no orders selected")
	}

	var errs []error
	for _, o := range orders {
		if err := validate(catalog, o); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	m := &LoadMatrix{GrandTotalWeight: decimal.Zero}

	for _, o := range orders {
		if !slices.Contains(m.Columns, o.Product) {
			m.Columns = append(m.Columns, o.Product)
		}
	}
	slices.Sort(m.Columns)

	colIndex := make(map[string]int, len(m.Columns))
	for i, c := range m.Columns {
		colIndex[c] = i
	}

	m.BoxTotals = make([]int64, len(m.Columns))
	m.WeightTotals = make([]decimal.Decimal, len(m.Columns))
	for i := range m.WeightTotals {
		m.WeightTotals[i] = decimal.Zero
	}

	rowIndex := make(map[RowKey]int)
	for _, o := range orders {
		key := RowKey{OrderID: o.ID, Client: o.ClientName}
		ri, ok := rowIndex[key]
		if !ok {
			ri = len(m.Rows)
			rowIndex[key] = ri
			m.Rows = append(m.Rows, Row{RowKey: key, Boxes: make([]int64, len(m.Columns))})
		}
		col := colIndex[o.Product]

		m.Rows[ri].Boxes[col] += o.BoxCount
		m.Rows[ri].TotalBoxes += o.BoxCount
		m.BoxTotals[col] += o.BoxCount
		m.WeightTotals[col] = m.WeightTotals[col].Add(o.TotalWeight)
		m.GrandTotalBoxes += o.BoxCount
		m.GrandTotalWeight = m.GrandTotalWeight.Add(o.TotalWeight)
	}

	slices.SortFunc(m.Rows, func(a, b Row) int {
		if c := cmp.Compare(a.OrderID, b.OrderID); c != 0 {
			return c
		}
		return cmp.Compare(a.Client, b.Client)
	})

	return m, nil
}

func validate(catalog Catalog, o database.Order) error {
	if o.Status != database.OrderStatusPENDING {
		return apperr.Validation(o.ID, o.Product, "status is %s, only PENDING orders can be loaded", o.Status)
	}
	if _, ok := catalog[o.Product]; !ok {
		return apperr.Validation(o.ID, o.Product, "product is not in the catalog")
	}
	if o.BoxCount < 0 {
		return apperr.Validation(o.ID, o.Product, "box count %d is negative", o.BoxCount)
	}
	if o.TotalWeight.IsNegative() {
		return apperr.Validation(o.ID, o.Product, "weight %s is negative", o.TotalWeight)
	}
	return nil
}
