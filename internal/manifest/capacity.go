package manifest

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCapacityKg is the truck limit used when none is configured.
var DefaultCapacityKg = decimal.NewFromInt(1500)

// CapacityCheck is advisory; callers decide whether to block the load.
type CapacityCheck struct {
	LimitKg  decimal.Decimal `json:"limit_kg"`
	TotalKg  decimal.Decimal `json:"total_kg"`
	ExcessKg decimal.Decimal `json:"excess_kg"`
	Exceeded bool            `json:"exceeded"`
}

// CheckCapacity compares the matrix grand total weight against limitKg.
// A non-positive limit falls back to DefaultCapacityKg.
func CheckCapacity(m *LoadMatrix, limitKg decimal.Decimal) CapacityCheck {
	if !limitKg.IsPositive() {
		limitKg = DefaultCapacityKg
	}
	c := CapacityCheck{LimitKg: limitKg, TotalKg: m.GrandTotalWeight, ExcessKg: decimal.Zero}
	if m.GrandTotalWeight.GreaterThan(limitKg) {
		c.Exceeded = true
		c.ExcessKg = m.GrandTotalWeight.Sub(limitKg)
	}
	return c
}

// Message is the operator-facing summary of the check.
func (c CapacityCheck) Message() string {
	if c.Exceeded {
		return fmt.Sprintf("load exceeded: reduce %s kg", c.ExcessKg.StringFixed(2))
	}
	return fmt.Sprintf("load ok: %s of %s kg", c.TotalKg.StringFixed(2), c.LimitKg.StringFixed(2))
}
