package enum

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusEnRoute   = "EN_ROUTE"
	OrderStatusDelivered = "DELIVERED"
)

// ── Group B: Catalog ──

const (
	WeightModeFixed    = "FIXED"
	WeightModeVariable = "VARIABLE"
)

// ── Group C: Access ──

const (
	AccessLevelFull     = "FULL"
	AccessLevelViewOnly = "VIEW_ONLY"
)

// Module is a bit set of the screens a user may open.
type Module uint8

const (
	ModuleOrders Module = 1 << iota
	ModuleLoads
	ModuleLogs

	ModuleAll = ModuleOrders | ModuleLoads | ModuleLogs
)

var moduleNames = map[string]Module{
	"ORDERS": ModuleOrders,
	"LOADS":  ModuleLoads,
	"LOGS":   ModuleLogs,
	"ALL":    ModuleAll,
}

// Has reports whether every bit of want is set.
func (m Module) Has(want Module) bool {
	return want != 0 && m&want == want
}

// Names returns the single-module names contained in m, sorted.
func (m Module) Names() []string {
	var out []string
	for name, bit := range moduleNames {
		if bit == ModuleAll {
			continue
		}
		if m.Has(bit) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ParseModules parses a list such as "ORDERS,LOADS" or "all".
// Unknown names are reported through ok=false.
func ParseModules(names ...string) (Module, bool) {
	var m Module
	for _, raw := range names {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			bit, ok := moduleNames[part]
			if !ok {
				return 0, false
			}
			m |= bit
		}
	}
	return m, true
}

// MarshalJSON encodes m as its list of names.
func (m Module) MarshalJSON() ([]byte, error) {
	names := m.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// UnmarshalJSON accepts a list of names or a comma separated string.
func (m *Module) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("modules: want a list of names: %w", err)
		}
		names = []string{s}
	}
	parsed, ok := ParseModules(names...)
	if !ok {
		return fmt.Errorf("modules: unknown name in %v", names)
	}
	*m = parsed
	return nil
}

// ── Group D: Audit actions (no DB constraint) ──

const (
	AuditOrderCreated      = "ORDER_CREATED"
	AuditOrderUpdated      = "ORDER_UPDATED"
	AuditOrderDeleted      = "ORDER_DELETED"
	AuditProductRegistered = "PRODUCT_REGISTERED"
	AuditLoadConfirmed     = "LOAD_CONFIRMED"
	AuditLoadCancelled     = "LOAD_CANCELLED"
	AuditDeliveryConfirmed = "DELIVERY_CONFIRMED"
	AuditUserCreated       = "USER_CREATED"
)

// ── Group E: Live feed event types ──

const (
	EventOrderCreated      = "order.created"
	EventLoadConfirmed     = "load.confirmed"
	EventLoadCancelled     = "load.cancelled"
	EventDeliveryConfirmed = "delivery.confirmed"
)
