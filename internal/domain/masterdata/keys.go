package masterdata

import (
	"fmt"
	"strings"
)

// Entity names a cached entity type. The value doubles as the URL segment and
// configuration key.
type Entity string

const (
	EntityProducts           Entity = "products"
	EntityBusinessPartners   Entity = "business-partners"
	EntityWarehouses         Entity = "warehouses"
	EntityGLAccounts         Entity = "gl-accounts"
	EntityCostCentres        Entity = "cost-centres"
	EntityPrices             Entity = "prices"
	EntityWarehouseStock     Entity = "warehouse-stock"
	EntityInventoryTransfers Entity = "inventory-transfers"
	EntityIncomingPayments   Entity = "incoming-payments"
)

// AllEntities lists every cached entity in a stable order
func AllEntities() []Entity {
	return []Entity{
		EntityProducts,
		EntityBusinessPartners,
		EntityWarehouses,
		EntityGLAccounts,
		EntityCostCentres,
		EntityPrices,
		EntityWarehouseStock,
		EntityInventoryTransfers,
		EntityIncomingPayments,
	}
}

// ParseEntity validates an entity name
func ParseEntity(s string) (Entity, error) {
	for _, e := range AllEntities() {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
}

// Scoped reports whether the entity is cached per sub-scope (warehouse, price list)
func (e Entity) Scoped() bool {
	return e == EntityPrices || e == EntityWarehouseStock
}

// String returns the entity name
func (e Entity) String() string {
	return string(e)
}

var cacheKeyPrefixes = map[Entity]string{
	EntityProducts:           "Products",
	EntityBusinessPartners:   "BusinessPartners",
	EntityWarehouses:         "Warehouses",
	EntityGLAccounts:         "GLAccounts",
	EntityCostCentres:        "CostCentres",
	EntityPrices:             "Prices",
	EntityWarehouseStock:     "WarehouseStock",
	EntityInventoryTransfers: "InventoryTransfers",
	EntityIncomingPayments:   "IncomingPayments",
}

// CacheKey returns the sync ledger key for an entity and optional scope,
// e.g. "Products" or "WarehouseStock_WH01".
func CacheKey(e Entity, scope string) string {
	prefix := cacheKeyPrefixes[e]
	if scope == "" {
		return prefix
	}
	return prefix + "_" + scope
}

// ValidateScope checks that scope is present exactly when the entity is scoped
func ValidateScope(e Entity, scope string) error {
	scope = strings.TrimSpace(scope)
	switch {
	case e.Scoped() && scope == "":
		return fmt.Errorf("%w: %s requires a scope", ErrInvalidScope, e)
	case !e.Scoped() && scope != "":
		return fmt.Errorf("%w: %s is not scoped", ErrInvalidScope, e)
	case strings.ContainsAny(scope, "/ \t"):
		return fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	return nil
}
