package upstream

import (
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
)

// Products is the item master resource
func Products(c *Client) *Resource[masterdata.Product] {
	return NewResource(c, ResourceSpec[masterdata.Product]{
		Entity:    masterdata.EntityProducts.String(),
		Path:      "items",
		Timeout:   120 * time.Second,
		Normalize: (*masterdata.Product).Normalize,
	})
}

// BusinessPartners is the business partner resource
func BusinessPartners(c *Client) *Resource[masterdata.BusinessPartner] {
	return NewResource(c, ResourceSpec[masterdata.BusinessPartner]{
		Entity:    masterdata.EntityBusinessPartners.String(),
		Path:      "business-partners",
		Timeout:   120 * time.Second,
		Normalize: (*masterdata.BusinessPartner).Normalize,
	})
}

// Warehouses is the warehouse resource
func Warehouses(c *Client) *Resource[masterdata.Warehouse] {
	return NewResource(c, ResourceSpec[masterdata.Warehouse]{
		Entity:    masterdata.EntityWarehouses.String(),
		Path:      "warehouses",
		Timeout:   45 * time.Second,
		Normalize: (*masterdata.Warehouse).Normalize,
	})
}

// GLAccounts is the chart of accounts resource
func GLAccounts(c *Client) *Resource[masterdata.GLAccount] {
	return NewResource(c, ResourceSpec[masterdata.GLAccount]{
		Entity:    masterdata.EntityGLAccounts.String(),
		Path:      "gl-accounts",
		Timeout:   60 * time.Second,
		Normalize: (*masterdata.GLAccount).Normalize,
	})
}

// CostCentres is the cost centre resource
func CostCentres(c *Client) *Resource[masterdata.CostCentre] {
	return NewResource(c, ResourceSpec[masterdata.CostCentre]{
		Entity:    masterdata.EntityCostCentres.String(),
		Path:      "cost-centres",
		Timeout:   45 * time.Second,
		Normalize: (*masterdata.CostCentre).Normalize,
	})
}

// Prices is the per price list resource
func Prices(c *Client) *Resource[masterdata.Price] {
	return NewResource(c, ResourceSpec[masterdata.Price]{
		Entity:    masterdata.EntityPrices.String(),
		Path:      "prices/{scope}/paged",
		Timeout:   120 * time.Second,
		Normalize: (*masterdata.Price).Normalize,
	})
}

// WarehouseStock is the per warehouse stock resource
func WarehouseStock(c *Client) *Resource[masterdata.WarehouseStock] {
	return NewResource(c, ResourceSpec[masterdata.WarehouseStock]{
		Entity:    masterdata.EntityWarehouseStock.String(),
		Path:      "warehouse-stock/{scope}/paged",
		Timeout:   120 * time.Second,
		Normalize: (*masterdata.WarehouseStock).Normalize,
	})
}

// InventoryTransfers is the stock transfer document resource
func InventoryTransfers(c *Client) *Resource[masterdata.InventoryTransfer] {
	return NewResource(c, ResourceSpec[masterdata.InventoryTransfer]{
		Entity:    masterdata.EntityInventoryTransfers.String(),
		Path:      "inventory-transfers",
		Timeout:   5 * time.Minute,
		Normalize: (*masterdata.InventoryTransfer).Normalize,
	})
}

// IncomingPayments is the incoming payment resource
func IncomingPayments(c *Client) *Resource[masterdata.IncomingPayment] {
	return NewResource(c, ResourceSpec[masterdata.IncomingPayment]{
		Entity:    masterdata.EntityIncomingPayments.String(),
		Path:      "incoming-payments",
		Timeout:   5 * time.Minute,
		Normalize: (*masterdata.IncomingPayment).Normalize,
	})
}
