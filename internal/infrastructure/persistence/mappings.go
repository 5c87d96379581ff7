package persistence

import (
	"strconv"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
)

// ProductMapping maps items onto cached_products
func ProductMapping() EntityMapping[masterdata.Product, models.ProductModel] {
	return EntityMapping[masterdata.Product, models.ProductModel]{
		Entity:        masterdata.EntityProducts,
		KeyColumns:    []string{"item_code"},
		KeyOf:         func(p masterdata.Product) string { return p.ItemCode },
		SearchColumns: []string{"item_code", "item_name", "bar_code"},
		SoftDelete:    true,
		ToModel: func(p masterdata.Product, _ string, stamp masterdata.SyncStamp) (models.ProductModel, error) {
			return models.ProductModelFromDomain(p, stamp), nil
		},
		ToDomain: func(m *models.ProductModel) (masterdata.Product, error) {
			return m.ToDomain(), nil
		},
	}
}

// BusinessPartnerMapping maps business partners onto cached_business_partners
func BusinessPartnerMapping() EntityMapping[masterdata.BusinessPartner, models.BusinessPartnerModel] {
	return EntityMapping[masterdata.BusinessPartner, models.BusinessPartnerModel]{
		Entity:        masterdata.EntityBusinessPartners,
		KeyColumns:    []string{"card_code"},
		KeyOf:         func(bp masterdata.BusinessPartner) string { return bp.CardCode },
		SearchColumns: []string{"card_code", "card_name", "email"},
		SoftDelete:    true,
		ToModel: func(bp masterdata.BusinessPartner, _ string, stamp masterdata.SyncStamp) (models.BusinessPartnerModel, error) {
			return models.BusinessPartnerModelFromDomain(bp, stamp), nil
		},
		ToDomain: func(m *models.BusinessPartnerModel) (masterdata.BusinessPartner, error) {
			return m.ToDomain(), nil
		},
	}
}

// WarehouseMapping maps warehouses onto cached_warehouses
func WarehouseMapping() EntityMapping[masterdata.Warehouse, models.WarehouseModel] {
	return EntityMapping[masterdata.Warehouse, models.WarehouseModel]{
		Entity:        masterdata.EntityWarehouses,
		KeyColumns:    []string{"warehouse_code"},
		KeyOf:         func(w masterdata.Warehouse) string { return w.WarehouseCode },
		SearchColumns: []string{"warehouse_code", "warehouse_name", "city"},
		SoftDelete:    true,
		ToModel: func(w masterdata.Warehouse, _ string, stamp masterdata.SyncStamp) (models.WarehouseModel, error) {
			return models.WarehouseModelFromDomain(w, stamp), nil
		},
		ToDomain: func(m *models.WarehouseModel) (masterdata.Warehouse, error) {
			return m.ToDomain(), nil
		},
	}
}

// GLAccountMapping maps the chart of accounts onto cached_gl_accounts
func GLAccountMapping() EntityMapping[masterdata.GLAccount, models.GLAccountModel] {
	return EntityMapping[masterdata.GLAccount, models.GLAccountModel]{
		Entity:        masterdata.EntityGLAccounts,
		KeyColumns:    []string{"account_code"},
		KeyOf:         func(a masterdata.GLAccount) string { return a.AccountCode },
		SearchColumns: []string{"account_code", "account_name"},
		SoftDelete:    true,
		ToModel: func(a masterdata.GLAccount, _ string, stamp masterdata.SyncStamp) (models.GLAccountModel, error) {
			return models.GLAccountModelFromDomain(a, stamp), nil
		},
		ToDomain: func(m *models.GLAccountModel) (masterdata.GLAccount, error) {
			return m.ToDomain(), nil
		},
	}
}

// CostCentreMapping maps cost centres onto cached_cost_centres
func CostCentreMapping() EntityMapping[masterdata.CostCentre, models.CostCentreModel] {
	return EntityMapping[masterdata.CostCentre, models.CostCentreModel]{
		Entity:        masterdata.EntityCostCentres,
		KeyColumns:    []string{"centre_code"},
		KeyOf:         func(c masterdata.CostCentre) string { return c.CentreCode },
		SearchColumns: []string{"centre_code", "centre_name"},
		ToModel: func(c masterdata.CostCentre, _ string, stamp masterdata.SyncStamp) (models.CostCentreModel, error) {
			return models.CostCentreModelFromDomain(c, stamp), nil
		},
		ToDomain: func(m *models.CostCentreModel) (masterdata.CostCentre, error) {
			return m.ToDomain(), nil
		},
	}
}

// PriceMapping maps price list entries onto cached_prices, scoped by price list
func PriceMapping() EntityMapping[masterdata.Price, models.PriceModel] {
	return EntityMapping[masterdata.Price, models.PriceModel]{
		Entity:        masterdata.EntityPrices,
		KeyColumns:    []string{"price_list", "item_code"},
		KeyOf:         func(p masterdata.Price) string { return p.ItemCode },
		ScopeColumn:   "price_list",
		SearchColumns: []string{"item_code"},
		ToModel: func(p masterdata.Price, priceList string, stamp masterdata.SyncStamp) (models.PriceModel, error) {
			return models.PriceModelFromDomain(p, priceList, stamp), nil
		},
		ToDomain: func(m *models.PriceModel) (masterdata.Price, error) {
			return m.ToDomain(), nil
		},
	}
}

// WarehouseStockMapping maps stock positions onto cached_warehouse_stock, scoped by warehouse
func WarehouseStockMapping() EntityMapping[masterdata.WarehouseStock, models.WarehouseStockModel] {
	return EntityMapping[masterdata.WarehouseStock, models.WarehouseStockModel]{
		Entity:        masterdata.EntityWarehouseStock,
		KeyColumns:    []string{"warehouse_code", "item_code"},
		KeyOf:         func(s masterdata.WarehouseStock) string { return s.ItemCode },
		ScopeColumn:   "warehouse_code",
		SearchColumns: []string{"item_code", "item_name"},
		ToModel: func(s masterdata.WarehouseStock, code string, stamp masterdata.SyncStamp) (models.WarehouseStockModel, error) {
			return models.WarehouseStockModelFromDomain(s, code, stamp), nil
		},
		ToDomain: func(m *models.WarehouseStockModel) (masterdata.WarehouseStock, error) {
			return m.ToDomain(), nil
		},
	}
}

// InventoryTransferMapping maps transfer documents onto cached_inventory_transfers
func InventoryTransferMapping() EntityMapping[masterdata.InventoryTransfer, models.InventoryTransferModel] {
	return EntityMapping[masterdata.InventoryTransfer, models.InventoryTransferModel]{
		Entity:        masterdata.EntityInventoryTransfers,
		KeyColumns:    []string{"doc_entry"},
		KeyOf:         func(t masterdata.InventoryTransfer) string { return strconv.Itoa(t.DocEntry) },
		SearchColumns: []string{"from_warehouse", "to_warehouse", "comments"},
		ToModel: func(t masterdata.InventoryTransfer, _ string, stamp masterdata.SyncStamp) (models.InventoryTransferModel, error) {
			return models.InventoryTransferModelFromDomain(t, stamp)
		},
		ToDomain: func(m *models.InventoryTransferModel) (masterdata.InventoryTransfer, error) {
			return m.ToDomain()
		},
	}
}

// IncomingPaymentMapping maps payments onto cached_incoming_payments
func IncomingPaymentMapping() EntityMapping[masterdata.IncomingPayment, models.IncomingPaymentModel] {
	return EntityMapping[masterdata.IncomingPayment, models.IncomingPaymentModel]{
		Entity:        masterdata.EntityIncomingPayments,
		KeyColumns:    []string{"doc_entry"},
		KeyOf:         func(p masterdata.IncomingPayment) string { return strconv.Itoa(p.DocEntry) },
		SearchColumns: []string{"card_code", "card_name"},
		ToModel: func(p masterdata.IncomingPayment, _ string, stamp masterdata.SyncStamp) (models.IncomingPaymentModel, error) {
			return models.IncomingPaymentModelFromDomain(p, stamp)
		},
		ToDomain: func(m *models.IncomingPaymentModel) (masterdata.IncomingPayment, error) {
			return m.ToDomain()
		},
	}
}
