package models

import (
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for cached items
type ProductModel struct {
	ItemCode      string `gorm:"type:varchar(50);primaryKey"`
	ItemName      string `gorm:"type:varchar(200);not null"`
	ForeignName   string `gorm:"type:varchar(200)"`
	ItemGroup     string `gorm:"type:varchar(100);index"`
	BarCode       string `gorm:"type:varchar(100)"`
	SalesUnit     string `gorm:"type:varchar(20)"`
	InventoryUnit string `gorm:"type:varchar(20)"`
	InventoryItem bool   `gorm:"not null"`
	SalesItem     bool   `gorm:"not null"`
	PurchaseItem  bool   `gorm:"not null"`
	Frozen        bool   `gorm:"not null"`
	SoftDeleteColumns
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "cached_products"
}

// ProductModelFromDomain creates a row from a fetched item
func ProductModelFromDomain(p masterdata.Product, stamp masterdata.SyncStamp) ProductModel {
	return ProductModel{
		ItemCode:          p.ItemCode,
		ItemName:          p.ItemName,
		ForeignName:       p.ForeignName,
		ItemGroup:         p.ItemGroup,
		BarCode:           p.BarCode,
		SalesUnit:         p.SalesUnit,
		InventoryUnit:     p.InventoryUnit,
		InventoryItem:     p.InventoryItem,
		SalesItem:         p.SalesItem,
		PurchaseItem:      p.PurchaseItem,
		Frozen:            p.Frozen,
		SoftDeleteColumns: softDeleteColumns(stamp),
	}
}

// ToDomain converts the row to a domain Product
func (m *ProductModel) ToDomain() masterdata.Product {
	return masterdata.Product{
		ItemCode:      m.ItemCode,
		ItemName:      m.ItemName,
		ForeignName:   m.ForeignName,
		ItemGroup:     m.ItemGroup,
		BarCode:       m.BarCode,
		SalesUnit:     m.SalesUnit,
		InventoryUnit: m.InventoryUnit,
		InventoryItem: m.InventoryItem,
		SalesItem:     m.SalesItem,
		PurchaseItem:  m.PurchaseItem,
		Frozen:        m.Frozen,
		IsActive:      m.IsActive,
		LastSyncedAt:  m.LastSyncedAt,
	}
}

// BusinessPartnerModel is the persistence model for cached business partners
type BusinessPartnerModel struct {
	CardCode  string          `gorm:"type:varchar(50);primaryKey"`
	CardName  string          `gorm:"type:varchar(200);not null"`
	CardType  string          `gorm:"type:varchar(20);not null;index"`
	GroupCode int             `gorm:"not null"`
	Phone     string          `gorm:"type:varchar(50)"`
	Email     string          `gorm:"type:varchar(200)"`
	Currency  string          `gorm:"type:varchar(10)"`
	Balance   decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	Frozen    bool            `gorm:"not null"`
	SoftDeleteColumns
}

// TableName returns the table name for GORM
func (BusinessPartnerModel) TableName() string {
	return "cached_business_partners"
}

// BusinessPartnerModelFromDomain creates a row from a fetched business partner
func BusinessPartnerModelFromDomain(bp masterdata.BusinessPartner, stamp masterdata.SyncStamp) BusinessPartnerModel {
	return BusinessPartnerModel{
		CardCode:          bp.CardCode,
		CardName:          bp.CardName,
		CardType:          string(bp.CardType),
		GroupCode:         bp.GroupCode,
		Phone:             bp.Phone,
		Email:             bp.Email,
		Currency:          bp.Currency,
		Balance:           bp.Balance,
		Frozen:            bp.Frozen,
		SoftDeleteColumns: softDeleteColumns(stamp),
	}
}

// ToDomain converts the row to a domain BusinessPartner
func (m *BusinessPartnerModel) ToDomain() masterdata.BusinessPartner {
	return masterdata.BusinessPartner{
		CardCode:     m.CardCode,
		CardName:     m.CardName,
		CardType:     masterdata.BusinessPartnerType(m.CardType),
		GroupCode:    m.GroupCode,
		Phone:        m.Phone,
		Email:        m.Email,
		Currency:     m.Currency,
		Balance:      m.Balance,
		Frozen:       m.Frozen,
		IsActive:     m.IsActive,
		LastSyncedAt: m.LastSyncedAt,
	}
}

// WarehouseModel is the persistence model for cached warehouses
type WarehouseModel struct {
	WarehouseCode string `gorm:"type:varchar(20);primaryKey"`
	WarehouseName string `gorm:"type:varchar(100);not null"`
	Street        string `gorm:"type:varchar(200)"`
	City          string `gorm:"type:varchar(100)"`
	Country       string `gorm:"type:varchar(3)"`
	DropShip      bool   `gorm:"not null"`
	SoftDeleteColumns
}

// TableName returns the table name for GORM
func (WarehouseModel) TableName() string {
	return "cached_warehouses"
}

// WarehouseModelFromDomain creates a row from a fetched warehouse
func WarehouseModelFromDomain(w masterdata.Warehouse, stamp masterdata.SyncStamp) WarehouseModel {
	return WarehouseModel{
		WarehouseCode:     w.WarehouseCode,
		WarehouseName:     w.WarehouseName,
		Street:            w.Street,
		City:              w.City,
		Country:           w.Country,
		DropShip:          w.DropShip,
		SoftDeleteColumns: softDeleteColumns(stamp),
	}
}

// ToDomain converts the row to a domain Warehouse
func (m *WarehouseModel) ToDomain() masterdata.Warehouse {
	return masterdata.Warehouse{
		WarehouseCode: m.WarehouseCode,
		WarehouseName: m.WarehouseName,
		Street:        m.Street,
		City:          m.City,
		Country:       m.Country,
		DropShip:      m.DropShip,
		IsActive:      m.IsActive,
		LastSyncedAt:  m.LastSyncedAt,
	}
}

// GLAccountModel is the persistence model for cached GL accounts
type GLAccountModel struct {
	AccountCode   string          `gorm:"type:varchar(50);primaryKey"`
	AccountName   string          `gorm:"type:varchar(200);not null"`
	FatherAccount string          `gorm:"type:varchar(50);index"`
	Level         int             `gorm:"not null"`
	Postable      bool            `gorm:"not null"`
	Currency      string          `gorm:"type:varchar(10)"`
	Balance       decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	SoftDeleteColumns
}

// TableName returns the table name for GORM
func (GLAccountModel) TableName() string {
	return "cached_gl_accounts"
}

// GLAccountModelFromDomain creates a row from a fetched account
func GLAccountModelFromDomain(a masterdata.GLAccount, stamp masterdata.SyncStamp) GLAccountModel {
	return GLAccountModel{
		AccountCode:       a.AccountCode,
		AccountName:       a.AccountName,
		FatherAccount:     a.FatherAccount,
		Level:             a.Level,
		Postable:          a.Postable,
		Currency:          a.Currency,
		Balance:           a.Balance,
		SoftDeleteColumns: softDeleteColumns(stamp),
	}
}

// ToDomain converts the row to a domain GLAccount
func (m *GLAccountModel) ToDomain() masterdata.GLAccount {
	return masterdata.GLAccount{
		AccountCode:   m.AccountCode,
		AccountName:   m.AccountName,
		FatherAccount: m.FatherAccount,
		Level:         m.Level,
		Postable:      m.Postable,
		Currency:      m.Currency,
		Balance:       m.Balance,
		IsActive:      m.IsActive,
		LastSyncedAt:  m.LastSyncedAt,
	}
}

// CostCentreModel is the persistence model for cached cost centres
type CostCentreModel struct {
	CentreCode string `gorm:"type:varchar(20);primaryKey"`
	CentreName string `gorm:"type:varchar(100);not null"`
	Dimension  int    `gorm:"not null"`
	Active     bool   `gorm:"not null"`
	ValidFrom  *time.Time
	ValidTo    *time.Time
	SyncColumns
}

// TableName returns the table name for GORM
func (CostCentreModel) TableName() string {
	return "cached_cost_centres"
}

// CostCentreModelFromDomain creates a row from a fetched cost centre
func CostCentreModelFromDomain(c masterdata.CostCentre, stamp masterdata.SyncStamp) CostCentreModel {
	return CostCentreModel{
		CentreCode:  c.CentreCode,
		CentreName:  c.CentreName,
		Dimension:   c.Dimension,
		Active:      c.Active,
		ValidFrom:   c.ValidFrom,
		ValidTo:     c.ValidTo,
		SyncColumns: syncColumns(stamp),
	}
}

// ToDomain converts the row to a domain CostCentre
func (m *CostCentreModel) ToDomain() masterdata.CostCentre {
	return masterdata.CostCentre{
		CentreCode:   m.CentreCode,
		CentreName:   m.CentreName,
		Dimension:    m.Dimension,
		Active:       m.Active,
		ValidFrom:    m.ValidFrom,
		ValidTo:      m.ValidTo,
		LastSyncedAt: m.LastSyncedAt,
	}
}
