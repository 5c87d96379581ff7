package masterdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Master data
// ---------------------------------------------------------------------------

// Product is an item master record, keyed by ItemCode
type Product struct {
	ItemCode      string    `json:"itemCode"`
	ItemName      string    `json:"itemName"`
	ForeignName   string    `json:"foreignName,omitempty"`
	ItemGroup     string    `json:"itemGroup,omitempty"`
	BarCode       string    `json:"barCode,omitempty"`
	SalesUnit     string    `json:"salesUnit,omitempty"`
	InventoryUnit string    `json:"inventoryUnit,omitempty"`
	InventoryItem bool      `json:"inventoryItem"`
	SalesItem     bool      `json:"salesItem"`
	PurchaseItem  bool      `json:"purchaseItem"`
	Frozen        bool      `json:"frozen"`
	IsActive      bool      `json:"isActive"`
	LastSyncedAt  time.Time `json:"lastSyncedAt"`
}

// BusinessPartnerType classifies a business partner
type BusinessPartnerType string

const (
	BusinessPartnerCustomer BusinessPartnerType = "customer"
	BusinessPartnerSupplier BusinessPartnerType = "supplier"
	BusinessPartnerLead     BusinessPartnerType = "lead"
)

// BusinessPartner is a customer, supplier or lead, keyed by CardCode
type BusinessPartner struct {
	CardCode     string              `json:"cardCode"`
	CardName     string              `json:"cardName"`
	CardType     BusinessPartnerType `json:"cardType"`
	GroupCode    int                 `json:"groupCode,omitempty"`
	Phone        string              `json:"phone,omitempty"`
	Email        string              `json:"email,omitempty"`
	Currency     string              `json:"currency,omitempty"`
	Balance      decimal.Decimal     `json:"balance"`
	Frozen       bool                `json:"frozen"`
	IsActive     bool                `json:"isActive"`
	LastSyncedAt time.Time           `json:"lastSyncedAt"`
}

// Warehouse is a stock location, keyed by WarehouseCode
type Warehouse struct {
	WarehouseCode string    `json:"warehouseCode"`
	WarehouseName string    `json:"warehouseName"`
	Street        string    `json:"street,omitempty"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	DropShip      bool      `json:"dropShip"`
	IsActive      bool      `json:"isActive"`
	LastSyncedAt  time.Time `json:"lastSyncedAt"`
}

// GLAccount is a chart-of-accounts entry, keyed by AccountCode
type GLAccount struct {
	AccountCode   string          `json:"accountCode"`
	AccountName   string          `json:"accountName"`
	FatherAccount string          `json:"fatherAccount,omitempty"`
	Level         int             `json:"level"`
	Postable      bool            `json:"postable"`
	Currency      string          `json:"currency,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	IsActive      bool            `json:"isActive"`
	LastSyncedAt  time.Time       `json:"lastSyncedAt"`
}

// CostCentre is a profit/cost centre, keyed by CentreCode
type CostCentre struct {
	CentreCode   string     `json:"centreCode"`
	CentreName   string     `json:"centreName"`
	Dimension    int        `json:"dimension"`
	Active       bool       `json:"active"`
	ValidFrom    *time.Time `json:"validFrom,omitempty"`
	ValidTo      *time.Time `json:"validTo,omitempty"`
	LastSyncedAt time.Time  `json:"lastSyncedAt"`
}

// Price is an item price within a price list, keyed by (PriceList, ItemCode)
type Price struct {
	PriceList    string          `json:"priceList"`
	ItemCode     string          `json:"itemCode"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency,omitempty"`
	LastSyncedAt time.Time       `json:"lastSyncedAt"`
}

// ---------------------------------------------------------------------------
// Transactional data
// ---------------------------------------------------------------------------

// WarehouseStock is the on-hand position of one item in one warehouse
type WarehouseStock struct {
	WarehouseCode string          `json:"warehouseCode"`
	ItemCode      string          `json:"itemCode"`
	ItemName      string          `json:"itemName,omitempty"`
	InStock       decimal.Decimal `json:"inStock"`
	Committed     decimal.Decimal `json:"committed"`
	Ordered       decimal.Decimal `json:"ordered"`
	LastSyncedAt  time.Time       `json:"lastSyncedAt"`
}

// Available returns in-stock minus committed plus ordered
func (s WarehouseStock) Available() decimal.Decimal {
	return s.InStock.Sub(s.Committed).Add(s.Ordered)
}

// InventoryTransfer is a stock transfer document, keyed by DocEntry
type InventoryTransfer struct {
	DocEntry      int            `json:"docEntry"`
	DocNum        int            `json:"docNum"`
	DocDate       time.Time      `json:"docDate"`
	FromWarehouse string         `json:"fromWarehouse"`
	ToWarehouse   string         `json:"toWarehouse"`
	Comments      string         `json:"comments,omitempty"`
	Status        string         `json:"status"`
	Lines         []TransferLine `json:"lines"`
	LastSyncedAt  time.Time      `json:"lastSyncedAt"`
}

// TransferLine is one item line of an inventory transfer
type TransferLine struct {
	LineNum       int             `json:"lineNum"`
	ItemCode      string          `json:"itemCode"`
	Description   string          `json:"description,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	FromWarehouse string          `json:"fromWarehouse,omitempty"`
	ToWarehouse   string          `json:"toWarehouse,omitempty"`
}

// IncomingPayment is a customer receipt document, keyed by DocEntry
type IncomingPayment struct {
	DocEntry     int              `json:"docEntry"`
	DocNum       int              `json:"docNum"`
	DocDate      time.Time        `json:"docDate"`
	CardCode     string           `json:"cardCode"`
	CardName     string           `json:"cardName,omitempty"`
	Currency     string           `json:"currency,omitempty"`
	CashSum      decimal.Decimal  `json:"cashSum"`
	TransferSum  decimal.Decimal  `json:"transferSum"`
	Cancelled    bool             `json:"cancelled"`
	Invoices     []PaymentInvoice `json:"invoices"`
	LastSyncedAt time.Time        `json:"lastSyncedAt"`
}

// Total returns the cash plus bank transfer amount of the payment
func (p IncomingPayment) Total() decimal.Decimal {
	return p.CashSum.Add(p.TransferSum)
}

// PaymentInvoice is one invoice settled by an incoming payment
type PaymentInvoice struct {
	LineNum     int             `json:"lineNum"`
	DocEntry    int             `json:"docEntry"`
	InvoiceType string          `json:"invoiceType,omitempty"`
	SumApplied  decimal.Decimal `json:"sumApplied"`
}
