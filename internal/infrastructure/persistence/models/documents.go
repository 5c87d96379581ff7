package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/shopspring/decimal"
)

// PriceModel is the persistence model for cached price list entries
type PriceModel struct {
	PriceList string          `gorm:"type:varchar(20);primaryKey"`
	ItemCode  string          `gorm:"type:varchar(50);primaryKey"`
	Price     decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	Currency  string          `gorm:"type:varchar(10)"`
	SyncColumns
}

// TableName returns the table name for GORM
func (PriceModel) TableName() string {
	return "cached_prices"
}

// PriceModelFromDomain creates a row for the given price list
func PriceModelFromDomain(p masterdata.Price, priceList string, stamp masterdata.SyncStamp) PriceModel {
	return PriceModel{
		PriceList:   priceList,
		ItemCode:    p.ItemCode,
		Price:       p.Price,
		Currency:    p.Currency,
		SyncColumns: syncColumns(stamp),
	}
}

// ToDomain converts the row to a domain Price
func (m *PriceModel) ToDomain() masterdata.Price {
	return masterdata.Price{
		PriceList:    m.PriceList,
		ItemCode:     m.ItemCode,
		Price:        m.Price,
		Currency:     m.Currency,
		LastSyncedAt: m.LastSyncedAt,
	}
}

// WarehouseStockModel is the persistence model for per-warehouse stock positions
type WarehouseStockModel struct {
	WarehouseCode string          `gorm:"type:varchar(20);primaryKey"`
	ItemCode      string          `gorm:"type:varchar(50);primaryKey"`
	ItemName      string          `gorm:"type:varchar(200)"`
	InStock       decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	Committed     decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	Ordered       decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	SyncColumns
}

// TableName returns the table name for GORM
func (WarehouseStockModel) TableName() string {
	return "cached_warehouse_stock"
}

// WarehouseStockModelFromDomain creates a row for the given warehouse
func WarehouseStockModelFromDomain(s masterdata.WarehouseStock, warehouseCode string, stamp masterdata.SyncStamp) WarehouseStockModel {
	return WarehouseStockModel{
		WarehouseCode: warehouseCode,
		ItemCode:      s.ItemCode,
		ItemName:      s.ItemName,
		InStock:       s.InStock,
		Committed:     s.Committed,
		Ordered:       s.Ordered,
		SyncColumns:   syncColumns(stamp),
	}
}

// ToDomain converts the row to a domain WarehouseStock
func (m *WarehouseStockModel) ToDomain() masterdata.WarehouseStock {
	return masterdata.WarehouseStock{
		WarehouseCode: m.WarehouseCode,
		ItemCode:      m.ItemCode,
		ItemName:      m.ItemName,
		InStock:       m.InStock,
		Committed:     m.Committed,
		Ordered:       m.Ordered,
		LastSyncedAt:  m.LastSyncedAt,
	}
}

// InventoryTransferModel is the persistence model for cached transfer documents.
// Lines are stored as a JSON array.
type InventoryTransferModel struct {
	DocEntry      int       `gorm:"primaryKey;autoIncrement:false"`
	DocNum        int       `gorm:"not null;index"`
	DocDate       time.Time `gorm:"not null;index"`
	FromWarehouse string    `gorm:"type:varchar(20);not null"`
	ToWarehouse   string    `gorm:"type:varchar(20);not null"`
	Comments      string    `gorm:"type:text"`
	Status        string    `gorm:"type:varchar(20);not null"`
	LinesJSON     string    `gorm:"type:jsonb;column:lines;not null"`
	SyncColumns
}

// TableName returns the table name for GORM
func (InventoryTransferModel) TableName() string {
	return "cached_inventory_transfers"
}

// InventoryTransferModelFromDomain creates a row from a fetched transfer
func InventoryTransferModelFromDomain(t masterdata.InventoryTransfer, stamp masterdata.SyncStamp) (InventoryTransferModel, error) {
	lines, err := marshalLines(t.Lines)
	if err != nil {
		return InventoryTransferModel{}, fmt.Errorf("transfer %d: %w", t.DocEntry, err)
	}
	return InventoryTransferModel{
		DocEntry:      t.DocEntry,
		DocNum:        t.DocNum,
		DocDate:       t.DocDate,
		FromWarehouse: t.FromWarehouse,
		ToWarehouse:   t.ToWarehouse,
		Comments:      t.Comments,
		Status:        t.Status,
		LinesJSON:     lines,
		SyncColumns:   syncColumns(stamp),
	}, nil
}

// ToDomain converts the row to a domain InventoryTransfer. It fails when the
// stored lines blob is not valid JSON.
func (m *InventoryTransferModel) ToDomain() (masterdata.InventoryTransfer, error) {
	t := masterdata.InventoryTransfer{
		DocEntry:      m.DocEntry,
		DocNum:        m.DocNum,
		DocDate:       m.DocDate,
		FromWarehouse: m.FromWarehouse,
		ToWarehouse:   m.ToWarehouse,
		Comments:      m.Comments,
		Status:        m.Status,
		Lines:         make([]masterdata.TransferLine, 0),
		LastSyncedAt:  m.LastSyncedAt,
	}
	if err := unmarshalLines(m.LinesJSON, &t.Lines); err != nil {
		return masterdata.InventoryTransfer{}, fmt.Errorf("transfer %d lines: %w", m.DocEntry, err)
	}
	return t, nil
}

// IncomingPaymentModel is the persistence model for cached incoming payments.
// Settled invoices are stored as a JSON array.
type IncomingPaymentModel struct {
	DocEntry     int             `gorm:"primaryKey;autoIncrement:false"`
	DocNum       int             `gorm:"not null;index"`
	DocDate      time.Time       `gorm:"not null;index"`
	CardCode     string          `gorm:"type:varchar(50);not null;index"`
	CardName     string          `gorm:"type:varchar(200)"`
	Currency     string          `gorm:"type:varchar(10)"`
	CashSum      decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	TransferSum  decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	Cancelled    bool            `gorm:"not null"`
	InvoicesJSON string          `gorm:"type:jsonb;column:invoices;not null"`
	SyncColumns
}

// TableName returns the table name for GORM
func (IncomingPaymentModel) TableName() string {
	return "cached_incoming_payments"
}

// IncomingPaymentModelFromDomain creates a row from a fetched payment
func IncomingPaymentModelFromDomain(p masterdata.IncomingPayment, stamp masterdata.SyncStamp) (IncomingPaymentModel, error) {
	invoices, err := marshalLines(p.Invoices)
	if err != nil {
		return IncomingPaymentModel{}, fmt.Errorf("payment %d: %w", p.DocEntry, err)
	}
	return IncomingPaymentModel{
		DocEntry:     p.DocEntry,
		DocNum:       p.DocNum,
		DocDate:      p.DocDate,
		CardCode:     p.CardCode,
		CardName:     p.CardName,
		Currency:     p.Currency,
		CashSum:      p.CashSum,
		TransferSum:  p.TransferSum,
		Cancelled:    p.Cancelled,
		InvoicesJSON: invoices,
		SyncColumns:  syncColumns(stamp),
	}, nil
}

// ToDomain converts the row to a domain IncomingPayment. It fails when the
// stored invoices blob is not valid JSON.
func (m *IncomingPaymentModel) ToDomain() (masterdata.IncomingPayment, error) {
	p := masterdata.IncomingPayment{
		DocEntry:     m.DocEntry,
		DocNum:       m.DocNum,
		DocDate:      m.DocDate,
		CardCode:     m.CardCode,
		CardName:     m.CardName,
		Currency:     m.Currency,
		CashSum:      m.CashSum,
		TransferSum:  m.TransferSum,
		Cancelled:    m.Cancelled,
		Invoices:     make([]masterdata.PaymentInvoice, 0),
		LastSyncedAt: m.LastSyncedAt,
	}
	if err := unmarshalLines(m.InvoicesJSON, &p.Invoices); err != nil {
		return masterdata.IncomingPayment{}, fmt.Errorf("payment %d invoices: %w", m.DocEntry, err)
	}
	return p, nil
}

func marshalLines[L any](lines []L) (string, error) {
	if len(lines) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalLines[L any](blob string, dst *[]L) error {
	if blob == "" {
		return nil
	}
	return json.Unmarshal([]byte(blob), dst)
}
