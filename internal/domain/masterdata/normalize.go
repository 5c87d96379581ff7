package masterdata

import (
	"fmt"
	"strings"
)

// Normalize methods clean up a record as fetched from the ERP. A record that
// fails is skipped by the crawl; the rest of the page is kept.

// Normalize trims codes and names and requires ItemCode
func (p *Product) Normalize() error {
	p.ItemCode = strings.TrimSpace(p.ItemCode)
	p.ItemName = strings.TrimSpace(p.ItemName)
	if p.ItemCode == "" {
		return fmt.Errorf("product: %w", ErrMissingKey)
	}
	return nil
}

// Normalize trims codes, maps ERP card types and requires CardCode
func (bp *BusinessPartner) Normalize() error {
	bp.CardCode = strings.TrimSpace(bp.CardCode)
	bp.CardName = strings.TrimSpace(bp.CardName)
	if bp.CardCode == "" {
		return fmt.Errorf("business partner: %w", ErrMissingKey)
	}
	switch strings.ToLower(strings.TrimSpace(string(bp.CardType))) {
	case "customer", "ccustomer", "c":
		bp.CardType = BusinessPartnerCustomer
	case "supplier", "csupplier", "s":
		bp.CardType = BusinessPartnerSupplier
	case "lead", "clid", "l":
		bp.CardType = BusinessPartnerLead
	default:
		return fmt.Errorf("business partner %s: %w: %q", bp.CardCode, ErrUnknownPartnerType, bp.CardType)
	}
	return nil
}

// Normalize trims and requires WarehouseCode
func (w *Warehouse) Normalize() error {
	w.WarehouseCode = strings.TrimSpace(w.WarehouseCode)
	if w.WarehouseCode == "" {
		return fmt.Errorf("warehouse: %w", ErrMissingKey)
	}
	return nil
}

// Normalize trims and requires AccountCode
func (a *GLAccount) Normalize() error {
	a.AccountCode = strings.TrimSpace(a.AccountCode)
	if a.AccountCode == "" {
		return fmt.Errorf("gl account: %w", ErrMissingKey)
	}
	return nil
}

// Normalize trims and requires CentreCode
func (c *CostCentre) Normalize() error {
	c.CentreCode = strings.TrimSpace(c.CentreCode)
	if c.CentreCode == "" {
		return fmt.Errorf("cost centre: %w", ErrMissingKey)
	}
	return nil
}

// Normalize trims and requires ItemCode
func (p *Price) Normalize() error {
	p.ItemCode = strings.TrimSpace(p.ItemCode)
	if p.ItemCode == "" {
		return fmt.Errorf("price: %w", ErrMissingKey)
	}
	return nil
}

// Normalize trims and requires ItemCode
func (s *WarehouseStock) Normalize() error {
	s.ItemCode = strings.TrimSpace(s.ItemCode)
	if s.ItemCode == "" {
		return fmt.Errorf("warehouse stock: %w", ErrMissingKey)
	}
	return nil
}

// Normalize requires a DocEntry and never leaves Lines nil
func (t *InventoryTransfer) Normalize() error {
	if t.DocEntry <= 0 {
		return fmt.Errorf("inventory transfer: %w", ErrMissingKey)
	}
	if t.Lines == nil {
		t.Lines = []TransferLine{}
	}
	return nil
}

// Normalize requires a DocEntry and never leaves Invoices nil
func (p *IncomingPayment) Normalize() error {
	if p.DocEntry <= 0 {
		return fmt.Errorf("incoming payment: %w", ErrMissingKey)
	}
	p.CardCode = strings.TrimSpace(p.CardCode)
	if p.Invoices == nil {
		p.Invoices = []PaymentInvoice{}
	}
	return nil
}
