// Package models contains GORM persistence models for the local cache store.
// Domain records in internal/domain/masterdata carry no ORM concerns; each model
// here maps one of them to a table and converts back with ToDomain.
//
// Structure:
// - base.go: sync bookkeeping columns shared by every cached row
// - masterdata.go: item, partner, warehouse, account and cost centre rows
// - documents.go: stock, price, transfer and payment rows (line items as JSON text)
// - ledger.go: the sync ledger row
package models
