package masterdata

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "Products", CacheKey(EntityProducts, ""))
	assert.Equal(t, "WarehouseStock_WH01", CacheKey(EntityWarehouseStock, "WH01"))
	assert.Equal(t, "Prices_1", CacheKey(EntityPrices, "1"))
	assert.Equal(t, "CostCentres", CacheKey(EntityCostCentres, ""))
}

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity("gl-accounts")
	require.NoError(t, err)
	assert.Equal(t, EntityGLAccounts, e)

	_, err = ParseEntity("invoices")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestValidateScope(t *testing.T) {
	tests := []struct {
		name    string
		entity  Entity
		scope   string
		wantErr bool
	}{
		{"unscoped without scope", EntityProducts, "", false},
		{"unscoped with scope", EntityProducts, "WH01", true},
		{"scoped without scope", EntityWarehouseStock, "", true},
		{"scoped with scope", EntityWarehouseStock, "WH01", false},
		{"scope with underscore", EntityWarehouseStock, "WH_01", false},
		{"scope with slash", EntityPrices, "a/b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScope(tt.entity, tt.scope)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidScope)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewFailedSync_TruncatesError(t *testing.T) {
	long := strings.Repeat("é", MaxLastErrorLength+50)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	entry := NewFailedSync("Products", at, 200, errors.New(long))

	assert.False(t, entry.SyncSuccessful)
	assert.Equal(t, 200, entry.ItemCount)
	assert.Equal(t, MaxLastErrorLength, len([]rune(entry.LastError)))
	assert.True(t, strings.HasSuffix(entry.LastError, "..."))
}

func TestNewSuccessfulSync(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entry := NewSuccessfulSync("Warehouses", at, 12)

	assert.True(t, entry.SyncSuccessful)
	assert.Empty(t, entry.LastError)
	assert.Equal(t, at, entry.LastSyncedAt)
}

func TestWarehouseStock_Available(t *testing.T) {
	s := WarehouseStock{
		InStock:   decimal.NewFromInt(10),
		Committed: decimal.NewFromInt(4),
		Ordered:   decimal.RequireFromString("2.5"),
	}
	assert.True(t, decimal.RequireFromString("8.5").Equal(s.Available()))
}

func TestIncomingPayment_Total(t *testing.T) {
	p := IncomingPayment{CashSum: decimal.NewFromInt(100), TransferSum: decimal.NewFromInt(50)}
	assert.True(t, decimal.NewFromInt(150).Equal(p.Total()))
}

func TestBusinessPartner_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		in       BusinessPartner
		wantType BusinessPartnerType
		wantErr  error
	}{
		{"erp customer code", BusinessPartner{CardCode: " C001 ", CardType: "cCustomer"}, BusinessPartnerCustomer, nil},
		{"short supplier code", BusinessPartner{CardCode: "S1", CardType: "S"}, BusinessPartnerSupplier, nil},
		{"lead", BusinessPartner{CardCode: "L1", CardType: "cLid"}, BusinessPartnerLead, nil},
		{"unknown type", BusinessPartner{CardCode: "X1", CardType: "vendor"}, "", ErrUnknownPartnerType},
		{"missing code", BusinessPartner{CardType: "customer"}, "", ErrMissingKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp := tt.in
			err := bp.Normalize()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, bp.CardType)
			assert.NotContains(t, bp.CardCode, " ")
		})
	}
}

func TestDocuments_Normalize(t *testing.T) {
	transfer := InventoryTransfer{DocEntry: 4}
	require.NoError(t, transfer.Normalize())
	assert.NotNil(t, transfer.Lines)

	payment := IncomingPayment{DocEntry: 9}
	require.NoError(t, payment.Normalize())
	assert.NotNil(t, payment.Invoices)

	assert.ErrorIs(t, (&InventoryTransfer{}).Normalize(), ErrMissingKey)
	assert.ErrorIs(t, (&Price{ItemCode: "  "}).Normalize(), ErrMissingKey)
}
