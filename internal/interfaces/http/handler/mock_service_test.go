package handler

import (
	"context"

	appmd "github.com/erp/portal/internal/application/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockMasterDataService is a testify mock of MasterDataService
type MockMasterDataService struct {
	mock.Mock
}

func (m *MockMasterDataService) List(ctx context.Context, entity, scope string, refresh bool) (*appmd.ListResponse, error) {
	args := m.Called(ctx, entity, scope, refresh)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appmd.ListResponse), args.Error(1)
}

func (m *MockMasterDataService) Search(ctx context.Context, entity, scope string, filter shared.Filter) (*appmd.SearchResponse, error) {
	args := m.Called(ctx, entity, scope, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appmd.SearchResponse), args.Error(1)
}

func (m *MockMasterDataService) Sync(ctx context.Context, entity, scope string) (*appmd.CrawlResultResponse, error) {
	args := m.Called(ctx, entity, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appmd.CrawlResultResponse), args.Error(1)
}

func (m *MockMasterDataService) Status(ctx context.Context, entity, scope string) (*appmd.SyncStatusResponse, error) {
	args := m.Called(ctx, entity, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appmd.SyncStatusResponse), args.Error(1)
}

func (m *MockMasterDataService) Ledger(ctx context.Context) ([]appmd.LedgerEntryResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appmd.LedgerEntryResponse), args.Error(1)
}

func (m *MockMasterDataService) Invalidate(ctx context.Context, entity, scope string) (int, error) {
	args := m.Called(ctx, entity, scope)
	return args.Int(0), args.Error(1)
}

var _ MasterDataService = (*MockMasterDataService)(nil)
