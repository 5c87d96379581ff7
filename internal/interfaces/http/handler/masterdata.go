package handler

import (
	"context"
	"strconv"

	appmd "github.com/erp/portal/internal/application/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// MasterDataService is the application service the master data, sync and
// cache handlers call
type MasterDataService interface {
	List(ctx context.Context, entity, scope string, refresh bool) (*appmd.ListResponse, error)
	Search(ctx context.Context, entity, scope string, filter shared.Filter) (*appmd.SearchResponse, error)
	Sync(ctx context.Context, entity, scope string) (*appmd.CrawlResultResponse, error)
	Status(ctx context.Context, entity, scope string) (*appmd.SyncStatusResponse, error)
	Ledger(ctx context.Context) ([]appmd.LedgerEntryResponse, error)
	Invalidate(ctx context.Context, entity, scope string) (int, error)
}

var _ MasterDataService = (*appmd.Service)(nil)

// maxSearchPageSize bounds page_size on search
const maxSearchPageSize = 500

// MasterDataHandler serves cached master data
type MasterDataHandler struct {
	BaseHandler
	service MasterDataService
}

// NewMasterDataHandler creates a new MasterDataHandler
func NewMasterDataHandler(service MasterDataService) *MasterDataHandler {
	return &MasterDataHandler{service: service}
}

// List returns every active item of an entity. Scoped entities (prices,
// warehouse-stock) take the scope as the second path segment.
// refresh=true forces a crawl before answering.
//
//	GET /masterdata/:entity
//	GET /masterdata/:entity/:scope
func (h *MasterDataHandler) List(c *gin.Context) {
	resp, err := h.service.List(c.Request.Context(), c.Param("entity"), c.Param("scope"), queryBool(c, "refresh"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Search pages over the stored items of an entity.
//
//	GET /masterdata/:entity/search?q=&page=&page_size=&include_inactive=&scope=
func (h *MasterDataHandler) Search(c *gin.Context) {
	var q appmd.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	filter := shared.Filter{
		Page:            q.Page,
		PageSize:        q.PageSize,
		Search:          q.Q,
		IncludeInactive: q.IncludeInactive,
	}.Normalize(maxSearchPageSize)

	page, err := h.service.Search(c.Request.Context(), c.Param("entity"), c.Query("scope"), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// queryBool reads a boolean query parameter; anything unparsable is false
func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
