package handler

import (
	"errors"
	"io"
	"net/http"

	appmd "github.com/erp/portal/internal/application/masterdata"
	"github.com/erp/portal/internal/application/cachesync"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// SyncHandler triggers crawls and reports sync state
type SyncHandler struct {
	BaseHandler
	service MasterDataService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service MasterDataService) *SyncHandler {
	return &SyncHandler{service: service}
}

// Sync crawls one cache key now and answers with the crawl result:
// 200 when it completed, 409 when another crawl held the key, 502 when the
// crawl failed.
//
//	POST /sync/:entity
//	POST /sync/:entity/:scope
func (h *SyncHandler) Sync(c *gin.Context) {
	res, err := h.service.Sync(c.Request.Context(), c.Param("entity"), c.Param("scope"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	switch cachesync.CrawlStatus(res.Status) {
	case cachesync.CrawlCompleted:
		h.Success(c, res)
	case cachesync.CrawlSkipped:
		h.ErrorWithData(c, http.StatusConflict, dto.ErrCodeSyncInProgress,
			"A sync for "+res.CacheKey+" is already running", res)
	default:
		h.ErrorWithData(c, http.StatusBadGateway, dto.ErrCodeUpstreamFailure, res.Error, res)
	}
}

// Status returns the ledger entry and in-flight state of one cache key.
//
//	GET /sync/:entity/status
//	GET /sync/:entity/:scope/status
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), c.Param("entity"), c.Param("scope"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Ledger lists every recorded sync.
//
//	GET /sync/ledger
func (h *SyncHandler) Ledger(c *gin.Context) {
	entries, err := h.service.Ledger(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// CacheHandler manages in-memory snapshots
type CacheHandler struct {
	BaseHandler
	service MasterDataService
}

// NewCacheHandler creates a new CacheHandler
func NewCacheHandler(service MasterDataService) *CacheHandler {
	return &CacheHandler{service: service}
}

// Invalidate drops snapshots here and on every peer instance. An empty body
// invalidates everything.
//
//	POST /cache/invalidate {"entity": "prices", "scope": "base"}
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var req appmd.InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			h.ValidationError(c, err)
		} else {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
		}
		return
	}

	n, err := h.service.Invalidate(c.Request.Context(), req.Entity, req.Scope)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appmd.InvalidateResponse{
		Entity:  req.Entity,
		Scope:   req.Scope,
		Evicted: n,
	})
}
