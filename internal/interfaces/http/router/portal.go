package router

import (
	"github.com/erp/portal/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers are the HTTP handlers of the portal API
type Handlers struct {
	MasterData *handler.MasterDataHandler
	Sync       *handler.SyncHandler
	Cache      *handler.CacheHandler
	Events     *handler.SyncEventsHandler
	Health     *handler.HealthHandler
}

// Portal wires the portal routes onto engine. mutating runs in front of the
// routes that start crawls or drop snapshots, typically a rate limiter.
// Health probes live outside the versioned prefix.
func Portal(engine *gin.Engine, h Handlers, mutating ...gin.HandlerFunc) *Router {
	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
		engine.GET("/health/ready", h.Health.Ready)
	}

	r := NewRouter(engine)
	for _, g := range PortalGroups(h, mutating...) {
		r.Register(g)
	}
	r.Setup()
	return r
}

// PortalGroups builds the versioned route groups. Groups whose handler is
// nil are left out.
func PortalGroups(h Handlers, mutating ...gin.HandlerFunc) []*DomainGroup {
	var groups []*DomainGroup
	with := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, mutating...), fn)
	}

	if h.MasterData != nil {
		groups = append(groups, NewDomainGroup("masterdata", "/masterdata").
			GET("/:entity", h.MasterData.List).
			GET("/:entity/search", h.MasterData.Search).
			GET("/:entity/:scope", h.MasterData.List))
	}

	if h.Sync != nil {
		sync := NewDomainGroup("sync", "/sync").
			GET("/ledger", h.Sync.Ledger).
			GET("/:entity/status", h.Sync.Status).
			GET("/:entity/:scope/status", h.Sync.Status).
			POST("/:entity", with(h.Sync.Sync)...).
			POST("/:entity/:scope", with(h.Sync.Sync)...)
		if h.Events != nil {
			sync.GET("/events", h.Events.Stream)
		}
		groups = append(groups, sync)
	}

	if h.Cache != nil {
		groups = append(groups, NewDomainGroup("cache", "/cache").
			POST("/invalidate", with(h.Cache.Invalidate)...))
	}

	return groups
}
