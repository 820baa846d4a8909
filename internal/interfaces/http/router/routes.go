package router

import (
	"slices"

	"github.com/flocon/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers are the HTTP handlers of the sync API
type Handlers struct {
	OAuth     *handler.OAuthHandler
	Sync      *handler.SyncHandler
	PayApps   *handler.PayAppHandler
	Costs     *handler.CostHandler
	Billing   *handler.BillingHandler
	Scheduler *handler.SchedulerHandler
	Health    *handler.HealthHandler
}

// SyncAPIGroups builds the route groups of the sync API. Every action that
// writes to QuickBooks runs behind guards, in order.
func SyncAPIGroups(h Handlers, guards ...gin.HandlerFunc) []*DomainGroup {
	chain := make([]gin.HandlerFunc, 0, len(guards))
	for _, g := range guards {
		if g != nil {
			chain = append(chain, g)
		}
	}
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(slices.Clone(chain), handler)
	}

	qbo := NewDomainGroup("qbo", "/qbo").
		GET("/connect", h.OAuth.Connect).
		GET("/callback", h.OAuth.Callback).
		GET("/status", h.OAuth.Status).
		POST("/disconnect", h.OAuth.Disconnect).
		POST("/refresh", guarded(h.OAuth.Refresh)...)

	sync := NewDomainGroup("sync", "/sync").Use(chain...)
	sync.Group("projects", "/projects").
		POST("", h.Sync.SyncProjects).
		POST("/all", h.Sync.SyncAllProjects).
		POST("/:id", h.Sync.SyncProject)
	sync.POST("/companies/:id", h.Sync.SyncCompany).
		POST("/vendors/pull", h.Sync.PullVendors).
		POST("/subcontractors/pull", h.Sync.PullSubcontractors).
		POST("/customers/pull", h.Sync.PullCustomers)

	payApps := NewDomainGroup("pay-apps", "/pay-apps").
		POST("/:id/sync", guarded(h.PayApps.SyncPayApp)...).
		POST("/:id/pull-payment", guarded(h.PayApps.PullPayment)...)

	projects := NewDomainGroup("projects", "/projects").
		POST("/:id/pay-apps/sync", guarded(h.PayApps.SyncProjectPayApps)...).
		POST("/:id/payments/pull", guarded(h.PayApps.PullProjectPayments)...).
		GET("/:id/costs", h.Costs.ProjectCost).
		POST("/:id/billing/recompute", h.Billing.RecomputeProject).
		POST("/:id/change-orders/renumber", h.Billing.RenumberChangeOrders)

	costs := NewDomainGroup("costs", "/costs").
		GET("/jobs/:jobId", h.Costs.JobCost).
		GET("/jobs/:jobId/profit-loss", h.Costs.ProfitAndLoss)

	billing := NewDomainGroup("billing", "/billing").
		POST("/recompute", h.Billing.RecomputeAll)

	scheduler := NewDomainGroup("scheduler", "/scheduler").
		GET("/jobs", h.Scheduler.ListJobs).
		POST("/jobs", h.Scheduler.EnqueueJob).
		GET("/jobs/:id", h.Scheduler.GetJob)

	system := NewDomainGroup("system", "").
		GET("/health", h.Health.Health)

	return []*DomainGroup{qbo, sync, payApps, projects, costs, billing, scheduler, system}
}

// RegisterSyncAPI registers the sync API under the versioned group and the
// health check at the root of the engine
func (r *Router) RegisterSyncAPI(h Handlers, guards ...gin.HandlerFunc) *Router {
	for _, g := range SyncAPIGroups(h, guards...) {
		r.Register(g)
	}
	r.engine.GET("/health", h.Health.Health)
	return r
}
