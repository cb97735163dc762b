package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"machine-fleet-backend/config"
	"machine-fleet-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, handler *Handler) *gin.Engine {
	r := gin.Default()

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute)

	cacheStore := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	caching := mw.Cache(cacheStore, cfg.CacheTTL)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter))
	{
		api.GET("/health", handler.Health)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	authed := api.Group("")
	authed.Use(mw.Auth(handler.sessions), mw.FlushOnWrite(cacheStore))
	{
		authed.GET("/session", handler.GetSession)
		authed.DELETE("/session", handler.SignOut)

		authed.GET("/machines", caching, handler.ListMachines)
		authed.POST("/machines", handler.CreateMachine)
		authed.GET("/machines/:id", caching, handler.GetMachine)
		authed.DELETE("/machines/:id", handler.DeleteMachine)
		authed.GET("/machines/:id/metrics", caching, handler.GetMachineMetrics)
		authed.GET("/machines/:id/maintenance", handler.GetMachineMaintenance)
		authed.POST("/machines/:id/drafts", handler.OpenDraft)
		authed.POST("/metrics/preview", handler.PreviewMetrics)

		authed.GET("/components", caching, handler.ListComponents)
		authed.POST("/components", handler.CreateComponent)
		authed.GET("/components/:id", caching, handler.GetComponent)

		authed.POST("/drafts", handler.OpenCreateDraft)
		drafts := authed.Group("/drafts/:draft_id")
		{
			drafts.GET("", handler.GetDraft)
			drafts.PATCH("", handler.UpdateDraft)
			drafts.DELETE("", handler.CloseDraft)
			drafts.POST("/edit", handler.BeginEdit)
			drafts.POST("/components", handler.AddDraftComponent)
			drafts.DELETE("/components/:component_id", handler.RemoveDraftComponent)
			drafts.POST("/tasks", handler.AddDraftTask)
			drafts.POST("/tasks/:task_id/toggle", handler.ToggleDraftTask)
			drafts.PUT("/schedule", handler.SetDraftSchedule)
			drafts.PUT("/schedule/frequency", handler.SetDraftFrequency)
			drafts.POST("/patch", handler.ApplyDraftPatch)
			drafts.POST("/suggestions", handler.SuggestDraft)
			drafts.POST("/save", handler.SaveDraft)
			drafts.POST("/cancel", handler.CancelDraft)
		}

		authed.GET("/subscriptions", handler.GetSubscription)
		authed.PUT("/subscriptions", handler.PutSubscription)
		authed.DELETE("/subscriptions", handler.DeleteSubscription)
	}

	return r
}
