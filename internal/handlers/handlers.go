package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"receipt-sentinel/internal/fetcher"
	"receipt-sentinel/internal/learning"
	"receipt-sentinel/internal/processor"
	"receipt-sentinel/internal/repository"
	"receipt-sentinel/internal/resolver"
	"receipt-sentinel/internal/scheduler"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	repo      *repository.Repository
	resolver  *resolver.Resolver
	learning  *learning.Engine
	processor *processor.Processor
	scheduler *scheduler.Scheduler
	fetcher   fetcher.MailFetcher
	accounts  fetcher.AccountDirectory
}

// NewHandlers creates new HTTP handlers
func NewHandlers(
	repo *repository.Repository,
	res *resolver.Resolver,
	eng *learning.Engine,
	proc *processor.Processor,
	sched *scheduler.Scheduler,
	mf fetcher.MailFetcher,
	accounts fetcher.AccountDirectory,
) *Handlers {
	return &Handlers{
		repo:      repo,
		resolver:  res,
		learning:  eng,
		processor: proc,
		scheduler: sched,
		fetcher:   mf,
		accounts:  accounts,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// One-click links embedded in forwarded emails
	actions := router.Group("/api/actions")
	{
		actions.GET("/block", h.BlockAction)
		actions.GET("/allow", h.AllowAction)
	}
	router.GET("/settings", h.Settings)

	// API routes
	api := router.Group("/api/v1")
	{
		// Manual rules
		api.GET("/rules", h.GetRules)
		api.POST("/rules", h.CreateRule)
		api.GET("/rules/:id", h.GetRule)
		api.PUT("/rules/:id", h.UpdateRule)
		api.DELETE("/rules/:id", h.DeleteRule)
		api.PATCH("/rules/:id/promote", h.PromoteRule)

		// Preferences
		api.GET("/preferences", h.GetPreferences)
		api.POST("/preferences", h.CreatePreference)
		api.DELETE("/preferences/:id", h.DeletePreference)

		// Processing history
		api.GET("/emails", h.GetEmails)
		api.GET("/emails/:id", h.GetEmail)
		api.POST("/emails/:id/forward", h.ForwardEmail)
		api.GET("/runs", h.GetRuns)
		api.GET("/runs/:id", h.GetRun)

		// Learning
		api.GET("/learning/candidates", h.GetCandidates)
		api.POST("/learning/candidates/:id/approve", h.ApproveCandidate)
		api.DELETE("/learning/candidates/:id", h.RejectCandidate)
		api.POST("/learning/scan", h.ScanHistory)

		// Classifier diagnostics
		api.POST("/classify", h.Classify)

		// Scheduler control
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}
