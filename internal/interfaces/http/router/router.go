// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/interfaces/http/handler"
	"z-novel-blueprint/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Blueprint *handler.BlueprintHandler
	Job       *handler.JobHandler
	Health    *handler.HealthHandler
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	h      Handlers
}

// New 创建路由器
func New(cfg *config.Config, h Handlers) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine: gin.New(),
		cfg:    cfg,
		h:      h,
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	obs := r.cfg.Observability
	if obs.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, "/live", "/ready", obs.Metrics.Path))
		r.engine.Use(middleware.TraceContext())
	}
	if obs.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

func (r *Router) setupRoutes() {
	r.engine.GET("/live", r.h.Health.Live)
	r.engine.GET("/ready", r.h.Health.Ready)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	{
		novels := v1.Group("/novels/:nid")
		{
			bp := r.h.Blueprint
			novels.GET("/blueprint", bp.GetBlueprint)
			novels.GET("/chapters/:n", bp.GetChapter)
			novels.POST("/blueprint/generate", bp.Generate)
			novels.POST("/blueprint/generate/stream", bp.GenerateStream)
			novels.POST("/blueprint/remove", bp.Remove)
			novels.GET("/blueprint/check", bp.Check)
			novels.POST("/blueprint/check", bp.Check)
			novels.GET("/blueprint/foreshadowing", bp.Foreshadowing)
			novels.POST("/jobs", r.h.Job.CreateJob)
		}

		v1.GET("/jobs/:id", r.h.Job.GetJob)
	}
}
