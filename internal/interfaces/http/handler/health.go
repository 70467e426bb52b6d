package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// readyTimeout 所有依赖检查共用的超时
const readyTimeout = 2 * time.Second

// Pinger 就绪检查依赖，由 redis.Client 实现
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	version string
	checks  map[string]Pinger
}

// NewHealthHandler 创建健康检查处理器；checks 中的依赖都必须可用才算就绪
func NewHealthHandler(version string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Live 存活检查
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// Ready 就绪检查
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		g    errgroup.Group
		resp = readinessResponse{Status: "ok", Checks: make(map[string]*readinessCheck, len(h.checks))}
	)
	for name, p := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := p.HealthCheck(ctx)
			check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				check.Status = "error"
				check.Error = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			resp.Checks[name] = check
			if err != nil {
				resp.Status = "not_ready"
			}
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
