package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/noro/control-plane/internal/interfaces/http/dto"
)

// Pinger reports whether the backing database is reachable
type Pinger interface {
	Ping() error
}

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	db        Pinger
	startTime time.Time
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(db Pinger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	system := rg.Group("/system")
	{
		system.GET("/info", h.Info)
		system.GET("/health", h.Health)
	}
}

// SystemInfoResponse describes the running service
type SystemInfoResponse struct {
	Name      string `json:"name"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Info returns basic service information
func (h *SystemHandler) Info(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      "control-plane",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// HealthResponse reports component health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports readiness including database connectivity
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			c.JSON(http.StatusServiceUnavailable, dto.NewSuccessResponse(resp))
			return
		}
	}
	h.Success(c, resp)
}
