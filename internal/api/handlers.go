package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentorchita/ecommerce-start/internal/clients"
	"github.com/mentorchita/ecommerce-start/internal/orchestrator"
)

// statusService is the subset of *orchestrator.Service used by the HTTP
// handlers. Declaring it as an interface allows test doubles to be injected.
type statusService interface {
	RunProbe(ctx context.Context) (*orchestrator.ProbeRun, error)
	LastProbe() *orchestrator.ProbeRun
	IsProbeInProgress() bool
	DeepHealth(ctx context.Context) []clients.Health
	IsReady() bool
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	service statusService
}

// StartProbe handles POST /api/v1/probe.
// It returns 202 immediately when a new probe run is started, or 409 if one
// is already in progress. The probe runs in a background goroutine.
func (h *Handler) StartProbe(c *gin.Context) {
	if h.service.IsProbeInProgress() {
		c.JSON(http.StatusConflict, gin.H{"status": "in-progress"})
		return
	}
	go func() {
		//nolint:errcheck
		h.service.RunProbe(context.Background()) //nolint:contextcheck
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// LastProbe handles GET /api/v1/probe.
// It returns the most recent probe run, or 404 before the first one finishes.
func (h *Handler) LastProbe(c *gin.Context) {
	run := h.service.LastProbe()
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":     "none",
			"inProgress": h.service.IsProbeInProgress(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     healthWord(run.Healthy),
		"inProgress": h.service.IsProbeInProgress(),
		"run":        run,
	})
}

// Health handles GET /health.
// It always returns 200; this is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   "shallow",
	})
}

// DeepHealth handles GET /health/deep.
// It checks every configured service once and returns 200 only when all are OK.
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.service.DeepHealth(c.Request.Context())

	allOK := true
	for _, p := range probes {
		if !p.OK {
			allOK = false
			break
		}
	}

	code := http.StatusOK
	if !allOK {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":   healthWord(allOK),
		"services": probes,
	})
}

// Ready handles GET /ready.
// It returns 200 once the bring-up has written its completion marker.
func (h *Handler) Ready(c *gin.Context) {
	if h.service.IsReady() {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
}

func healthWord(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}
