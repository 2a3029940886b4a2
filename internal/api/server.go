package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router is the status API of a running bring-up.
type Router struct {
	engine *gin.Engine
}

type route struct {
	method string
	path   string
	handle func(*Handler) gin.HandlerFunc
}

var routes = []route{
	{http.MethodPost, "/api/v1/probe", func(h *Handler) gin.HandlerFunc { return h.StartProbe }},
	{http.MethodGet, "/api/v1/probe", func(h *Handler) gin.HandlerFunc { return h.LastProbe }},
	{http.MethodGet, "/health", func(h *Handler) gin.HandlerFunc { return h.Health }},
	{http.MethodGet, "/health/deep", func(h *Handler) gin.HandlerFunc { return h.DeepHealth }},
	{http.MethodGet, "/ready", func(h *Handler) gin.HandlerFunc { return h.Ready }},
}

// NewRouter registers every route behind RequestID, Recovery, Tracing and
// RequestLogger, in that order. Callers pick the gin mode.
func NewRouter(s statusService, serviceName string) *Router {
	engine := gin.New()

	logger := slog.Default().With("component", "api")
	engine.Use(RequestID(), Recovery(logger), Tracing(serviceName), RequestLogger(logger))

	h := &Handler{service: s}
	for _, r := range routes {
		engine.Handle(r.method, r.path, r.handle(h))
	}
	return &Router{engine: engine}
}

// Handler returns the engine for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}
