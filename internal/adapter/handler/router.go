package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/johnquangdev/podcast-assistant/internal/adapter/dto/common"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// Router holds all handlers
type Router struct {
	cfg             *config.Config
	pipelineHandler *Pipeline
	chatHandler     *Chat
	topicHandler    *Topic
	checks          map[string]HealthCheck
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, pipelineHandler *Pipeline, chatHandler *Chat, topicHandler *Topic, checks map[string]HealthCheck) *Router {
	return &Router{
		cfg:             cfg,
		pipelineHandler: pipelineHandler,
		chatHandler:     chatHandler,
		topicHandler:    topicHandler,
		checks:          checks,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")

	rt.setupPipelineRoutes(v1)
	rt.setupChatRoutes(v1)
	rt.setupTopicRoutes(v1)
}

func (rt *Router) setupPipelineRoutes(g *echo.Group) {
	if rt.pipelineHandler == nil {
		g.POST("/episodes/:id/process", rt.notImplemented)
		g.POST("/podcasts/:id/process", rt.notImplemented)
		g.DELETE("/podcasts/:id/errors", rt.notImplemented)
		return
	}
	g.POST("/episodes/:id/process", rt.pipelineHandler.ProcessEpisode)
	g.POST("/podcasts/:id/process", rt.pipelineHandler.ProcessPodcast)
	g.DELETE("/podcasts/:id/errors", rt.pipelineHandler.ClearErrors)
}

func (rt *Router) setupChatRoutes(g *echo.Group) {
	if rt.chatHandler == nil {
		g.POST("/chat", rt.notImplemented)
		return
	}
	g.POST("/chat", rt.chatHandler.Stream)
}

func (rt *Router) setupTopicRoutes(g *echo.Group) {
	topicGroup := g.Group("/topics")

	if rt.topicHandler == nil {
		topicGroup.GET("/search", rt.notImplemented)
		topicGroup.GET("/:slug/episodes", rt.notImplemented)
		return
	}
	topicGroup.GET("/search", rt.topicHandler.Search)
	topicGroup.GET("/:slug/episodes", rt.topicHandler.Episodes)
}

// notImplemented returns 501 Not Implemented response
func (rt *Router) notImplemented(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]interface{}{
		"error":   "This endpoint is not yet implemented",
		"path":    c.Request().URL.Path,
		"method":  c.Request().Method,
		"message": "Please initialize the required handler in main.go",
	})
}

// healthCheck runs every registered check; any failure turns the status to degraded
func (rt *Router) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := common.HealthResponse{
		Status: "ok",
		Time:   time.Now().Format(time.RFC3339),
	}
	if rt.cfg != nil {
		resp.Environment = rt.cfg.Server.Environment
	}

	status := http.StatusOK
	if len(rt.checks) > 0 {
		resp.Checks = make(map[string]string, len(rt.checks))
		for name, check := range rt.checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	return c.JSON(status, resp)
}
