package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"postsync/internal/core/domain"
	"postsync/internal/logger"
	"postsync/internal/service"
)

// NewRouter builds the gin engine serving the scrape API, the health
// check and, when gatherer is set, the Prometheus metrics.
func NewRouter(h *Handler, log logger.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	scrape := router.Group("/api/scrape")
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		scrape.Handle(method, "", h.Start)
		scrape.Handle(method, "/status", h.Status)
		scrape.Handle(method, "/workflow", h.Workflow)
	}
	return router
}

// Unavailable returns Workflows that fail every call with err. It keeps the
// server answering with a configuration error when credentials are missing.
func Unavailable(err error) Workflows {
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (u unavailable) StartRun(context.Context) (domain.Run, error) {
	return domain.Run{}, u.err
}

func (u unavailable) CheckRun(context.Context, string) (*domain.WorkflowResult, error) {
	return nil, u.err
}

func (u unavailable) RunWorkflow(context.Context, service.WorkflowRequest) (*domain.WorkflowResult, error) {
	return nil, u.err
}
