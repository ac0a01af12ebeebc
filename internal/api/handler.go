// Package api exposes the sync workflow over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"postsync/internal/core/domain"
	"postsync/internal/service"
)

const statusPath = "/api/scrape/status"

// Workflows defines the orchestrator operations needed by the handler.
type Workflows interface {
	StartRun(ctx context.Context) (domain.Run, error)
	CheckRun(ctx context.Context, runID string) (*domain.WorkflowResult, error)
	RunWorkflow(ctx context.Context, req service.WorkflowRequest) (*domain.WorkflowResult, error)
}

// Handler handles scrape HTTP requests.
type Handler struct {
	svc    Workflows
	budget time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithWorkflowBudget bounds each workflow call to d. Requests whose polling
// alone would exceed d are rejected; a call reaching d answers as timed out
// with the run ID to check later. Zero means unbounded.
func WithWorkflowBudget(d time.Duration) HandlerOption {
	return func(h *Handler) { h.budget = d }
}

// NewHandler creates a new scrape handler. Errors are attached to the gin
// context and logged once by LoggerMiddleware.
func NewHandler(svc Workflows, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type statusRequest struct {
	RunID string `form:"runId" json:"runId"`
}

type workflowRequest struct {
	RunID      string `form:"runId"      json:"runId"`
	MaxRetries int    `binding:"gte=0,lte=20"    form:"maxRetries" json:"maxRetries"`
	// RetryDelay is in milliseconds.
	RetryDelay int64 `binding:"gte=0,lte=60000" form:"retryDelay" json:"retryDelay"`
}

// Start handles POST|GET /api/scrape.
func (h *Handler) Start(c *gin.Context) {
	run, err := h.svc.StartRun(c.Request.Context())
	if err != nil {
		h.respondError(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Scraping started successfully",
		"runId":          run.ID,
		"status":         run.Status,
		"statusUrl":      run.ConsoleURL,
		"checkStatusUrl": checkStatusURL(run.ID),
		"instructions":   "Use the checkStatusUrl to poll for completion, or check the statusUrl for manual monitoring",
	})
}

// Status handles POST|GET /api/scrape/status.
func (h *Handler) Status(c *gin.Context) {
	var req statusRequest
	if err := bind(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RunID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "runId is required"})
		return
	}

	res, err := h.svc.CheckRun(c.Request.Context(), req.RunID)
	if err != nil {
		h.respondError(c, res, err)
		return
	}
	c.JSON(http.StatusOK, newWorkflowResponse(res))
}

// Workflow handles POST|GET /api/scrape/workflow.
func (h *Handler) Workflow(c *gin.Context) {
	var req workflowRequest
	if err := bind(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wreq := service.WorkflowRequest{
		RunID:      req.RunID,
		MaxRetries: req.MaxRetries,
		RetryDelay: time.Duration(req.RetryDelay) * time.Millisecond,
	}

	ctx := c.Request.Context()
	if h.budget > 0 {
		if polling := time.Duration(max(wreq.MaxRetries-1, 0)) * wreq.RetryDelay; polling > h.budget {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("maxRetries and retryDelay allow %s of polling, the limit is %s", polling, h.budget),
			})
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.budget)
		defer cancel()
	}

	res, err := h.svc.RunWorkflow(ctx, wreq)
	if err != nil {
		h.respondError(c, res, err)
		return
	}
	c.JSON(http.StatusOK, newWorkflowResponse(res))
}

// respondError maps workflow errors to HTTP responses.
func (h *Handler) respondError(c *gin.Context, res *domain.WorkflowResult, err error) {
	_ = c.Error(err)

	var timedOut *domain.JobTimedOutError
	var failed *domain.JobFailedError
	switch {
	case errors.As(err, &timedOut):
		body := newWorkflowResponse(res)
		body.Success = false
		body.RunID = timedOut.RunID
		body.Status = string(timedOut.Status)
		body.CheckStatusURL = checkStatusURL(timedOut.RunID)
		body.Instructions = "The scrape is still running. Check status later using the checkStatusUrl"
		c.JSON(http.StatusOK, body)

	case errors.As(err, &failed):
		body := newWorkflowResponse(res)
		body.Success = false
		body.RunID = failed.RunID
		body.Status = string(failed.Status)
		body.Error = failed.Detail
		c.JSON(http.StatusInternalServerError, body)

	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   errorLabel(err),
			"message": err.Error(),
		})
	}
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return "Configuration error"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "Scrape provider unavailable"
	case errors.Is(err, domain.ErrFormat):
		return "Failed to format posts to CSV"
	case errors.Is(err, domain.ErrSinkWrite):
		return "Failed to persist CSV"
	}
	return "Internal server error"
}

// bind reads parameters from the query string for GET and the JSON body
// otherwise. An empty body binds to the zero request.
func bind(c *gin.Context, req any) error {
	if c.Request.Method == http.MethodGet {
		return c.ShouldBindQuery(req)
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func checkStatusURL(runID string) string {
	return statusPath + "?" + url.Values{"runId": []string{runID}}.Encode()
}
