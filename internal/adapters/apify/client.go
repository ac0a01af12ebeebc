package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"postsync/internal/core/domain"
)

const (
	DefaultBaseURL    = "https://api.apify.com/v2"
	DefaultConsoleURL = "https://console.apify.com/actors/runs"
	// DefaultActorID is apify/instagram-post-scraper.
	DefaultActorID = "apify~instagram-post-scraper"

	defaultTimeout = 30 * time.Second
	// Response bodies quoted in errors are cut to this many bytes.
	maxErrorBody = 2048
)

// Config holds the provider settings.
type Config struct {
	Token        string
	BaseURL      string
	ConsoleURL   string
	ActorID      string
	ResultsLimit int
	SkipPinned   bool
	Timeout      time.Duration
}

// Client implements ports.Scraper using the Apify REST API.
type Client struct {
	cfg    Config
	client *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// NewClient creates a new Client. The API token is required.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("apify token not set: %w", domain.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ConsoleURL == "" {
		cfg.ConsoleURL = DefaultConsoleURL
	}
	if cfg.ActorID == "" {
		cfg.ActorID = DefaultActorID
	}
	if cfg.ResultsLimit <= 0 {
		cfg.ResultsLimit = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type runEnvelope struct {
	Data struct {
		ID               string    `json:"id"`
		Status           string    `json:"status"`
		StatusMessage    string    `json:"statusMessage"`
		DefaultDatasetID string    `json:"defaultDatasetId"`
		StartedAt        time.Time `json:"startedAt"`
		FinishedAt       time.Time `json:"finishedAt"`
	} `json:"data"`
}

// Start launches the actor for the account's profile and returns immediately.
func (c *Client) Start(ctx context.Context, account string) (domain.Run, error) {
	endpoint := fmt.Sprintf("%s/acts/%s/runs?%s", c.cfg.BaseURL, url.PathEscape(c.cfg.ActorID), c.tokenQuery())

	body, err := json.Marshal(c.buildInput(account))
	if err != nil {
		return domain.Run{}, fmt.Errorf("encode run input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Run{}, fmt.Errorf("create start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var env runEnvelope
	if err := c.do(req, &env); err != nil {
		return domain.Run{}, fmt.Errorf("start actor run: %w", err)
	}

	return domain.Run{
		ID:         env.Data.ID,
		Status:     domain.RunStatus(env.Data.Status),
		ConsoleURL: c.ConsoleURL(env.Data.ID),
	}, nil
}

// CheckStatus queries the run. A succeeded run also has its dataset fetched.
// A run that failed is a normal result, not an error.
func (c *Client) CheckStatus(ctx context.Context, runID string) (domain.StatusResult, error) {
	endpoint := fmt.Sprintf("%s/actor-runs/%s?%s", c.cfg.BaseURL, url.PathEscape(runID), c.tokenQuery())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.StatusResult{}, fmt.Errorf("create status request: %w", err)
	}

	var env runEnvelope
	if err := c.do(req, &env); err != nil {
		return domain.StatusResult{}, fmt.Errorf("check run %s: %w", runID, err)
	}

	status := domain.RunStatus(env.Data.Status)
	finished := env.Data.FinishedAt
	if finished.IsZero() {
		finished = env.Data.StartedAt
	}

	switch {
	case status.Succeeded():
		posts, err := c.datasetItems(ctx, env.Data.DefaultDatasetID)
		if err != nil {
			return domain.StatusResult{}, err
		}
		return domain.StatusResult{Status: status, Posts: posts, FinishedAt: finished}, nil

	case status.Failed():
		detail := env.Data.StatusMessage
		if detail == "" {
			detail = "Unknown error"
		}
		return domain.StatusResult{
			Status:      domain.RunStatus(strings.ToLower(string(status))),
			ErrorDetail: detail,
			FinishedAt:  finished,
		}, nil

	default:
		return domain.StatusResult{Status: status}, nil
	}
}

// ConsoleURL returns the human-facing page of a run.
func (c *Client) ConsoleURL(runID string) string {
	return c.cfg.ConsoleURL + "/" + runID
}

func (c *Client) datasetItems(ctx context.Context, datasetID string) ([]domain.RawPost, error) {
	endpoint := fmt.Sprintf("%s/datasets/%s/items?%s", c.cfg.BaseURL, url.PathEscape(datasetID), c.tokenQuery())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create dataset request: %w", err)
	}

	var items []domain.RawPost
	if err := c.do(req, &items); err != nil {
		return nil, fmt.Errorf("fetch dataset %s: %w", datasetID, err)
	}
	return items, nil
}

func (c *Client) buildInput(account string) map[string]any {
	return map[string]any{
		"username":        []string{fmt.Sprintf("https://www.instagram.com/%s/", account)},
		"resultsLimit":    c.cfg.ResultsLimit,
		"skipPinnedPosts": c.cfg.SkipPinned,
		"proxyConfiguration": map[string]any{
			"useApifyProxy": true,
		},
	}
}

func (c *Client) tokenQuery() string {
	return url.Values{"token": []string{c.cfg.Token}}.Encode()
}

// do executes req and decodes a 2xx JSON body into out. Transport failures,
// non-2xx responses and undecodable bodies all wrap ErrProviderUnavailable;
// a 404 also wraps ErrNotFound.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, redact(err, c.cfg.Token))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("%w: status %d, body: %s", domain.ErrProviderUnavailable, resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
		return err
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrProviderUnavailable, err)
	}
	return nil
}

// redact strips the API token from url.Error messages.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "REDACTED"))
}
