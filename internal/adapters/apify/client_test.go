package apify_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postsync/internal/adapters/apify"
	"postsync/internal/core/domain"
)

func newClient(t *testing.T, h http.Handler) *apify.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := apify.NewClient(apify.Config{Token: "tok", BaseURL: srv.URL, SkipPinned: true})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := apify.NewClient(apify.Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestStart(t *testing.T) {
	var gotInput map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /acts/apify~instagram-post-scraper/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotInput))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"READY"}}`))
	})

	run, err := newClient(t, mux).Start(t.Context(), "kantorstafpresidenri")
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, domain.StatusReady, run.Status)
	assert.Equal(t, "https://console.apify.com/actors/runs/run-1", run.ConsoleURL)

	assert.Equal(t, []any{"https://www.instagram.com/kantorstafpresidenri/"}, gotInput["username"])
	assert.InDelta(t, 1, gotInput["resultsLimit"], 0)
	assert.Equal(t, true, gotInput["skipPinnedPosts"])
	assert.Equal(t, map[string]any{"useApifyProxy": true}, gotInput["proxyConfiguration"])
}

func TestStart_ProviderError(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"type":"actor-not-found"}}`, http.StatusNotFound)
	}))

	_, err := c.Start(t.Context(), "acct")
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "actor-not-found")
	assert.Contains(t, err.Error(), "404")
}

func TestCheckStatus_Succeeded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /actor-runs/run-1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"SUCCEEDED","defaultDatasetId":"ds-9","finishedAt":"2025-01-07T03:04:05Z"}}`))
	})
	mux.HandleFunc("GET /datasets/ds-9/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(`[{"url":"https://www.instagram.com/p/A/","timestamp":1736219045000}]`))
	})

	res, err := newClient(t, mux).CheckStatus(t.Context(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSucceeded, res.Status)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "https://www.instagram.com/p/A/", res.Posts[0]["url"])
	assert.Equal(t, json.Number("1736219045000"), res.Posts[0]["timestamp"])
	assert.Equal(t, 2025, res.FinishedAt.Year())
}

func TestCheckStatus_Failed(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus domain.RunStatus
		wantDetail string
	}{
		{"failed with message", `{"data":{"status":"FAILED","statusMessage":"proxy blocked"}}`, "failed", "proxy blocked"},
		{"aborted without message", `{"data":{"status":"ABORTED"}}`, "aborted", "Unknown error"},
		{"provider timeout", `{"data":{"status":"TIMED-OUT"}}`, "timed-out", "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))

			res, err := c.CheckStatus(t.Context(), "run-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.True(t, res.Status.Failed())
			assert.Equal(t, tt.wantDetail, res.ErrorDetail)
			assert.Empty(t, res.Posts)
		})
	}
}

func TestCheckStatus_UnknownRun(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"type":"record-not-found"}}`, http.StatusNotFound)
	}))

	_, err := c.CheckStatus(t.Context(), "run-gone")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestCheckStatus_Pending(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"status":"RUNNING"}}`))
	}))

	res, err := c.CheckStatus(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, res.Status)
	assert.False(t, res.Status.Terminal())
}

func TestCheckStatus_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := apify.NewClient(apify.Config{Token: "secret-token", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.CheckStatus(t.Context(), "run-1")
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestCheckStatus_DatasetError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /actor-runs/run-1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"status":"SUCCEEDED","defaultDatasetId":"ds-9"}}`))
	})
	mux.HandleFunc("GET /datasets/ds-9/items", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := newClient(t, mux).CheckStatus(t.Context(), "run-1")
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}
