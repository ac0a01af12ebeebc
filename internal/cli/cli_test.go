package cli_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postsync/internal/cli"
	"postsync/internal/core/domain"
)

// fakeApify serves a run that is pending for the first `pending` checks.
func fakeApify(t *testing.T, pending int32) *httptest.Server {
	t.Helper()
	var checks atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /acts/apify~instagram-post-scraper/runs", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"READY"}}`))
	})
	mux.HandleFunc("GET /actor-runs/run-1", func(w http.ResponseWriter, _ *http.Request) {
		if checks.Add(1) <= pending {
			_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"RUNNING"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"SUCCEEDED","defaultDatasetId":"ds-1"}}`))
	})
	mux.HandleFunc("GET /datasets/ds-1/items", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"url":"https://www.instagram.com/p/A/","timestamp":"2025-01-07T03:04:05.000Z","caption":"hello","displayUrl":"https://cdn/a.jpg"}]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setup runs the command in an empty directory wired to the fake provider.
func setup(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, name := range []string{
		"SUPABASE_URL", "SUPABASE_S3_ENDPOINT", "SUPABASE_S3_ACCESS_KEY_ID", "SUPABASE_S3_SECRET_ACCESS_KEY",
		"GOOGLE_SHEET_ID", "GOOGLE_SERVICE_ACCOUNT_JSON", "SHEETS_WORKBOOK_PATH", "REDIS_ADDRESS", "APIFY_API_TOKEN", "PUBLIC_BASE_URL",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("APIFY_TOKEN", "tok")
	t.Setenv("POSTSYNC_APIFY_BASE_URL", baseURL)
	t.Setenv("POSTSYNC_LOCAL_BASE_DIR", dir)
	t.Setenv("POSTSYNC_WORKFLOW_RETRY_DELAY", "1ms")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cli.NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestWorkflowCommand_PersistsPosts(t *testing.T) {
	dir := setup(t, fakeApify(t, 1).URL)

	out, err := execute(t, "workflow", "--max-retries", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "Run ID:       run-1")
	assert.Contains(t, out, "Success:      true")
	assert.Contains(t, out, "Attempts:     2")
	assert.Contains(t, out, "Inserted:     1")
	assert.Contains(t, out, "CSV:          http://localhost:3000/data/instagram.csv")

	data, err := os.ReadFile(filepath.Join(dir, "public", "data", "instagram.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Link post")
	assert.Contains(t, string(data), "https://www.instagram.com/p/A/")

	// A second run finds the post already stored.
	out, err = execute(t, "workflow", "--max-retries", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Inserted:     0")
	assert.Contains(t, out, "Skipped:      1")
}

func TestWorkflowCommand_TimedOut(t *testing.T) {
	setup(t, fakeApify(t, 100).URL)

	out, err := execute(t, "workflow", "--max-retries", "2")
	require.ErrorIs(t, err, domain.ErrJobTimedOut)
	assert.Contains(t, out, "Resume with:  postsync workflow --run-id run-1")
}

func TestStartCommand(t *testing.T) {
	setup(t, fakeApify(t, 0).URL)

	out, err := execute(t, "start")
	require.NoError(t, err)
	assert.Contains(t, out, "Run ID:       run-1")
	assert.Contains(t, out, "postsync status run-1")
}

func TestStatusCommand(t *testing.T) {
	setup(t, fakeApify(t, 0).URL)

	_, err := execute(t, "status")
	require.Error(t, err)

	out, err := execute(t, "status", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:       SUCCEEDED")
	assert.Contains(t, out, "Inserted:     1")
}

func TestMissingToken(t *testing.T) {
	setup(t, "http://127.0.0.1:1")
	t.Setenv("APIFY_TOKEN", "")

	_, err := execute(t, "start")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestScheduleCommand_InvalidSpec(t *testing.T) {
	setup(t, fakeApify(t, 0).URL)

	_, err := execute(t, "schedule", "--spec", "whenever")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCommandTree(t *testing.T) {
	root := cli.NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"start", "status", "workflow", "serve", "schedule"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
