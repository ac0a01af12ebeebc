package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postsync/internal/config"
	"postsync/internal/core/domain"
)

// isolate runs the test in an empty directory with the bound variables cleared.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, name := range []string{
		"APIFY_TOKEN", "APIFY_API_TOKEN", "SUPABASE_URL", "SUPABASE_S3_ENDPOINT",
		"SUPABASE_S3_ACCESS_KEY_ID", "SUPABASE_S3_SECRET_ACCESS_KEY", "GOOGLE_SHEET_ID",
		"GOOGLE_SERVICE_ACCOUNT_JSON", "SHEETS_WORKBOOK_PATH", "REDIS_ADDRESS", "LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "kantorstafpresidenri", cfg.Account)
	assert.Equal(t, "Asia/Jakarta", cfg.Timezone)
	assert.Equal(t, "Update KSP", cfg.Category)
	assert.Equal(t, 2, cfg.Workflow.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.Workflow.RetryDelay)
	assert.Equal(t, 3, cfg.Workflow.MaxResumeFailures)
	assert.Equal(t, 30*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Sheets.Timeout)
	assert.Equal(t, 1, cfg.Apify.ResultsLimit)
	assert.True(t, cfg.Apify.SkipPinned)
	assert.Equal(t, "csv-files", cfg.Storage.Bucket)
	assert.Equal(t, "instagram-output.csv", cfg.Storage.ObjectKey)
	assert.Equal(t, "compact", cfg.Storage.Schema)
	assert.Equal(t, "Sheet1!A:H", cfg.Sheets.Range)
	assert.Equal(t, "http://localhost:3000", cfg.Local.PublicBaseURL)
	assert.Equal(t, []string{"stdout"}, cfg.Logger.OutputPaths)

	assert.False(t, cfg.Storage.Enabled)
	assert.False(t, cfg.Sheets.Enabled)

	err = cfg.Validate()
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "APIFY_TOKEN")
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("APIFY_TOKEN", "tok")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co/")
	t.Setenv("SUPABASE_S3_ACCESS_KEY_ID", "key")
	t.Setenv("SUPABASE_S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
	t.Setenv("GOOGLE_SHEET_ID", "sheet-1")
	t.Setenv("POSTSYNC_WORKFLOW_RETRY_DELAY", "500ms")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "tok", cfg.Apify.Token)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/s3", cfg.Storage.Endpoint)
	assert.True(t, cfg.Storage.Enabled)
	assert.True(t, cfg.Sheets.Enabled)
	assert.True(t, cfg.GoogleSheetsEnabled())
	assert.Equal(t, 500*time.Millisecond, cfg.Workflow.RetryDelay)
}

func TestLoad_WorkbookEnablesSheets(t *testing.T) {
	isolate(t)
	t.Setenv("SHEETS_WORKBOOK_PATH", "out/posts.xlsx")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Sheets.Enabled)
	assert.False(t, cfg.GoogleSheetsEnabled())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "postsync.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
account: someoneelse
workflow:
  max_retries: 5
  retry_delay: 10s
storage:
  schema: timestamped
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "someoneelse", cfg.Account)
	assert.Equal(t, 5, cfg.Workflow.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Workflow.RetryDelay)

	schema, err := cfg.Schema()
	require.NoError(t, err)
	assert.Equal(t, "timestamped", schema.Name())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := config.Load("does-not-exist.yml")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	os.Unsetenv("REDIS_ADDRESS")
	t.Cleanup(func() { os.Unsetenv("REDIS_ADDRESS") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("REDIS_ADDRESS=localhost:6390\n"), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6390", cfg.Redis.Address)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Account:  "acct",
			Timezone: "Asia/Jakarta",
			Apify:    config.ApifyConfig{Token: "tok"},
			Workflow: config.WorkflowConfig{MaxRetries: 2, RetryDelay: time.Second},
			Storage:  config.StorageConfig{Schema: "compact"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *config.Config){
		"zero retries":    func(c *config.Config) { c.Workflow.MaxRetries = 0 },
		"negative delay":  func(c *config.Config) { c.Workflow.RetryDelay = -time.Second },
		"unknown schema":  func(c *config.Config) { c.Storage.Schema = "wide" },
		"unknown zone":    func(c *config.Config) { c.Timezone = "Mars/Olympus" },
		"missing account": func(c *config.Config) { c.Account = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.ErrorIs(t, c.Validate(), domain.ErrConfiguration)
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := &config.Config{Timezone: "Asia/Jakarta"}
	loc, err := cfg.Location()
	require.NoError(t, err)

	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 7*60*60, offset)
}
