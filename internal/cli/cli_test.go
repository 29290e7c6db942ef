package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so commands can be executed
// more than once within a test binary.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs linkctl with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AUDIT_ENABLED", "false")
	t.Setenv("SERVER_BASE_URL", "http://sho.rt")

	resetFlags(RootCmd)
	t.Cleanup(func() {
		resetFlags(RootCmd)
		RootCmd.SetArgs(nil)
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
	})

	var stdout, stderr bytes.Buffer
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs(args)

	err := RootCmd.Execute()
	return stdout.String(), err
}

func TestCreateAndStats_FileStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db.json")

	out, err := execute(t, "create", "--store=file", "--file="+db, "--url=https://example.com/docs", "--code=docs", "--validity=60")
	require.NoError(t, err)
	assert.Contains(t, out, "Short URL: http://sho.rt/docs")
	assert.Contains(t, out, "Code:      docs")
	assert.FileExists(t, db)

	out, err = execute(t, "stats", "--store=file", "--file="+db, "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "URL:     https://example.com/docs")
	assert.Contains(t, out, "Clicks:  0")
	assert.Contains(t, out, "(active)")
}

func TestCreate_JSONOutput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db.json")

	out, err := execute(t, "create", "--store=file", "--file="+db, "--url=https://example.com", "--json")
	require.NoError(t, err)

	var resp struct {
		ShortURL  string `json:"shortUrl"`
		URL       string `json:"url"`
		Code      string `json:"code"`
		Clicks    int64  `json:"clicks"`
		CreatedAt int64  `json:"createdAt"`
		Expiry    int64  `json:"expiry"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "https://example.com", resp.URL)
	assert.Len(t, resp.Code, 6)
	assert.Equal(t, "http://sho.rt/"+resp.Code, resp.ShortURL)
	assert.Equal(t, int64(30*60*1000), resp.Expiry-resp.CreatedAt)
}

func TestCreate_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db.json")

	_, err := execute(t, "create", "--store=file", "--file="+db, "--url=https://example.com", "--code=dup")
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "duplicate code",
			args:    []string{"create", "--store=file", "--file=" + db, "--url=https://example.org", "--code=dup"},
			wantErr: "create failed: shortcode already exists",
		},
		{
			name:    "invalid url",
			args:    []string{"create", "--store=file", "--file=" + db, "--url=ftp://example.com"},
			wantErr: "create failed: url scheme must be http or https",
		},
		{
			name:    "missing url flag",
			args:    []string{"create", "--store=file", "--file=" + db},
			wantErr: `required flag(s) "url" not set`,
		},
		{
			name:    "unknown driver",
			args:    []string{"create", "--store=redis", "--url=https://example.com"},
			wantErr: "invalid store driver: redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStats_NotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db.json")

	_, err := execute(t, "stats", "--store=file", "--file="+db, "nope")
	require.Error(t, err)
	assert.Equal(t, "stats failed: shortcode not found", err.Error())
}

func TestStats_RequiresCode(t *testing.T) {
	_, err := execute(t, "stats", "--store=memory")
	require.Error(t, err)
}

func TestMigrate(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "links.db")
		out, err := execute(t, "migrate", "--store=sqlite", "--sqlite="+path)
		require.NoError(t, err)
		assert.Contains(t, out, "Database migrations executed successfully.")
		assert.FileExists(t, path)
	})

	t.Run("memory", func(t *testing.T) {
		out, err := execute(t, "migrate", "--store=memory")
		require.NoError(t, err)
		assert.Contains(t, out, "Database migrations executed successfully.")
	})
}

func TestCreateAndStats_SQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.db")

	_, err := execute(t, "create", "--store=sqlite", "--sqlite="+path, "--url=https://example.com/sql", "--code=sql")
	require.NoError(t, err)

	out, err := execute(t, "stats", "--store=sqlite", "--sqlite="+path, "--json", "sql")
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "https://example.com/sql", resp["url"])
	assert.EqualValues(t, 0, resp["clicks"])
}
