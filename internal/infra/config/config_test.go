package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOOKNEST_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, RemoteNone, cfg.Remote)
	assert.Equal(t, LocalFile, cfg.Local)
	assert.Equal(t, 5*time.Second, cfg.AdminPollInterval)
	assert.Equal(t, 5*time.Second, cfg.UserPollInterval)
	assert.Equal(t, 10*time.Second, cfg.TicketPollInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "booknest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
local: sqlite
sqlitePath: /tmp/bn.db
adminPollInterval: 2s
corsOrigins: [https://shop.example]
`), 0o644))
	t.Setenv("BOOKNEST_CONFIG", path)
	t.Setenv("PORT", "9100")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("QUOTA_INTERVAL", "1m")
	t.Setenv("TICKET_POLL_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, LocalSQLite, cfg.Local)
	assert.Equal(t, "/tmp/bn.db", cfg.SQLitePath)
	assert.Equal(t, 2*time.Second, cfg.AdminPollInterval)
	assert.Equal(t, time.Minute, cfg.QuotaInterval)
	assert.Equal(t, 30*time.Second, cfg.TicketPollInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("BOOKNEST_CONFIG", "")
	t.Cleanup(func() { os.Unsetenv("BOOKNEST_STORE_NAME") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BOOKNEST_STORE_NAME=Shelf\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Shelf", cfg.StoreName)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOOKNEST_CONFIG", "")

	t.Setenv("SESSION_TTL", "forever")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SESSION_TTL", "")
	t.Setenv("BOOKNEST_REMOTE", RemoteMongo)
	_, err = Load()
	assert.ErrorContains(t, err, "MONGODB_URI")
}

type mapAccessor map[string]string

func (m mapAccessor) Access(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("no such secret")
	}
	return v, nil
}

func TestResolveSecrets(t *testing.T) {
	cfg := defaults()
	cfg.JWTSecret = "sm://jwt-secret"
	cfg.SendGridAPIKey = "plain"
	require.True(t, cfg.NeedsSecrets())

	require.NoError(t, ResolveSecrets(context.Background(), cfg, mapAccessor{"jwt-secret": "s3cret"}))
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "plain", cfg.SendGridAPIKey)
	assert.False(t, cfg.NeedsSecrets())

	cfg.AdminPassword = "sm://missing"
	assert.Error(t, ResolveSecrets(context.Background(), cfg, mapAccessor{}))
	assert.Error(t, ResolveSecrets(context.Background(), cfg, nil))
}
