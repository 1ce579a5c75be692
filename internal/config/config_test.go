package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_ADDR", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, "default-user", cfg.DefaultUserID)
	assert.Equal(t, time.Minute, cfg.FavoritesTTL)
	assert.Equal(t, 8, cfg.FavoritesConcurrency)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paradash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
default_user_id: alice
favorites_ttl: 30s
s3_bucket: from-file
s3_use_ssl: true
`), 0o600))

	t.Setenv("S3_BUCKET", "from-env")
	t.Setenv("PARADASH_FAVORITES_CONCURRENCY", "not-a-number")
	t.Setenv("API_ADDR", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "alice", cfg.DefaultUserID)
	assert.Equal(t, 30*time.Second, cfg.FavoritesTTL)
	assert.Equal(t, "from-env", cfg.S3Bucket)
	assert.True(t, cfg.S3UseSSL)
	assert.Equal(t, 8, cfg.FavoritesConcurrency)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
