package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "similarity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig([]string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "-port", "9000"})
	require.Error(t, err, "explicit missing config file must fail")
	assert.Nil(t, cfg)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err = loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 10, cfg.Rank.DefaultTop)
	assert.False(t, cfg.Lookup.Dedupe)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "7070"
  request_timeout: 3s
cache:
  backend: redis
  ttl: 5m
  redis:
    url: redis://localhost:6379/0
store:
  backend: postgres
  dsn: postgres://localhost/music
  retry:
    max_retries: 2
lookup:
  dedupe: true
rank:
  default_top: 5
auth:
  tokens:
    - id: svc
      name: Radio
      token: secret
`)

	cfg, err := loadConfig([]string{"-config", path})

	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.Redis.URL)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, uint64(2), cfg.Store.Retry.MaxRetries)
	assert.True(t, cfg.Lookup.Dedupe)
	assert.Equal(t, 5, cfg.Rank.DefaultTop)
	require.Len(t, cfg.Auth.Tokens, 1)
	assert.Equal(t, "secret", cfg.Auth.Tokens[0].Token)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "7070"
  debug: true
cache:
  backend: redis
lookup:
  dedupe: true
`)

	cfg, err := loadConfig([]string{"-config", path, "-port", "9090", "-debug=false", "-cache", "memory", "-dedupe=false"})

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Server.Debug)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.False(t, cfg.Lookup.Dedupe)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	_, err := loadConfig([]string{"-config", writeConfig(t, "rank:\n  default_top: -1\n")})
	assert.ErrorContains(t, err, "default_top")

	_, err = loadConfig([]string{"-config", writeConfig(t, "server: [")})
	assert.ErrorContains(t, err, "failed to parse config file")

	_, err = loadConfig([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestSetupServesRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dataPath := filepath.Join(t.TempDir(), "similar.jsonl")
	require.NoError(t, os.WriteFile(dataPath, []byte(`{"track_id":"42","name":"a","score":1}`+"\n"), 0644))

	cfg := defaultConfig()
	cfg.Store.Path = dataPath
	cfg.Lookup.Dedupe = true
	cfg.Cache.Instrument = true

	a, err := setup(context.Background(), cfg)
	require.NoError(t, err)
	defer a.close(context.Background())

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tracks/42/similar?max=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"42","items":[{"name":"a","score":1}]}`, w.Body.String())
}

func TestSetupRejectsUnknownBackend(t *testing.T) {
	cfg := defaultConfig()
	cfg.Cache.Backend = "etcd"

	_, err := setup(context.Background(), cfg)

	assert.ErrorContains(t, err, "unknown cache backend")
}
