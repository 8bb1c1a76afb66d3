package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestRegistryBuildsMemoryByDefault(t *testing.T) {
	c, closer, err := NewRegistry().New(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &Memory{}, c)
}

func TestRegistryBuildsRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := Config{Backend: "redis"}
	cfg.Redis.URL = "redis://" + mr.Addr()

	c, closer, err := NewRegistry().New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()
	assert.IsType(t, &Redis{}, c)
}

func TestRegistryBuildsMemcache(t *testing.T) {
	cfg := Config{Backend: "memcache"}
	cfg.Memcache.Addrs = []string{"127.0.0.1:11211"}

	c, _, err := NewRegistry().New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memcache{}, c)
}

func TestRegistryInstruments(t *testing.T) {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))

	c, _, err := NewRegistry().New(context.Background(), Config{Backend: "memory", Instrument: true}, provider)
	require.NoError(t, err)
	assert.IsType(t, &Instrumented{}, c)
}

func TestRegistryErrors(t *testing.T) {
	_, _, err := NewRegistry().New(context.Background(), Config{Backend: "etcd"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cache backend")

	_, _, err = NewRegistry().New(context.Background(), Config{Backend: "redis"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.url")

	_, _, err = NewRegistry().New(context.Background(), Config{Backend: "memcache"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memcache.addrs")
}
