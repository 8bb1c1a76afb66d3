package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"similarity_engine/internal/model"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				backend, _ := dp.Attributes.Value(attribute.Key("backend"))
				assert.Equal(t, "memory", backend.AsString())
				sums[m.Name] += dp.Value
			}
		}
	}
	return sums
}

func TestInstrumentedCountsHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	c, err := NewInstrumented(NewMemory(0, 0, ""), "memory", provider)
	require.NoError(t, err)

	ok, err := c.Contains(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Add(ctx, "42", sampleTracks))

	ok, err = c.Contains(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := c.FetchTracks(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, sampleTracks, got)

	_, err = c.FetchTracks(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(1), sums["cache.hits"])
	assert.Equal(t, int64(1), sums["cache.misses"])
	assert.Equal(t, int64(1), sums["cache.writes"])
	assert.Equal(t, int64(1), sums["cache.errors"])
}

type failingCache struct{ err error }

func (f failingCache) Contains(context.Context, model.ItemID) (bool, error) { return false, f.err }
func (f failingCache) FetchTracks(context.Context, model.ItemID) ([]model.Item, error) {
	return nil, f.err
}
func (f failingCache) Add(context.Context, model.ItemID, []model.Item) error { return f.err }

func TestInstrumentedPassesErrorsThrough(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	cacheErr := errors.New("backend down")

	c, err := NewInstrumented(failingCache{err: cacheErr}, "memory", provider)
	require.NoError(t, err)

	_, err = c.Contains(ctx, "1")
	assert.Same(t, cacheErr, err)
	assert.Same(t, cacheErr, c.Add(ctx, "1", nil))

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["cache.errors"])
	assert.Zero(t, sums["cache.misses"])
	assert.Zero(t, sums["cache.writes"])
}
