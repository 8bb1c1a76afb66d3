package cache

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"similarity_engine/internal/lookup"
	"similarity_engine/internal/model"
)

// MeterName 缓存指标使用的 meter 名称
const MeterName = "similarity_engine/cache"

// Instrumented 包装一个 lookup.Cache，统计命中、未命中、写入和错误次数
type Instrumented struct {
	next  lookup.Cache
	attrs metric.MeasurementOption

	hits   metric.Int64Counter
	misses metric.Int64Counter
	writes metric.Int64Counter
	errors metric.Int64Counter
}

// NewInstrumented 创建带指标的缓存，provider 为 nil 时使用全局 MeterProvider
func NewInstrumented(next lookup.Cache, backend string, provider metric.MeterProvider) (*Instrumented, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(MeterName)

	c := &Instrumented{
		next:  next,
		attrs: metric.WithAttributes(attribute.String("backend", backend)),
	}

	var err error
	if c.hits, err = meter.Int64Counter(
		"cache.hits",
		metric.WithDescription("Number of lookups answered from cache"),
	); err != nil {
		return nil, fmt.Errorf("failed to create hits counter: %w", err)
	}
	if c.misses, err = meter.Int64Counter(
		"cache.misses",
		metric.WithDescription("Number of lookups not present in cache"),
	); err != nil {
		return nil, fmt.Errorf("failed to create misses counter: %w", err)
	}
	if c.writes, err = meter.Int64Counter(
		"cache.writes",
		metric.WithDescription("Number of entries written to cache"),
	); err != nil {
		return nil, fmt.Errorf("failed to create writes counter: %w", err)
	}
	if c.errors, err = meter.Int64Counter(
		"cache.errors",
		metric.WithDescription("Number of failed cache operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}
	return c, nil
}

func (c *Instrumented) Contains(ctx context.Context, id model.ItemID) (bool, error) {
	ok, err := c.next.Contains(ctx, id)
	switch {
	case err != nil:
		c.errors.Add(ctx, 1, c.attrs, metric.WithAttributes(attribute.String("op", "contains")))
	case ok:
		c.hits.Add(ctx, 1, c.attrs)
	default:
		c.misses.Add(ctx, 1, c.attrs)
	}
	return ok, err
}

func (c *Instrumented) FetchTracks(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	tracks, err := c.next.FetchTracks(ctx, id)
	if err != nil {
		c.errors.Add(ctx, 1, c.attrs, metric.WithAttributes(attribute.String("op", "fetch")))
	}
	return tracks, err
}

func (c *Instrumented) Add(ctx context.Context, id model.ItemID, tracks []model.Item) error {
	err := c.next.Add(ctx, id, tracks)
	if err != nil {
		c.errors.Add(ctx, 1, c.attrs, metric.WithAttributes(attribute.String("op", "add")))
		return err
	}
	c.writes.Add(ctx, 1, c.attrs)
	return nil
}
