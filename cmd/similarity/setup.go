package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"

	"similarity_engine/internal/auth"
	"similarity_engine/internal/cache"
	"similarity_engine/internal/logger"
	"similarity_engine/internal/lookup"
	"similarity_engine/internal/rank"
	"similarity_engine/internal/server"
	"similarity_engine/internal/store"
	"similarity_engine/internal/task"
)

// app 持有进程级的组件，便于统一关闭
type app struct {
	handler http.Handler
	tasks   *task.Manager
	closers []io.Closer
}

// setup 按配置组装缓存、存储、查询服务与 HTTP 服务器
func setup(ctx context.Context, cfg *Config) (*app, error) {
	a := &app{tasks: task.NewManager()}

	// 1. 缓存
	c, cacheCloser, err := cache.NewRegistry().New(ctx, cfg.Cache, otel.GetMeterProvider())
	if err != nil {
		return nil, err
	}
	a.addCloser(cacheCloser)

	// 2. 存储
	s, storeCloser, err := store.NewRegistry().New(ctx, cfg.Store)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.addCloser(storeCloser)
	if cfg.Lookup.Dedupe {
		s = lookup.NewInflightStore(s)
	}

	// 3. 排序
	ranker, err := rank.NewProcessor(cfg.Rank.DefaultTop)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	// 4. 鉴权
	tokens, err := loadTokens(cfg)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if !tokens.Enabled() {
		logger.Warn("No API tokens configured, /api/v1 is open")
	}

	svc := lookup.NewService(c, s)
	a.handler = server.NewServer(svc, ranker, a.tasks, tokens, cfg.Server.RequestTimeout).Handler()

	logger.Info("cache=%s store=%s dedupe=%v default_top=%d",
		cfg.Cache.Backend, cfg.Store.Backend, cfg.Lookup.Dedupe, ranker.TopAmount())
	return a, nil
}

func loadTokens(cfg *Config) (*auth.Registry, error) {
	if cfg.Auth.File == "" {
		return auth.NewRegistry(cfg.Auth.Tokens)
	}
	if len(cfg.Auth.Tokens) > 0 {
		return nil, fmt.Errorf("auth.file and auth.tokens are mutually exclusive")
	}
	return auth.LoadFile(cfg.Auth.File)
}

func (a *app) addCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// close 取消后台任务并在 ctx 结束前等待它们，然后释放连接
func (a *app) close(ctx context.Context) {
	if err := a.tasks.Shutdown(ctx); err != nil {
		logger.Warn("background tasks did not stop in time: %v", err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warn("close failed: %v", err)
		}
	}
}
